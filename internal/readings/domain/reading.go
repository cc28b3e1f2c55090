package readings

import (
	"context"
	"errors"
	"time"
)

// Reading is the latest reported value for a physical sensor.
type Reading struct {
	SensorID    string    `json:"sensor_id"`
	SensorType  string    `json:"sensor_type"`
	Asset       string    `json:"asset"`
	WSection    string    `json:"wsection"`
	Value       float64   `json:"value"`
	Unit        string    `json:"unit"`
	LastUpdated time.Time `json:"last_updated"`
}

// HistoryPoint is one point of a sensor's time series.
type HistoryPoint struct {
	Timestamp time.Time `json:"time"`
	Value     float64   `json:"value"`
}

// Validate checks reading invariants before storage.
func (r Reading) Validate() error {
	if r.SensorID == "" {
		return errors.New("reading: empty sensor id")
	}
	if r.SensorType == "" {
		return errors.New("reading: empty sensor type")
	}
	if r.WSection == "" {
		return errors.New("reading: empty wsection")
	}
	return nil
}

// CurrentReader reads the current-state table. The table is not
// strictly unique per sensor id; implementations resolve duplicates by
// taking the latest last_updated per sensor.
type CurrentReader interface {
	ListCurrent(ctx context.Context) ([]Reading, error)
}

// Repository persists current state and history.
type Repository interface {
	CurrentReader
	ListCurrentBySections(ctx context.Context, sections []string) ([]Reading, error)
	Store(ctx context.Context, items []Reading) error
	ListHistory(ctx context.Context, sensorID string, from, to time.Time) ([]HistoryPoint, error)
}
