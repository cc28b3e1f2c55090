package thresholds

import (
	"context"
	"errors"
	"fmt"
)

// Threshold defines the normal operating band for a sensor type.
type Threshold struct {
	SensorType string  `json:"sensor_type"`
	MinValue   float64 `json:"min_value"`
	MaxValue   float64 `json:"max_value"`
	Unit       string  `json:"unit"`
}

// ErrInvertedBand indicates min_value > max_value.
var ErrInvertedBand = errors.New("threshold: min_value greater than max_value")

// Validate checks threshold invariants.
func (t Threshold) Validate() error {
	if t.SensorType == "" {
		return errors.New("threshold: empty sensor type")
	}
	if t.MinValue > t.MaxValue {
		return fmt.Errorf("%w: %s", ErrInvertedBand, t.SensorType)
	}
	return nil
}

// Repository persists threshold bands keyed by sensor type.
type Repository interface {
	GetAll(ctx context.Context) (map[string]Threshold, error)
	UpsertMany(ctx context.Context, items []Threshold) (int, error)
}
