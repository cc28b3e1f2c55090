package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	readings "agrowatch/internal/readings/domain"
)

const (
	defaultCurrentTable = "sensor_current_data"
	defaultHistoryTable = "sensor_data_histories"
)

// ReadingRepository is a Postgres repository for sensor readings.
type ReadingRepository struct {
	db *sql.DB
}

// NewReadingRepository constructs a repository.
func NewReadingRepository(db *sql.DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// ListCurrent returns the latest reading per sensor id, system-wide.
func (r *ReadingRepository) ListCurrent(ctx context.Context) ([]readings.Reading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT DISTINCT ON (sensor_id)
	sensor_id, sensor_type, asset, wsection, value, unit, last_updated
FROM sensor_current_data
ORDER BY sensor_id, last_updated DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReadings(rows)
}

// ListCurrentBySections returns latest readings scoped to sections.
func (r *ReadingRepository) ListCurrentBySections(ctx context.Context, sections []string) ([]readings.Reading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	if len(sections) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(sections))
	args := make([]any, len(sections))
	for i, section := range sections {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = section
	}
	query := fmt.Sprintf(`
SELECT DISTINCT ON (sensor_id)
	sensor_id, sensor_type, asset, wsection, value, unit, last_updated
FROM sensor_current_data
WHERE wsection IN (%s)
ORDER BY sensor_id, last_updated DESC`, strings.Join(placeholders, ", "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReadings(rows)
}

// Store upserts current state and appends history for each reading.
func (r *ReadingRepository) Store(ctx context.Context, items []readings.Reading) error {
	if r == nil || r.db == nil {
		return errors.New("reading repo: nil db")
	}
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
		at := item.LastUpdated
		if at.IsZero() {
			at = time.Now().UTC()
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO sensor_current_data (sensor_id, sensor_type, asset, wsection, value, unit, last_updated)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (sensor_id) DO UPDATE
SET sensor_type = EXCLUDED.sensor_type,
	asset = EXCLUDED.asset,
	wsection = EXCLUDED.wsection,
	value = EXCLUDED.value,
	unit = EXCLUDED.unit,
	last_updated = EXCLUDED.last_updated`,
			item.SensorID, item.SensorType, item.Asset, item.WSection, item.Value, item.Unit, at)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO sensor_data_histories (sensor_id, sensor_type, asset, wsection, value, unit, ts)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			item.SensorID, item.SensorType, item.Asset, item.WSection, item.Value, item.Unit, at)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListHistory returns history points for a sensor within [from, to].
func (r *ReadingRepository) ListHistory(ctx context.Context, sensorID string, from, to time.Time) ([]readings.HistoryPoint, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	if sensorID == "" {
		return nil, errors.New("reading repo: sensor id required")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT ts, value
FROM sensor_data_histories
WHERE sensor_id = $1 AND ts >= $2 AND ts <= $3
ORDER BY ts ASC`, sensorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []readings.HistoryPoint
	for rows.Next() {
		var point readings.HistoryPoint
		if err := rows.Scan(&point.Timestamp, &point.Value); err != nil {
			return nil, err
		}
		point.Timestamp = point.Timestamp.UTC()
		result = append(result, point)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanReadings(rows *sql.Rows) ([]readings.Reading, error) {
	var result []readings.Reading
	for rows.Next() {
		var reading readings.Reading
		var unit sql.NullString
		if err := rows.Scan(
			&reading.SensorID,
			&reading.SensorType,
			&reading.Asset,
			&reading.WSection,
			&reading.Value,
			&unit,
			&reading.LastUpdated,
		); err != nil {
			return nil, err
		}
		if unit.Valid {
			reading.Unit = unit.String
		}
		reading.LastUpdated = reading.LastUpdated.UTC()
		result = append(result, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
