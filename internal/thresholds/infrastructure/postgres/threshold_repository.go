package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	thresholds "agrowatch/internal/thresholds/domain"
)

// ThresholdRepository is a Postgres repository for threshold bands
// over the threshold_by_type_config table.
type ThresholdRepository struct {
	db *sql.DB
}

// NewThresholdRepository constructs a repository.
func NewThresholdRepository(db *sql.DB) *ThresholdRepository {
	return &ThresholdRepository{db: db}
}

// GetAll returns all threshold bands keyed by sensor type.
func (r *ThresholdRepository) GetAll(ctx context.Context) (map[string]thresholds.Threshold, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("threshold repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT sensor_type, min_value, max_value, unit
FROM threshold_by_type_config`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]thresholds.Threshold)
	for rows.Next() {
		var t thresholds.Threshold
		var unit sql.NullString
		if err := rows.Scan(&t.SensorType, &t.MinValue, &t.MaxValue, &unit); err != nil {
			return nil, err
		}
		if unit.Valid {
			t.Unit = unit.String
		}
		result[t.SensorType] = t
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpsertMany bulk-upserts threshold bands by sensor type. All items are
// validated before any write.
func (r *ThresholdRepository) UpsertMany(ctx context.Context, items []thresholds.Threshold) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("threshold repo: nil db")
	}
	if len(items) == 0 {
		return 0, nil
	}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return 0, err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	count := 0
	for _, item := range items {
		_, err := tx.ExecContext(ctx, `
INSERT INTO threshold_by_type_config (sensor_type, min_value, max_value, unit, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (sensor_type) DO UPDATE
SET min_value = EXCLUDED.min_value,
	max_value = EXCLUDED.max_value,
	unit = COALESCE(NULLIF(EXCLUDED.unit, ''), threshold_by_type_config.unit),
	updated_at = EXCLUDED.updated_at`,
			item.SensorType, item.MinValue, item.MaxValue, item.Unit, now)
		if err != nil {
			return 0, err
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}
