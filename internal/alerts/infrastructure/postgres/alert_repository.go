package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	alerts "agrowatch/internal/alerts/domain"
)

// AlertRepository is a Postgres implementation of the alert ledger
// over the sensor_alerts table.
//
// The table carries a partial unique index on (sensor_id, alert_type)
// WHERE resolved_by IS NULL; inserts race-safely skip conflicts.
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository constructs a repository.
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// CreateBatch inserts alerts, skipping any with an Active record for
// the same (sensor_id, alert_type).
func (r *AlertRepository) CreateBatch(ctx context.Context, items []alerts.Alert) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("alert repo: nil db")
	}
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for _, item := range items {
		if item.ID == "" || item.SensorID == "" || item.AlertType == "" {
			return 0, errors.New("alert repo: missing fields")
		}
		result, err := tx.ExecContext(ctx, `
INSERT INTO sensor_alerts (
	id, sensor_id, alert_type, message, value, ts, is_read,
	resolved_by, resolved_at, wsection, asset
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, NULL, NULL, $8, $9
)
ON CONFLICT (sensor_id, alert_type) WHERE resolved_by IS NULL DO NOTHING`,
			item.ID,
			item.SensorID,
			item.AlertType,
			item.Message,
			item.Value,
			item.Timestamp,
			item.IsRead,
			item.WSection,
			item.Asset,
		)
		if err != nil {
			return 0, err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListActiveAll returns every Active alert.
func (r *AlertRepository) ListActiveAll(ctx context.Context) ([]alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, sensor_id, alert_type, message, value, ts, is_read, resolved_by, resolved_at, wsection, asset
FROM sensor_alerts
WHERE resolved_by IS NULL
ORDER BY ts DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// ListActive returns Active alerts scoped to sections, newest first.
func (r *AlertRepository) ListActive(ctx context.Context, sections []string, limit int) ([]alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	if len(sections) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	placeholders, args := sectionArgs(sections, 1)
	args = append(args, limit)
	query := fmt.Sprintf(`
SELECT id, sensor_id, alert_type, message, value, ts, is_read, resolved_by, resolved_at, wsection, asset
FROM sensor_alerts
WHERE resolved_by IS NULL AND wsection IN (%s)
ORDER BY ts DESC
LIMIT $%d`, placeholders, len(sections)+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// CountUnread counts Active unread alerts scoped to sections.
func (r *AlertRepository) CountUnread(ctx context.Context, sections []string) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("alert repo: nil db")
	}
	if len(sections) == 0 {
		return 0, nil
	}

	placeholders, args := sectionArgs(sections, 1)
	query := fmt.Sprintf(`
SELECT COUNT(*)
FROM sensor_alerts
WHERE resolved_by IS NULL AND is_read = FALSE AND wsection IN (%s)`, placeholders)

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListAll returns alerts newest first; nil sections means unscoped.
func (r *AlertRepository) ListAll(ctx context.Context, sections []string) ([]alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}

	query := `
SELECT id, sensor_id, alert_type, message, value, ts, is_read, resolved_by, resolved_at, wsection, asset
FROM sensor_alerts`
	var args []any
	if sections != nil {
		if len(sections) == 0 {
			return nil, nil
		}
		placeholders, sectionValues := sectionArgs(sections, 1)
		query += fmt.Sprintf(" WHERE wsection IN (%s)", placeholders)
		args = sectionValues
	}
	query += " ORDER BY ts DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// ListRange returns alerts activated within [from, to], oldest first.
func (r *AlertRepository) ListRange(ctx context.Context, from, to time.Time) ([]alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, sensor_id, alert_type, message, value, ts, is_read, resolved_by, resolved_at, wsection, asset
FROM sensor_alerts
WHERE ts >= $1 AND ts <= $2
ORDER BY ts ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// GetByID fetches an alert by id.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, sensor_id, alert_type, message, value, ts, is_read, resolved_by, resolved_at, wsection, asset
FROM sensor_alerts
WHERE id = $1`, id)
	return scanAlert(row)
}

// MarkRead flags an alert as read.
func (r *AlertRepository) MarkRead(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE sensor_alerts
SET is_read = TRUE
WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return alerts.ErrNotFound
	}
	return nil
}

// Resolve marks one alert resolved.
func (r *AlertRepository) Resolve(ctx context.Context, id, resolvedBy string, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE sensor_alerts
SET resolved_by = $1, resolved_at = $2
WHERE id = $3`, resolvedBy, at, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return alerts.ErrNotFound
	}
	return nil
}

// ResolveBatch marks the given Active alerts resolved.
func (r *AlertRepository) ResolveBatch(ctx context.Context, ids []string, resolvedBy string, at time.Time) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("alert repo: nil db")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(ids))
	args := []any{resolvedBy, at}
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+3)
		args = append(args, id)
	}
	query := fmt.Sprintf(`
UPDATE sensor_alerts
SET resolved_by = $1, resolved_at = $2
WHERE resolved_by IS NULL AND id IN (%s)`, strings.Join(placeholders, ", "))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

type alertScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row alertScanner) (*alerts.Alert, error) {
	var alert alerts.Alert
	var resolvedBy sql.NullString
	var resolvedAt sql.NullTime
	if err := row.Scan(
		&alert.ID,
		&alert.SensorID,
		&alert.AlertType,
		&alert.Message,
		&alert.Value,
		&alert.Timestamp,
		&alert.IsRead,
		&resolvedBy,
		&resolvedAt,
		&alert.WSection,
		&alert.Asset,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	alert.Timestamp = alert.Timestamp.UTC()
	if resolvedBy.Valid {
		alert.ResolvedBy = resolvedBy.String
	}
	if resolvedAt.Valid {
		alert.ResolvedAt = resolvedAt.Time.UTC()
	}
	return &alert, nil
}

func collectAlerts(rows *sql.Rows) ([]alerts.Alert, error) {
	var result []alerts.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func sectionArgs(sections []string, start int) (string, []any) {
	placeholders := make([]string, len(sections))
	args := make([]any, len(sections))
	for i, section := range sections {
		placeholders[i] = fmt.Sprintf("$%d", start+i)
		args[i] = section
	}
	return strings.Join(placeholders, ", "), args
}
