package alerts

import (
	"context"
	"time"
)

// Ledger persists alert records. Implementations must guarantee at
// most one Active record per (sensor_id, alert_type): CreateBatch
// skips conflicting inserts instead of failing, so racing writers
// cannot double-insert.
type Ledger interface {
	// CreateBatch inserts alerts, silently skipping any whose
	// (sensor_id, alert_type) already has an Active record. Returns
	// the number actually inserted.
	CreateBatch(ctx context.Context, items []Alert) (int, error)

	// ListActiveAll returns every Active alert, system-wide.
	ListActiveAll(ctx context.Context) ([]Alert, error)

	// ListActive returns Active alerts whose wsection is in sections,
	// newest first, at most limit records.
	ListActive(ctx context.Context, sections []string, limit int) ([]Alert, error)

	// CountUnread counts Active unread alerts scoped to sections.
	CountUnread(ctx context.Context, sections []string) (int, error)

	// ListAll returns alerts newest first; nil sections means
	// unscoped.
	ListAll(ctx context.Context, sections []string) ([]Alert, error)

	// ListRange returns alerts activated within [from, to], oldest
	// first.
	ListRange(ctx context.Context, from, to time.Time) ([]Alert, error)

	GetByID(ctx context.Context, id string) (*Alert, error)

	// MarkRead flags an alert as read. ErrNotFound when id is missing.
	MarkRead(ctx context.Context, id string) error

	// Resolve marks one alert resolved. ErrNotFound when id is
	// missing.
	Resolve(ctx context.Context, id, resolvedBy string, at time.Time) error

	// ResolveBatch marks the given Active alerts resolved, returning
	// the number updated.
	ResolveBatch(ctx context.Context, ids []string, resolvedBy string, at time.Time) (int, error)
}
