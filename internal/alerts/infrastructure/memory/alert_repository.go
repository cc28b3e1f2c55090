package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	alerts "agrowatch/internal/alerts/domain"
)

// AlertRepository is an in-memory alert ledger with the same
// uniqueness contract as the Postgres implementation: at most one
// Active record per (sensor_id, alert_type).
type AlertRepository struct {
	mu   sync.RWMutex
	data map[string]alerts.Alert
}

// NewAlertRepository constructs a repository.
func NewAlertRepository() *AlertRepository {
	return &AlertRepository{data: make(map[string]alerts.Alert)}
}

// CreateBatch inserts alerts, skipping conflicting Active keys.
func (r *AlertRepository) CreateBatch(ctx context.Context, items []alerts.Alert) (int, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	activeKeys := make(map[string]struct{})
	for _, existing := range r.data {
		if existing.Active() {
			activeKeys[existing.SensorID+"|"+existing.AlertType] = struct{}{}
		}
	}

	inserted := 0
	for _, item := range items {
		key := item.SensorID + "|" + item.AlertType
		if _, ok := activeKeys[key]; ok {
			continue
		}
		r.data[item.ID] = item
		activeKeys[key] = struct{}{}
		inserted++
	}
	return inserted, nil
}

// ListActiveAll returns every Active alert.
func (r *AlertRepository) ListActiveAll(ctx context.Context) ([]alerts.Alert, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []alerts.Alert
	for _, alert := range r.data {
		if alert.Active() {
			result = append(result, alert)
		}
	}
	sortNewestFirst(result)
	return result, nil
}

// ListActive returns Active alerts scoped to sections.
func (r *AlertRepository) ListActive(ctx context.Context, sections []string, limit int) ([]alerts.Alert, error) {
	_ = ctx
	if len(sections) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	allowed := sectionSet(sections)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []alerts.Alert
	for _, alert := range r.data {
		if !alert.Active() {
			continue
		}
		if _, ok := allowed[alert.WSection]; !ok {
			continue
		}
		result = append(result, alert)
	}
	sortNewestFirst(result)
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// CountUnread counts Active unread alerts scoped to sections.
func (r *AlertRepository) CountUnread(ctx context.Context, sections []string) (int, error) {
	_ = ctx
	if len(sections) == 0 {
		return 0, nil
	}
	allowed := sectionSet(sections)

	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, alert := range r.data {
		if !alert.Active() || alert.IsRead {
			continue
		}
		if _, ok := allowed[alert.WSection]; !ok {
			continue
		}
		count++
	}
	return count, nil
}

// ListAll returns alerts newest first; nil sections means unscoped.
func (r *AlertRepository) ListAll(ctx context.Context, sections []string) ([]alerts.Alert, error) {
	_ = ctx
	var allowed map[string]struct{}
	if sections != nil {
		if len(sections) == 0 {
			return nil, nil
		}
		allowed = sectionSet(sections)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []alerts.Alert
	for _, alert := range r.data {
		if allowed != nil {
			if _, ok := allowed[alert.WSection]; !ok {
				continue
			}
		}
		result = append(result, alert)
	}
	sortNewestFirst(result)
	return result, nil
}

// ListRange returns alerts activated within [from, to], oldest first.
func (r *AlertRepository) ListRange(ctx context.Context, from, to time.Time) ([]alerts.Alert, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []alerts.Alert
	for _, alert := range r.data {
		if alert.Timestamp.Before(from) || alert.Timestamp.After(to) {
			continue
		}
		result = append(result, alert)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

// GetByID fetches an alert by id.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alerts.Alert, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	alert, ok := r.data[id]
	if !ok {
		return nil, nil
	}
	copied := alert
	return &copied, nil
}

// MarkRead flags an alert as read.
func (r *AlertRepository) MarkRead(ctx context.Context, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.data[id]
	if !ok {
		return alerts.ErrNotFound
	}
	alert.IsRead = true
	r.data[id] = alert
	return nil
}

// Resolve marks one alert resolved.
func (r *AlertRepository) Resolve(ctx context.Context, id, resolvedBy string, at time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.data[id]
	if !ok {
		return alerts.ErrNotFound
	}
	alert.ResolvedBy = resolvedBy
	alert.ResolvedAt = at
	r.data[id] = alert
	return nil
}

// ResolveBatch marks the given Active alerts resolved.
func (r *AlertRepository) ResolveBatch(ctx context.Context, ids []string, resolvedBy string, at time.Time) (int, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	updated := 0
	for _, id := range ids {
		alert, ok := r.data[id]
		if !ok || !alert.Active() {
			continue
		}
		alert.ResolvedBy = resolvedBy
		alert.ResolvedAt = at
		r.data[id] = alert
		updated++
	}
	return updated, nil
}

func sectionSet(sections []string) map[string]struct{} {
	set := make(map[string]struct{}, len(sections))
	for _, section := range sections {
		set[section] = struct{}{}
	}
	return set
}

func sortNewestFirst(list []alerts.Alert) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].Timestamp.After(list[j].Timestamp)
	})
}
