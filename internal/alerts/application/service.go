package application

import (
	"context"
	"errors"
	"time"

	alerts "agrowatch/internal/alerts/domain"
	"agrowatch/internal/auth"
	"agrowatch/internal/observability/metrics"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Service is the alert query/mutation facade consumed by the UI
// layer. Section scoping is taken from the caller identity in
// context.
type Service struct {
	ledger      alerts.Ledger
	clock       Clock
	activeLimit int
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithActiveLimit caps the active-alert feed size.
func WithActiveLimit(limit int) ServiceOption {
	return func(s *Service) {
		if limit > 0 {
			s.activeLimit = limit
		}
	}
}

// NewService constructs the facade.
func NewService(ledger alerts.Ledger, opts ...ServiceOption) (*Service, error) {
	if ledger == nil {
		return nil, errors.New("alerts: nil ledger")
	}
	service := &Service{ledger: ledger, clock: systemClock{}, activeLimit: 50}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// ActiveFeed is the payload for the active-alerts dropdown.
type ActiveFeed struct {
	Alerts      []alerts.Alert `json:"alerts"`
	UnreadCount int            `json:"unreadCount"`
}

// ListActive returns Active alerts in the caller's sections, newest
// first, with the unread count.
func (s *Service) ListActive(ctx context.Context) (ActiveFeed, error) {
	if s == nil {
		return ActiveFeed{}, errors.New("alerts: nil service")
	}
	sections := auth.SectionsFromContext(ctx)
	list, err := s.ledger.ListActive(ctx, sections, s.activeLimit)
	if err != nil {
		return ActiveFeed{}, err
	}
	count, err := s.ledger.CountUnread(ctx, sections)
	if err != nil {
		return ActiveFeed{}, err
	}
	return ActiveFeed{Alerts: list, UnreadCount: count}, nil
}

// CountUnread returns the caller's Active unread alert count.
func (s *Service) CountUnread(ctx context.Context) (int, error) {
	if s == nil {
		return 0, errors.New("alerts: nil service")
	}
	return s.ledger.CountUnread(ctx, auth.SectionsFromContext(ctx))
}

// ListAll returns the alert history, newest first. Admin callers see
// every section; other roles are scoped to their own.
func (s *Service) ListAll(ctx context.Context) ([]alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	if auth.RoleFromContext(ctx) == auth.RoleAdmin {
		return s.ledger.ListAll(ctx, nil)
	}
	return s.ledger.ListAll(ctx, auth.SectionsFromContext(ctx))
}

// MarkRead flags an alert as read. Idempotent. Non-admin callers
// outside the alert's section get auth.ErrForbidden.
func (s *Service) MarkRead(ctx context.Context, id string) (*alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	if id == "" {
		return nil, errors.New("alerts: alert id required")
	}
	alert, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, alerts.ErrNotFound
	}
	if !sectionAllowed(ctx, alert) {
		return nil, auth.ErrForbidden
	}
	if alert.IsRead {
		return alert, nil
	}
	if err := s.ledger.MarkRead(ctx, id); err != nil {
		return nil, err
	}
	alert.IsRead = true
	return alert, nil
}

// Resolve marks an alert resolved on behalf of a user. Resolving an
// already-resolved alert is a no-op returning the stored record.
func (s *Service) Resolve(ctx context.Context, id, resolvedBy string) (*alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	if id == "" {
		return nil, errors.New("alerts: alert id required")
	}
	alert, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, alerts.ErrNotFound
	}
	if !sectionAllowed(ctx, alert) {
		return nil, auth.ErrForbidden
	}
	if !alert.Active() {
		return alert, nil
	}

	if resolvedBy == "" {
		resolvedBy = auth.NameFromContext(ctx)
	}
	if resolvedBy == "" {
		resolvedBy = auth.SubjectFromContext(ctx)
	}
	if resolvedBy == "" {
		return nil, errors.New("alerts: resolver name required")
	}

	resolvedAt := s.clock.Now().UTC()
	if err := s.ledger.Resolve(ctx, id, resolvedBy, resolvedAt); err != nil {
		return nil, err
	}
	alert.ResolvedBy = resolvedBy
	alert.ResolvedAt = resolvedAt
	metrics.IncAlertsResolved("manual", 1)
	return alert, nil
}

// sectionAllowed reports whether the caller may mutate an alert.
// Admin callers reach every section; others only their own. Alerts
// without a section stay open to any authenticated caller.
func sectionAllowed(ctx context.Context, alert *alerts.Alert) bool {
	if auth.RoleFromContext(ctx) == auth.RoleAdmin {
		return true
	}
	if alert.WSection == "" {
		return true
	}
	for _, section := range auth.SectionsFromContext(ctx) {
		if section == alert.WSection {
			return true
		}
	}
	return false
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
