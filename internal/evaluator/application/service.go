package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	alerts "agrowatch/internal/alerts/domain"
	"agrowatch/internal/observability/metrics"
	readings "agrowatch/internal/readings/domain"
	thresholds "agrowatch/internal/thresholds/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// ThresholdSource yields the threshold band per sensor type.
type ThresholdSource interface {
	GetAll(ctx context.Context) (map[string]thresholds.Threshold, error)
}

// Service is the alarm evaluator. Each Tick sweeps every current
// reading system-wide: first it opens alerts for newly abnormal
// sensors, then it closes alerts whose reading returned to the normal
// band. Ticks carry no state between runs, so a failed tick is
// corrected by the next one.
type Service struct {
	thresholds ThresholdSource
	readings   readings.CurrentReader
	ledger     alerts.Ledger
	classifier *Classifier
	clock      Clock
	logger     *log.Logger
}

// NewService constructs the evaluator.
func NewService(ts ThresholdSource, cr readings.CurrentReader, ledger alerts.Ledger, classifier *Classifier, logger *log.Logger, opts ...ServiceOption) (*Service, error) {
	if ts == nil || cr == nil || ledger == nil {
		return nil, errors.New("evaluator: nil dependency")
	}
	if classifier == nil {
		return nil, errors.New("evaluator: nil classifier")
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &Service{
		thresholds: ts,
		readings:   cr,
		ledger:     ledger,
		classifier: classifier,
		clock:      systemClock{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// ServiceOption customizes the evaluator.
type ServiceOption func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		s.clock = clock
	}
}

// Tick runs one evaluation sweep. Any failure, including a panic in
// classification, abandons the tick; partial writes from a completed
// bulk operation stay and are reconciled on the next tick.
func (s *Service) Tick(ctx context.Context) (err error) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluator: tick panic: %v", r)
		}
		metrics.ObserveTick(err, time.Since(started))
		if err != nil {
			s.logger.Printf("evaluator: tick aborted: %v", err)
		}
	}()

	bands, err := s.thresholds.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("evaluator: load thresholds: %w", err)
	}
	snapshot, err := s.readings.ListCurrent(ctx)
	if err != nil {
		return fmt.Errorf("evaluator: load readings: %w", err)
	}

	created, err := s.activate(ctx, bands, snapshot)
	if err != nil {
		return err
	}
	resolved, err := s.resolve(ctx, bands, snapshot)
	if err != nil {
		return err
	}

	if created > 0 || resolved > 0 {
		s.logger.Printf("evaluator: tick created=%d resolved=%d", created, resolved)
	}
	return nil
}

// activate stages an alert for every abnormal reading without an
// Active alert of the same kind and bulk-inserts them. The insert is
// conflict-guarded, so a duplicate staged in a race is dropped by the
// ledger rather than doubled.
func (s *Service) activate(ctx context.Context, bands map[string]thresholds.Threshold, snapshot []readings.Reading) (int, error) {
	active, err := s.ledger.ListActiveAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("evaluator: load active alerts: %w", err)
	}
	activeKeys := make(map[string]struct{}, len(active))
	for _, a := range active {
		activeKeys[a.SensorID+"|"+a.AlertType] = struct{}{}
	}

	now := s.clock.Now().UTC()
	var staged []alerts.Alert
	stagedKinds := make(map[string]int)
	for _, r := range snapshot {
		band, ok := bands[r.SensorType]
		if !ok {
			continue
		}
		kind, abnormal := s.classifier.Classify(r.SensorType, r.Value, band.MinValue, band.MaxValue)
		if !abnormal {
			continue
		}
		if _, exists := activeKeys[r.SensorID+"|"+kind]; exists {
			continue
		}
		activeKeys[r.SensorID+"|"+kind] = struct{}{}
		staged = append(staged, alerts.Alert{
			ID:        alerts.NewID(r.SensorID, kind, now),
			SensorID:  r.SensorID,
			AlertType: kind,
			Message:   s.alertMessage(kind, r, band),
			Value:     r.Value,
			Timestamp: now,
			WSection:  r.WSection,
			Asset:     r.Asset,
		})
		stagedKinds[kind]++
	}
	if len(staged) == 0 {
		return 0, nil
	}

	inserted, err := s.ledger.CreateBatch(ctx, staged)
	if err != nil {
		return 0, fmt.Errorf("evaluator: insert alerts: %w", err)
	}
	for kind, count := range stagedKinds {
		metrics.IncAlertsCreated(kind, count)
	}
	return inserted, nil
}

// resolve closes Active alerts whose current reading is back in band.
// High-side kinds clear at value <= max, low-side kinds at
// value >= min. Alerts with no current reading stay active.
func (s *Service) resolve(ctx context.Context, bands map[string]thresholds.Threshold, snapshot []readings.Reading) (int, error) {
	active, err := s.ledger.ListActiveAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("evaluator: load active alerts: %w", err)
	}
	if len(active) == 0 {
		return 0, nil
	}

	bySensor := make(map[string]readings.Reading, len(snapshot))
	for _, r := range snapshot {
		bySensor[r.SensorID] = r
	}

	var resolveIDs []string
	for _, a := range active {
		r, ok := bySensor[a.SensorID]
		if !ok {
			continue
		}
		band, ok := bands[r.SensorType]
		if !ok {
			continue
		}
		if s.classifier.ResolvesLow(a.AlertType) {
			if r.Value >= band.MinValue {
				resolveIDs = append(resolveIDs, a.ID)
			}
		} else if r.Value <= band.MaxValue {
			resolveIDs = append(resolveIDs, a.ID)
		}
	}
	if len(resolveIDs) == 0 {
		return 0, nil
	}

	resolved, err := s.ledger.ResolveBatch(ctx, resolveIDs, alerts.ResolvedBySystem, s.clock.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("evaluator: resolve alerts: %w", err)
	}
	metrics.IncAlertsResolved("auto", resolved)
	return resolved, nil
}

func (s *Service) alertMessage(kind string, r readings.Reading, band thresholds.Threshold) string {
	unit := r.Unit
	if unit == "" {
		unit = band.Unit
	}
	if s.classifier.ResolvesLow(kind) {
		return fmt.Sprintf("%s: below threshold (%g): %g %s", r.SensorType, band.MinValue, r.Value, unit)
	}
	return fmt.Sprintf("%s: above threshold (%g): %g %s", r.SensorType, band.MaxValue, r.Value, unit)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
