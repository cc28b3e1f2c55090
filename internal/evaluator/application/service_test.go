package application

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	alerts "agrowatch/internal/alerts/domain"
	"agrowatch/internal/alerts/infrastructure/memory"
	readings "agrowatch/internal/readings/domain"
	thresholds "agrowatch/internal/thresholds/domain"
)

type stubThresholdSource struct {
	bands map[string]thresholds.Threshold
	err   error
}

func (s *stubThresholdSource) GetAll(context.Context) (map[string]thresholds.Threshold, error) {
	return s.bands, s.err
}

type stubCurrentReader struct {
	items []readings.Reading
	err   error
}

func (s *stubCurrentReader) ListCurrent(context.Context) ([]readings.Reading, error) {
	return s.items, s.err
}

type testClock struct {
	at time.Time
}

func (c *testClock) Now() time.Time { return c.at }

func (c *testClock) advance(d time.Duration) { c.at = c.at.Add(d) }

type evaluatorFixture struct {
	service *Service
	ledger  *memory.AlertRepository
	source  *stubThresholdSource
	reader  *stubCurrentReader
	clock   *testClock
}

func newEvaluatorFixture(t *testing.T, bands map[string]thresholds.Threshold, items []readings.Reading) *evaluatorFixture {
	t.Helper()
	return newEvaluatorFixtureConfig(t, DefaultConfig(), bands, items)
}

func newEvaluatorFixtureConfig(t *testing.T, cfg Config, bands map[string]thresholds.Threshold, items []readings.Reading) *evaluatorFixture {
	t.Helper()
	classifier, err := NewClassifier(cfg)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	clock := &testClock{at: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	source := &stubThresholdSource{bands: bands}
	reader := &stubCurrentReader{items: items}
	ledger := memory.NewAlertRepository()
	service, err := NewService(source, reader, ledger, classifier, log.New(log.Writer(), "", 0), WithClock(clock))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &evaluatorFixture{service: service, ledger: ledger, source: source, reader: reader, clock: clock}
}

func (f *evaluatorFixture) tick(t *testing.T) {
	t.Helper()
	if err := f.service.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
}

func (f *evaluatorFixture) activeAlerts(t *testing.T) []alerts.Alert {
	t.Helper()
	list, err := f.ledger.ListActiveAll(context.Background())
	if err != nil {
		t.Fatalf("ListActiveAll: %v", err)
	}
	return list
}

func (f *evaluatorFixture) setReading(sensorID string, value float64) {
	for i := range f.reader.items {
		if f.reader.items[i].SensorID == sensorID {
			f.reader.items[i].Value = value
			return
		}
	}
}

func tempBand() map[string]thresholds.Threshold {
	return map[string]thresholds.Threshold{
		"Температура": {SensorType: "Температура", MinValue: 0, MaxValue: 40, Unit: "°C"},
	}
}

func TestTickOpensHighValueAlert(t *testing.T) {
	f := newEvaluatorFixture(t, tempBand(), []readings.Reading{
		{SensorID: "S1", SensorType: "Температура", Value: 55, Unit: "°C", WSection: "north", Asset: "greenhouse-1"},
	})

	f.tick(t)

	active := f.activeAlerts(t)
	if len(active) != 1 {
		t.Fatalf("expected 1 active alert, got %d", len(active))
	}
	a := active[0]
	if a.SensorID != "S1" || a.AlertType != alerts.KindHighValue {
		t.Fatalf("unexpected alert %+v", a)
	}
	if a.Value != 55 || a.WSection != "north" || a.Asset != "greenhouse-1" {
		t.Fatalf("alert must carry the reading's value and location, got %+v", a)
	}
	if a.IsRead {
		t.Fatal("new alert must start unread")
	}
	if a.Message == "" {
		t.Fatal("alert message must be populated")
	}
}

func TestTickDedupsAcrossConsecutiveTicks(t *testing.T) {
	f := newEvaluatorFixture(t, tempBand(), []readings.Reading{
		{SensorID: "S1", SensorType: "Температура", Value: 55},
	})

	for i := 0; i < 3; i++ {
		f.tick(t)
		f.clock.advance(10 * time.Second)
	}

	active := f.activeAlerts(t)
	if len(active) != 1 {
		t.Fatalf("abnormal sensor across 3 ticks must keep exactly 1 active alert, got %d", len(active))
	}
}

func TestTickAutoResolvesWhenBackInBand(t *testing.T) {
	f := newEvaluatorFixture(t, tempBand(), []readings.Reading{
		{SensorID: "S1", SensorType: "Температура", Value: 55},
	})

	f.tick(t)
	f.setReading("S1", 30)
	f.clock.advance(10 * time.Second)
	f.tick(t)

	if active := f.activeAlerts(t); len(active) != 0 {
		t.Fatalf("in-band reading must resolve the alert, still active: %+v", active)
	}
	all, err := f.ledger.ListAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected the resolved record to remain, got %d records", len(all))
	}
	if all[0].ResolvedBy != alerts.ResolvedBySystem {
		t.Fatalf("expected resolvedBy %q, got %q", alerts.ResolvedBySystem, all[0].ResolvedBy)
	}
	if all[0].ResolvedAt.IsZero() {
		t.Fatal("resolvedAt must be set")
	}
}

func TestLowPressureResolvesOnlyAtMin(t *testing.T) {
	bands := map[string]thresholds.Threshold{
		"Датчик давления": {SensorType: "Датчик давления", MinValue: 1.0, MaxValue: 5.0, Unit: "bar"},
	}
	f := newEvaluatorFixture(t, bands, []readings.Reading{
		{SensorID: "P1", SensorType: "Датчик давления", Value: 0.5},
	})

	f.tick(t)
	active := f.activeAlerts(t)
	if len(active) != 1 || active[0].AlertType != alerts.KindLowPressure {
		t.Fatalf("expected one LOW_PRESSURE alert, got %+v", active)
	}

	// Still under min: must stay active.
	f.setReading("P1", 0.8)
	f.clock.advance(10 * time.Second)
	f.tick(t)
	if active := f.activeAlerts(t); len(active) != 1 {
		t.Fatalf("reading below min must not resolve LOW_PRESSURE, got %d active", len(active))
	}

	f.setReading("P1", 1.2)
	f.clock.advance(10 * time.Second)
	f.tick(t)
	if active := f.activeAlerts(t); len(active) != 0 {
		t.Fatalf("reading at/over min must resolve LOW_PRESSURE, got %+v", active)
	}
}

func TestConfiguredLowKindResolvesOnLowSide(t *testing.T) {
	cfg := Config{Rules: []Rule{
		{Match: []string{"поток"}, Direction: DirectionLow, LowKind: "LOW_FLOW"},
	}}
	bands := map[string]thresholds.Threshold{
		"Датчик потока": {SensorType: "Датчик потока", MinValue: 2.0, MaxValue: 10.0, Unit: "l/min"},
	}
	f := newEvaluatorFixtureConfig(t, cfg, bands, []readings.Reading{
		{SensorID: "F1", SensorType: "Датчик потока", Value: 0.5},
	})

	f.tick(t)
	active := f.activeAlerts(t)
	if len(active) != 1 || active[0].AlertType != "LOW_FLOW" {
		t.Fatalf("expected one LOW_FLOW alert, got %+v", active)
	}

	// Still under min across further ticks: must stay active, not flap.
	for i := 0; i < 3; i++ {
		f.clock.advance(10 * time.Second)
		f.tick(t)
	}
	active = f.activeAlerts(t)
	if len(active) != 1 {
		t.Fatalf("reading below min must keep LOW_FLOW active, got %d active", len(active))
	}
	if active[0].ResolvedBy != "" {
		t.Fatalf("LOW_FLOW must not auto-resolve below min, got resolvedBy=%q", active[0].ResolvedBy)
	}

	f.setReading("F1", 2.5)
	f.clock.advance(10 * time.Second)
	f.tick(t)
	if active := f.activeAlerts(t); len(active) != 0 {
		t.Fatalf("reading back over min must resolve LOW_FLOW, got %+v", active)
	}
}

func TestResolvedAlertReactivatesAsNewRecord(t *testing.T) {
	f := newEvaluatorFixture(t, tempBand(), []readings.Reading{
		{SensorID: "S1", SensorType: "Температура", Value: 55},
	})

	f.tick(t)
	f.setReading("S1", 30)
	f.clock.advance(10 * time.Second)
	f.tick(t)
	f.setReading("S1", 60)
	f.clock.advance(10 * time.Second)
	f.tick(t)

	all, err := f.ledger.ListAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("reactivation must create a second record, got %d", len(all))
	}
	active := f.activeAlerts(t)
	if len(active) != 1 || active[0].Value != 60 {
		t.Fatalf("expected one fresh active alert with the new value, got %+v", active)
	}
	if active[0].ID == "" || !active[0].Active() {
		t.Fatalf("fresh alert malformed: %+v", active[0])
	}
}

func TestUnmatchedSensorTypeNeverAlarms(t *testing.T) {
	bands := map[string]thresholds.Threshold{
		"Unknown-Sensor": {SensorType: "Unknown-Sensor", MinValue: 0, MaxValue: 1},
	}
	f := newEvaluatorFixture(t, bands, []readings.Reading{
		{SensorID: "U1", SensorType: "Unknown-Sensor", Value: 999},
	})

	f.tick(t)

	if active := f.activeAlerts(t); len(active) != 0 {
		t.Fatalf("unmatched sensor type must be inert, got %+v", active)
	}
}

func TestMissingThresholdSkipsSensor(t *testing.T) {
	f := newEvaluatorFixture(t, tempBand(), []readings.Reading{
		{SensorID: "E1", SensorType: "Экзотический", Value: 9000},
	})

	f.tick(t)

	if active := f.activeAlerts(t); len(active) != 0 {
		t.Fatalf("sensor without a threshold must never alarm, got %+v", active)
	}
}

func TestOrphanedAlertStaysActive(t *testing.T) {
	f := newEvaluatorFixture(t, tempBand(), []readings.Reading{
		{SensorID: "S1", SensorType: "Температура", Value: 55},
	})

	f.tick(t)
	// Sensor disappears from current state.
	f.reader.items = nil
	f.clock.advance(10 * time.Second)
	f.tick(t)

	if active := f.activeAlerts(t); len(active) != 1 {
		t.Fatalf("alert without a matching reading must stay active, got %d", len(active))
	}
}

func TestTickPreservesReadFlag(t *testing.T) {
	f := newEvaluatorFixture(t, tempBand(), []readings.Reading{
		{SensorID: "S1", SensorType: "Температура", Value: 55},
	})

	f.tick(t)
	active := f.activeAlerts(t)
	if err := f.ledger.MarkRead(context.Background(), active[0].ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	f.clock.advance(10 * time.Second)
	f.tick(t)

	got, err := f.ledger.GetByID(context.Background(), active[0].ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.IsRead {
		t.Fatal("tick must not clear the read flag")
	}
}

func TestTickAbortsOnStoreFailure(t *testing.T) {
	f := newEvaluatorFixture(t, tempBand(), []readings.Reading{
		{SensorID: "S1", SensorType: "Температура", Value: 55},
	})
	f.reader.err = errors.New("store unreachable")

	if err := f.service.Tick(context.Background()); err == nil {
		t.Fatal("tick must surface a store failure")
	}
	if active := f.activeAlerts(t); len(active) != 0 {
		t.Fatalf("aborted tick must not write alerts, got %+v", active)
	}

	// Next tick self-heals.
	f.reader.err = nil
	f.tick(t)
	if active := f.activeAlerts(t); len(active) != 1 {
		t.Fatalf("recovered tick must evaluate from scratch, got %d active", len(active))
	}
}
