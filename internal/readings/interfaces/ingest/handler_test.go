package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	readings "agrowatch/internal/readings/domain"
)

type stubReadingRepo struct {
	stored []readings.Reading
}

func (s *stubReadingRepo) ListCurrent(_ context.Context) ([]readings.Reading, error) {
	return s.stored, nil
}

func (s *stubReadingRepo) ListCurrentBySections(_ context.Context, _ []string) ([]readings.Reading, error) {
	return s.stored, nil
}

func (s *stubReadingRepo) Store(_ context.Context, items []readings.Reading) error {
	s.stored = append(s.stored, items...)
	return nil
}

func (s *stubReadingRepo) ListHistory(_ context.Context, _ string, _, _ time.Time) ([]readings.HistoryPoint, error) {
	return nil, nil
}

func TestIngestHandler_StoresReadings(t *testing.T) {
	repo := &stubReadingRepo{}
	handler, err := NewHandler(repo, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := `{"ts": 1756710000000, "readings": [
		{"sensor_id":"SNSR-001","sensor_type":"Датчик температуры","asset":"Двигатель 1","wsection":"Цех №2","value":29.7,"unit":"°C"},
		{"sensor_id":"SNSR-002","sensor_type":"Датчик давления","asset":"Двигатель 1","wsection":"Цех №2","value":3.0,"unit":"Bar"}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/ingest/readings", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(repo.stored) != 2 {
		t.Fatalf("expected 2 stored readings, got %d", len(repo.stored))
	}
	if repo.stored[0].LastUpdated.IsZero() {
		t.Fatalf("expected batch timestamp applied")
	}
}

func TestIngestHandler_RejectsMissingSensorID(t *testing.T) {
	repo := &stubReadingRepo{}
	handler, err := NewHandler(repo, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := `{"readings": [{"sensor_type":"Датчик давления","wsection":"Цех №2","value":3.0}]}`
	req := httptest.NewRequest(http.MethodPost, "/ingest/readings", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if len(repo.stored) != 0 {
		t.Fatalf("expected no stored readings, got %d", len(repo.stored))
	}
}

func TestIngestHandler_RejectsEmptyBatch(t *testing.T) {
	repo := &stubReadingRepo{}
	handler, err := NewHandler(repo, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/ingest/readings", strings.NewReader(`{"readings": []}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
