package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agrowatch/internal/alerts/application"
	alerts "agrowatch/internal/alerts/domain"
	"agrowatch/internal/alerts/infrastructure/memory"
	"agrowatch/internal/audit"
	"agrowatch/internal/auth"
)

type recordingAuditor struct {
	entries []audit.Entry
}

func (a *recordingAuditor) Log(_ context.Context, entry audit.Entry) error {
	a.entries = append(a.entries, entry)
	return nil
}

func newAlertHandler(t *testing.T, seed []alerts.Alert) (*Handler, *memory.AlertRepository, *recordingAuditor) {
	t.Helper()
	ledger := memory.NewAlertRepository()
	if len(seed) > 0 {
		if _, err := ledger.CreateBatch(context.Background(), seed); err != nil {
			t.Fatalf("seed ledger: %v", err)
		}
	}
	service, err := application.NewService(ledger)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	auditor := &recordingAuditor{}
	handler, err := NewHandler(service, auditor)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return handler, ledger, auditor
}

func identifiedRequest(method, path string, body string, role auth.Role, sections ...string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	ctx := auth.WithIdentity(req.Context(), sections, role, "Dana Holt", "dana")
	return req.WithContext(ctx)
}

func TestActiveFeedScopedAndCounted(t *testing.T) {
	now := time.Now().UTC()
	handler, _, _ := newAlertHandler(t, []alerts.Alert{
		{ID: "a-1", SensorID: "s-1", AlertType: alerts.KindHighValue, WSection: "north", Timestamp: now},
		{ID: "a-2", SensorID: "s-2", AlertType: alerts.KindLowLevel, WSection: "south", Timestamp: now},
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, identifiedRequest(http.MethodGet, "/api/v1/alerts/active", "", auth.RoleScientist, "north"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var feed struct {
		Alerts      []alerts.Alert `json:"alerts"`
		UnreadCount int            `json:"unreadCount"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &feed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(feed.Alerts) != 1 || feed.Alerts[0].WSection != "north" {
		t.Fatalf("expected only north alerts, got %+v", feed.Alerts)
	}
	if feed.UnreadCount != 1 {
		t.Fatalf("expected unreadCount 1, got %d", feed.UnreadCount)
	}
}

func TestUnreadCountEndpoint(t *testing.T) {
	now := time.Now().UTC()
	handler, _, _ := newAlertHandler(t, []alerts.Alert{
		{ID: "a-1", SensorID: "s-1", AlertType: alerts.KindHighValue, WSection: "north", Timestamp: now},
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, identifiedRequest(http.MethodGet, "/api/v1/alerts/unread-count", "", auth.RoleScientist, "north"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["unreadCount"] != 1 {
		t.Fatalf("expected unreadCount 1, got %d", payload["unreadCount"])
	}
}

func TestMarkReadEndpoint(t *testing.T) {
	now := time.Now().UTC()
	handler, ledger, _ := newAlertHandler(t, []alerts.Alert{
		{ID: "a-1", SensorID: "s-1", AlertType: alerts.KindHighValue, WSection: "north", Timestamp: now},
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, identifiedRequest(http.MethodPost, "/api/v1/alerts/a-1/read", "", auth.RoleScientist, "north"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	stored, err := ledger.GetByID(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !stored.IsRead {
		t.Fatal("alert must be persisted as read")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, identifiedRequest(http.MethodPost, "/api/v1/alerts/missing/read", "", auth.RoleScientist, "north"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rec.Code)
	}
}

func TestResolveEndpointAuditsAndSetsResolver(t *testing.T) {
	now := time.Now().UTC()
	handler, ledger, auditor := newAlertHandler(t, []alerts.Alert{
		{ID: "a-1", SensorID: "s-1", AlertType: alerts.KindHighValue, WSection: "north", Timestamp: now},
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, identifiedRequest(http.MethodPost, "/api/v1/alerts/a-1/resolve", "", auth.RoleScientist, "north"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	stored, err := ledger.GetByID(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.ResolvedBy != "Dana Holt" {
		t.Fatalf("expected resolver from identity, got %q", stored.ResolvedBy)
	}
	if len(auditor.entries) != 1 || auditor.entries[0].Action != "alerts.resolve" {
		t.Fatalf("expected one alerts.resolve audit entry, got %+v", auditor.entries)
	}
}

func TestMutationEndpointsForbiddenAcrossSections(t *testing.T) {
	now := time.Now().UTC()
	handler, ledger, _ := newAlertHandler(t, []alerts.Alert{
		{ID: "a-1", SensorID: "s-1", AlertType: alerts.KindHighValue, WSection: "north", Timestamp: now},
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, identifiedRequest(http.MethodPost, "/api/v1/alerts/a-1/read", "", auth.RoleScientist, "south"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("read from another section: expected 403, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, identifiedRequest(http.MethodPost, "/api/v1/alerts/a-1/resolve", "", auth.RoleScientist, "south"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("resolve from another section: expected 403, got %d", rec.Code)
	}

	stored, err := ledger.GetByID(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.IsRead || stored.ResolvedBy != "" {
		t.Fatalf("alert must stay untouched, got %+v", stored)
	}
}

func TestListAllAdminSeesEverySection(t *testing.T) {
	now := time.Now().UTC()
	handler, _, _ := newAlertHandler(t, []alerts.Alert{
		{ID: "a-1", SensorID: "s-1", AlertType: alerts.KindHighValue, WSection: "north", Timestamp: now},
		{ID: "a-2", SensorID: "s-2", AlertType: alerts.KindLowLevel, WSection: "south", Timestamp: now},
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, identifiedRequest(http.MethodGet, "/api/v1/alerts", "", auth.RoleAdmin, "north"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Alerts []alerts.Alert `json:"alerts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Alerts) != 2 {
		t.Fatalf("admin must see all sections, got %d", len(payload.Alerts))
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler, _, _ := newAlertHandler(t, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, identifiedRequest(http.MethodDelete, "/api/v1/alerts/active", "", auth.RoleScientist, "north"))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
