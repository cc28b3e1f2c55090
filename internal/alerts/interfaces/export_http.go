package interfaces

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	alerts "agrowatch/internal/alerts/domain"
	"agrowatch/internal/audit"
	"agrowatch/internal/auth"
)

// errInvalidTimeRange flags an unparseable from/to query pair.
var errInvalidTimeRange = errors.New("invalid time range")

// ExportHandler serves alert-history downloads under
// /api/v1/exports/alerts.{csv,xlsx,pdf}. Non-admin callers only get
// alerts from their own sections.
type ExportHandler struct {
	ledger  alerts.Ledger
	auditor audit.Logger
}

// NewExportHandler constructs an ExportHandler.
func NewExportHandler(ledger alerts.Ledger, auditor audit.Logger) (*ExportHandler, error) {
	if ledger == nil {
		return nil, errors.New("export handler: nil ledger")
	}
	return &ExportHandler{ledger: ledger, auditor: auditor}, nil
}

// ServeHTTP handles GET /api/v1/exports/alerts.{format}.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var build func([]alerts.Alert) ([]byte, error)
	var contentType string
	switch path.Base(r.URL.Path) {
	case "alerts.csv":
		build, contentType = BuildAlertsCSV, "text/csv"
	case "alerts.xlsx":
		build, contentType = BuildAlertsXLSX, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "alerts.pdf":
		build, contentType = BuildAlertsPDF, "application/pdf"
	default:
		http.NotFound(w, r)
		return
	}

	items, err := h.load(r)
	if err != nil {
		if errors.Is(err, errInvalidTimeRange) {
			http.Error(w, "invalid time range", http.StatusBadRequest)
			return
		}
		http.Error(w, "query alerts error", http.StatusInternalServerError)
		return
	}

	data, err := build(items)
	if err != nil {
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+path.Base(r.URL.Path))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, path.Base(r.URL.Path), len(items))
}

// load fetches the alert rows for an export. An optional from/to pair
// (RFC3339) narrows the range; section scoping still applies to
// non-admin callers.
func (h *ExportHandler) load(r *http.Request) ([]alerts.Alert, error) {
	ctx := r.Context()
	var items []alerts.Alert
	var err error

	fromRaw := r.URL.Query().Get("from")
	toRaw := r.URL.Query().Get("to")
	if fromRaw != "" && toRaw != "" {
		from, perr := time.Parse(time.RFC3339, fromRaw)
		if perr != nil {
			return nil, fmt.Errorf("%w: from: %v", errInvalidTimeRange, perr)
		}
		to, perr := time.Parse(time.RFC3339, toRaw)
		if perr != nil {
			return nil, fmt.Errorf("%w: to: %v", errInvalidTimeRange, perr)
		}
		items, err = h.ledger.ListRange(ctx, from, to)
	} else if auth.RoleFromContext(ctx) == auth.RoleAdmin {
		items, err = h.ledger.ListAll(ctx, nil)
	} else {
		items, err = h.ledger.ListAll(ctx, auth.SectionsFromContext(ctx))
	}
	if err != nil {
		return nil, err
	}

	if auth.RoleFromContext(ctx) == auth.RoleAdmin {
		return items, nil
	}
	allowed := make(map[string]struct{})
	for _, s := range auth.SectionsFromContext(ctx) {
		allowed[s] = struct{}{}
	}
	scoped := items[:0]
	for _, a := range items {
		if _, ok := allowed[a.WSection]; ok {
			scoped = append(scoped, a)
		}
	}
	return scoped, nil
}

func (h *ExportHandler) logAudit(r *http.Request, name string, count int) {
	if h.auditor == nil {
		return
	}
	metadata, _ := json.Marshal(map[string]any{"file": name, "count": count})
	_ = h.auditor.Log(r.Context(), audit.Entry{
		Actor:        auth.NameFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       "alerts.export",
		ResourceType: "alert",
		Metadata:     metadata,
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	})
}
