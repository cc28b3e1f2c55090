package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"agrowatch/internal/audit"
	"agrowatch/internal/auth"
	thresholds "agrowatch/internal/thresholds/domain"
)

// Handler provides threshold configuration endpoints.
type Handler struct {
	repo    thresholds.Repository
	auditor audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(repo thresholds.Repository, auditor audit.Logger) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("thresholds handler: nil repository")
	}
	return &Handler{repo: repo, auditor: auditor}, nil
}

// ServeHTTP handles /api/v1/thresholds.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodPut:
		h.handleSave(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	bands, err := h.repo.GetAll(r.Context())
	if err != nil {
		http.Error(w, "query thresholds error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"thresholdMap": bands})
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var items []thresholds.Threshold
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if len(items) == 0 {
		http.Error(w, "no thresholds provided", http.StatusBadRequest)
		return
	}

	count, err := h.repo.UpsertMany(r.Context(), items)
	if err != nil {
		if errors.Is(err, thresholds.ErrInvertedBand) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "save thresholds error", http.StatusInternalServerError)
		return
	}

	if h.auditor != nil {
		metadata, _ := json.Marshal(map[string]any{"count": count})
		_ = h.auditor.Log(r.Context(), audit.Entry{
			Actor:        auth.NameFromContext(r.Context()),
			Role:         string(auth.RoleFromContext(r.Context())),
			Action:       "thresholds.save",
			ResourceType: "threshold",
			Metadata:     metadata,
			IP:           r.RemoteAddr,
			UserAgent:    r.UserAgent(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"message": "thresholds updated", "count": count})
}
