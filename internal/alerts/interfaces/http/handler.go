package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"agrowatch/internal/alerts/application"
	alerts "agrowatch/internal/alerts/domain"
	"agrowatch/internal/audit"
	"agrowatch/internal/auth"
)

// Handler exposes the alert feed and lifecycle endpoints under
// /api/v1/alerts.
type Handler struct {
	service *application.Service
	auditor audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *application.Service, auditor audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("alerts handler: nil service")
	}
	return &Handler{service: service, auditor: auditor}, nil
}

// ServeHTTP routes alert requests:
//
//	GET  /api/v1/alerts                active feed is at /active
//	GET  /api/v1/alerts/active
//	GET  /api/v1/alerts/unread-count
//	POST /api/v1/alerts/{id}/read
//	POST /api/v1/alerts/{id}/resolve
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/alerts"), "/")

	switch {
	case rest == "":
		h.requireMethod(w, r, http.MethodGet, h.handleListAll)
	case rest == "active":
		h.requireMethod(w, r, http.MethodGet, h.handleListActive)
	case rest == "unread-count":
		h.requireMethod(w, r, http.MethodGet, h.handleUnreadCount)
	case strings.HasSuffix(rest, "/read"):
		h.requireMethod(w, r, http.MethodPost, func(w http.ResponseWriter, r *http.Request) {
			h.handleMarkRead(w, r, strings.TrimSuffix(rest, "/read"))
		})
	case strings.HasSuffix(rest, "/resolve"):
		h.requireMethod(w, r, http.MethodPost, func(w http.ResponseWriter, r *http.Request) {
			h.handleResolve(w, r, strings.TrimSuffix(rest, "/resolve"))
		})
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) requireMethod(w http.ResponseWriter, r *http.Request, method string, next http.HandlerFunc) {
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	next(w, r)
}

func (h *Handler) handleListActive(w http.ResponseWriter, r *http.Request) {
	feed, err := h.service.ListActive(r.Context())
	if err != nil {
		http.Error(w, "query alerts error", http.StatusInternalServerError)
		return
	}
	if feed.Alerts == nil {
		feed.Alerts = []alerts.Alert{}
	}
	writeJSON(w, feed)
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.CountUnread(r.Context())
	if err != nil {
		http.Error(w, "query alerts error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int{"unreadCount": count})
}

func (h *Handler) handleListAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListAll(r.Context())
	if err != nil {
		http.Error(w, "query alerts error", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []alerts.Alert{}
	}
	writeJSON(w, map[string]any{"alerts": list})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request, id string) {
	alert, err := h.service.MarkRead(r.Context(), id)
	if err != nil {
		if errors.Is(err, alerts.ErrNotFound) {
			http.Error(w, "alert not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, auth.ErrForbidden) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		http.Error(w, "update alert error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, alert)
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		ResolvedBy string `json:"resolvedBy"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}

	alert, err := h.service.Resolve(r.Context(), id, req.ResolvedBy)
	if err != nil {
		if errors.Is(err, alerts.ErrNotFound) {
			http.Error(w, "alert not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, auth.ErrForbidden) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		http.Error(w, "update alert error", http.StatusInternalServerError)
		return
	}

	if h.auditor != nil {
		_ = h.auditor.Log(r.Context(), audit.Entry{
			Actor:        auth.NameFromContext(r.Context()),
			Role:         string(auth.RoleFromContext(r.Context())),
			Action:       "alerts.resolve",
			ResourceType: "alert",
			ResourceID:   id,
			Section:      alert.WSection,
			IP:           r.RemoteAddr,
			UserAgent:    r.UserAgent(),
		})
	}
	writeJSON(w, alert)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
