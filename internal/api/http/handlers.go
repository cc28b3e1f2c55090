package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	alerts "agrowatch/internal/alerts/domain"
	"agrowatch/internal/auth"
	readings "agrowatch/internal/readings/domain"
)

const timeLayout = time.RFC3339

// SensorDataHandler serves the current sensor state for the caller's
// sections.
type SensorDataHandler struct {
	readings readings.Repository
}

// NewSensorDataHandler constructs a SensorDataHandler.
func NewSensorDataHandler(repo readings.Repository) (*SensorDataHandler, error) {
	if repo == nil {
		return nil, errors.New("sensor-data handler: nil repository")
	}
	return &SensorDataHandler{readings: repo}, nil
}

// ServeHTTP handles GET /api/v1/sensor-data.
func (h *SensorDataHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var list []readings.Reading
	var err error
	if auth.RoleFromContext(r.Context()) == auth.RoleAdmin {
		list, err = h.readings.ListCurrent(r.Context())
	} else {
		list, err = h.readings.ListCurrentBySections(r.Context(), auth.SectionsFromContext(r.Context()))
	}
	if err != nil {
		http.Error(w, "query sensor data error", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []readings.Reading{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"sensors": list})
}

// HistoryHandler serves a sensor's time series.
type HistoryHandler struct {
	readings readings.Repository
}

// NewHistoryHandler constructs a HistoryHandler.
func NewHistoryHandler(repo readings.Repository) (*HistoryHandler, error) {
	if repo == nil {
		return nil, errors.New("history handler: nil repository")
	}
	return &HistoryHandler{readings: repo}, nil
}

// ServeHTTP handles GET /api/v1/sensor-data/history?sensor_id=&from=&to=.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sensorID := r.URL.Query().Get("sensor_id")
	if sensorID == "" {
		http.Error(w, "sensor_id is required", http.StatusBadRequest)
		return
	}
	from, err := parseTimeQuery(r, "from", time.Time{})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseTimeQuery(r, "to", time.Now().UTC())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	points, err := h.readings.ListHistory(r.Context(), sensorID, from, to)
	if err != nil {
		http.Error(w, "query history error", http.StatusInternalServerError)
		return
	}
	if points == nil {
		points = []readings.HistoryPoint{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"sensor_id": sensorID, "points": points})
}

// OverviewHandler serves the dashboard summary.
type OverviewHandler struct {
	readings readings.Repository
	ledger   alerts.Ledger
}

// NewOverviewHandler constructs an OverviewHandler.
func NewOverviewHandler(repo readings.Repository, ledger alerts.Ledger) (*OverviewHandler, error) {
	if repo == nil || ledger == nil {
		return nil, errors.New("overview handler: nil dependency")
	}
	return &OverviewHandler{readings: repo, ledger: ledger}, nil
}

// ServeHTTP handles GET /api/v1/overview-stats.
func (h *OverviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	admin := auth.RoleFromContext(r.Context()) == auth.RoleAdmin
	sections := auth.SectionsFromContext(r.Context())
	var list []readings.Reading
	var err error
	if admin {
		list, err = h.readings.ListCurrent(r.Context())
	} else {
		list, err = h.readings.ListCurrentBySections(r.Context(), sections)
	}
	if err != nil {
		http.Error(w, "query sensor data error", http.StatusInternalServerError)
		return
	}

	active, err := h.ledger.ListActiveAll(r.Context())
	if err != nil {
		http.Error(w, "query alerts error", http.StatusInternalServerError)
		return
	}
	activeCount := 0
	allowed := make(map[string]struct{}, len(sections))
	for _, s := range sections {
		allowed[s] = struct{}{}
	}
	for _, a := range active {
		if admin {
			activeCount++
			continue
		}
		if _, ok := allowed[a.WSection]; ok {
			activeCount++
		}
	}

	var latest time.Time
	assets := make(map[string]struct{})
	for _, item := range list {
		assets[item.Asset] = struct{}{}
		if item.LastUpdated.After(latest) {
			latest = item.LastUpdated
		}
	}

	resp := map[string]any{
		"sensorCount":      len(list),
		"assetCount":       len(assets),
		"activeAlertCount": activeCount,
	}
	if !latest.IsZero() {
		resp["lastUpdated"] = latest.Format(timeLayout)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func parseTimeQuery(r *http.Request, key string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return t.UTC(), nil
}
