package ingest

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"agrowatch/internal/observability/metrics"
	readings "agrowatch/internal/readings/domain"
)

// Handler ingests sensor readings pushed by the field feed.
type Handler struct {
	repo   readings.Repository
	logger *log.Logger
}

// NewHandler constructs an ingest handler.
func NewHandler(repo readings.Repository, logger *log.Logger) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("reading ingest: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{repo: repo, logger: logger}, nil
}

// ServeHTTP handles POST /ingest/readings.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("reading ingest: read body error: %v", err)
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req ingestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Printf("reading ingest: decode error: %v", err)
		metrics.IncIngest(false, 0)
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	items, err := req.toReadings()
	if err != nil {
		h.logger.Printf("reading ingest: invalid payload: %v", err)
		metrics.IncIngest(false, 0)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := h.repo.Store(r.Context(), items); err != nil {
		h.logger.Printf("reading ingest: store error: %v", err)
		metrics.IncIngest(false, 0)
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}

	metrics.IncIngest(true, len(items))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"inserted": len(items)})
}

type ingestRequest struct {
	TS       int64           `json:"ts"`
	Readings []ingestReading `json:"readings"`
}

type ingestReading struct {
	SensorID   string  `json:"sensor_id"`
	SensorType string  `json:"sensor_type"`
	Asset      string  `json:"asset"`
	WSection   string  `json:"wsection"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit"`
	TS         int64   `json:"ts"`
}

func (r ingestRequest) toReadings() ([]readings.Reading, error) {
	if len(r.Readings) == 0 {
		return nil, errors.New("no readings")
	}
	batchAt := time.Now().UTC()
	if r.TS > 0 {
		batchAt = time.UnixMilli(r.TS).UTC()
	}

	result := make([]readings.Reading, 0, len(r.Readings))
	for _, item := range r.Readings {
		at := batchAt
		if item.TS > 0 {
			at = time.UnixMilli(item.TS).UTC()
		}
		reading := readings.Reading{
			SensorID:    item.SensorID,
			SensorType:  item.SensorType,
			Asset:       item.Asset,
			WSection:    item.WSection,
			Value:       item.Value,
			Unit:        item.Unit,
			LastUpdated: at,
		}
		if err := reading.Validate(); err != nil {
			return nil, err
		}
		result = append(result, reading)
	}
	return result, nil
}
