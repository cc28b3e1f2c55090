package alerts

import (
	"crypto/sha1"
	"encoding/hex"
	"time"
)

// ResolvedBySystem marks alerts resolved by the evaluator rather than
// a user.
const ResolvedBySystem = "Automatic Monitoring System"

// Alert kinds. Low-side kinds resolve when the value climbs back to
// min; all other kinds resolve when the value drops back to max.
const (
	KindHighValue    = "HIGH_VALUE"
	KindLowLevel     = "LOW_LEVEL"
	KindHighPressure = "HIGH_PRESSURE"
	KindLowPressure  = "LOW_PRESSURE"
	KindHighTempSoil = "HIGH_TEMPSOIL"
	KindLowTempSoil  = "LOW_TEMPSOIL"
	KindHighAcid     = "HIGH_ACID"
	KindLowAcid      = "LOW_ACID"
	KindGeneral      = "GENERAL"
)

// Alert is one abnormal-condition record. An alert is Active while
// ResolvedBy is empty; resolution is terminal, a fresh out-of-band
// condition creates a new record. At most one Active alert exists per
// (sensor_id, alert_type).
type Alert struct {
	ID         string    `json:"id"`
	SensorID   string    `json:"sensor_id"`
	AlertType  string    `json:"alert_type"`
	Message    string    `json:"message"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
	IsRead     bool      `json:"isRead"`
	ResolvedBy string    `json:"resolvedBy,omitempty"`
	ResolvedAt time.Time `json:"resolvedAt,omitempty"`
	WSection   string    `json:"wsection"`
	Asset      string    `json:"asset"`
}

// Active reports whether the alert is unresolved.
func (a Alert) Active() bool {
	return a.ResolvedBy == ""
}

// ResolvesLow reports whether a kind belongs to the low-side
// resolution family (cleared when value >= min).
func ResolvesLow(kind string) bool {
	switch kind {
	case KindLowLevel, KindLowPressure, KindLowTempSoil, KindLowAcid:
		return true
	default:
		return false
	}
}

// NewID derives a stable alert id from the dedup key and activation
// time.
func NewID(sensorID, alertType string, at time.Time) string {
	sum := sha1.Sum([]byte(sensorID + "|" + alertType + "|" + at.Format(time.RFC3339Nano)))
	return "alert-" + hex.EncodeToString(sum[:8])
}
