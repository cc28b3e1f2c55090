package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "agrowatch_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestReadings prometheus.Counter

	evaluatorTicks    *prometheus.CounterVec
	evaluatorDuration prometheus.Histogram

	alertsCreated  *prometheus.CounterVec
	alertsResolved *prometheus.CounterVec
)

// Init registers observability metrics.
func Init() {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total reading ingest requests by result",
			},
			[]string{"result"},
		)
		ingestReadings = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_readings_total",
				Help: "Total readings accepted via ingest",
			},
		)

		evaluatorTicks = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "evaluator_ticks_total",
				Help: "Total alarm evaluator ticks by result",
			},
			[]string{"result"},
		)
		evaluatorDuration = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "evaluator_tick_duration_seconds",
				Help:    "Alarm evaluator tick duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		)

		alertsCreated = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_created_total",
				Help: "Total alerts created by kind",
			},
			[]string{"kind"},
		)
		alertsResolved = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_resolved_total",
				Help: "Total alerts resolved by mode",
			},
			[]string{"mode"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestReadings,
			evaluatorTicks,
			evaluatorDuration,
			alertsCreated,
			alertsResolved,
		)
	})
}

// IncIngest records an ingest request outcome.
func IncIngest(success bool, readings int) {
	if ingestRequests == nil {
		return
	}
	result := resultSuccess
	if !success {
		result = resultError
	}
	ingestRequests.WithLabelValues(result).Inc()
	if success && readings > 0 {
		ingestReadings.Add(float64(readings))
	}
}

// ObserveTick records an evaluator tick outcome and duration.
func ObserveTick(err error, elapsed time.Duration) {
	if evaluatorTicks == nil {
		return
	}
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	evaluatorTicks.WithLabelValues(result).Inc()
	evaluatorDuration.Observe(elapsed.Seconds())
}

// IncAlertsCreated records created alerts by kind.
func IncAlertsCreated(kind string, count int) {
	if alertsCreated == nil || count <= 0 {
		return
	}
	alertsCreated.WithLabelValues(kind).Add(float64(count))
}

// IncAlertsResolved records resolved alerts by mode (auto or manual).
func IncAlertsResolved(mode string, count int) {
	if alertsResolved == nil || count <= 0 {
		return
	}
	alertsResolved.WithLabelValues(mode).Add(float64(count))
}
