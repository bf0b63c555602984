package inventory

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for the validation engine.
type Metrics struct {
	validations *prometheus.CounterVec
	retries     *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetrics registers the engine collectors against registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	validations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockledger_validations_total",
		Help: "Document validations partitioned by kind and result.",
	}, []string{"kind", "result"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockledger_validation_retries_total",
		Help: "Validation replays after a serialization conflict.",
	}, []string{"kind"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stockledger_validation_duration_seconds",
		Help:    "Wall time of Validate including retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	registerer.MustRegister(validations, retries, duration)
	return &Metrics{validations: validations, retries: retries, duration: duration}
}

func (m *Metrics) observeValidation(kind Kind, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := kindLabel(kind)
	m.validations.WithLabelValues(label, result).Inc()
	m.duration.WithLabelValues(label).Observe(elapsed.Seconds())
}

func (m *Metrics) observeRetry(kind Kind) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(kindLabel(kind)).Inc()
}

func kindLabel(kind Kind) string {
	if kind == "" {
		return "unknown"
	}
	return string(kind)
}
