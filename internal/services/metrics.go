package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "railqr"

// Metrics holds the Prometheus collectors of the service.
type Metrics struct {
	// PredictionsTotal labels: kind, source (engine, fallback), failure.
	PredictionsTotal *prometheus.CounterVec
	// PredictionDuration labels: kind, source.
	PredictionDuration *prometheus.HistogramVec
	// PredictionPanics counts recovered panics in the prediction path.
	PredictionPanics prometheus.Counter
	// QueuePending and QueueActive mirror the NATS worker counters.
	QueuePending prometheus.Gauge
	QueueActive  prometheus.Gauge
	// AlertsTotal labels: type, status (sent, rejected, failed).
	AlertsTotal *prometheus.CounterVec
}

// NewMetrics registers every collector on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PredictionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "prediction",
			Name:      "requests_total",
			Help:      "Prediction requests by kind, result source and failure class.",
		}, []string{"kind", "source", "failure"}),
		PredictionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "prediction",
			Name:      "duration_seconds",
			Help:      "Wall time of a prediction including the engine run.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"kind", "source"}),
		PredictionPanics: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "prediction",
			Name:      "panics_total",
			Help:      "Panics recovered while serving predictions.",
		}),
		QueuePending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "queue",
			Name:      "pending_messages",
			Help:      "Fetched NATS messages waiting for a worker.",
		}),
		QueueActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "queue",
			Name:      "active_messages",
			Help:      "NATS messages currently being processed.",
		}),
		AlertsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "alerts",
			Name:      "total",
			Help:      "Maintenance alerts by type and status.",
		}, []string{"type", "status"}),
	}
}

func (m *Metrics) observePrediction(kind, source, failure string, d time.Duration) {
	if m == nil {
		return
	}
	m.PredictionsTotal.WithLabelValues(kind, source, failure).Inc()
	m.PredictionDuration.WithLabelValues(kind, source).Observe(d.Seconds())
}
