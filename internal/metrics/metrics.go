package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for thumbnail generation.
type Metrics struct {
	EventsTotal        *prometheus.CounterVec
	ProcessingDuration prometheus.Histogram
	BytesWrittenTotal  prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thumbnail_events_total",
				Help: "Blob-created events handled, by outcome",
			},
			[]string{"outcome"},
		),

		ProcessingDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "thumbnail_processing_duration_seconds",
				Help:    "Time from event receipt to thumbnail upload",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),

		BytesWrittenTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "thumbnail_bytes_written_total",
				Help: "Encoded thumbnail bytes uploaded",
			},
		),
	}
}

// Observe records one handled event. A nil receiver is a no-op.
func (m *Metrics) Observe(outcome string, elapsed time.Duration, bytesWritten int) {
	if m == nil {
		return
	}

	m.EventsTotal.WithLabelValues(outcome).Inc()
	m.ProcessingDuration.Observe(elapsed.Seconds())
	if bytesWritten > 0 {
		m.BytesWrittenTotal.Add(float64(bytesWritten))
	}
}
