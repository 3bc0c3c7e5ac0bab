package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records per-processor delivery outcomes and latency.
type WebhookMetrics struct {
	processed *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	swept     *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Processed webhook deliveries by processor and outcome.",
	}, []string{"processor", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_delivery_seconds",
		Help:    "End-to-end webhook handling latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"processor"})
	swept := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replay_entries_swept_total",
		Help: "Delivery-id cache entries evicted by the sweeper.",
	}, []string{"store"})
	reg.MustRegister(processed, latency, swept)
	return &WebhookMetrics{
		processed: processed,
		latency:   latency,
		swept:     swept,
	}
}

// ObserveDelivery records one delivery outcome and its latency.
func (m *WebhookMetrics) ObserveDelivery(processor, outcome string, duration time.Duration) {
	if m == nil || m.processed == nil {
		return
	}
	m.processed.WithLabelValues(normalizeLabel(processor), normalizeLabel(outcome)).Inc()
	m.latency.WithLabelValues(normalizeLabel(processor)).Observe(duration.Seconds())
}

// AddSwept counts entries evicted from the delivery-id cache.
func (m *WebhookMetrics) AddSwept(store string, count int) {
	if m == nil || m.swept == nil || count <= 0 {
		return
	}
	m.swept.WithLabelValues(normalizeLabel(store)).Add(float64(count))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
