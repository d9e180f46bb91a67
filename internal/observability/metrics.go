package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveExchanges     prometheus.Gauge
	ExchangeEvents      *prometheus.CounterVec
	FramesEmitted       *prometheus.CounterVec
	ProviderErrors      *prometheus.CounterVec
	FirstContentLatency prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveExchanges: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_exchanges",
			Help:      "Number of in-flight tutoring exchanges.",
		}),
		ExchangeEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchange_events_total",
			Help:      "Exchange lifecycle events by type.",
		}, []string{"event"}),
		FramesEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_emitted_total",
			Help:      "Stream frames emitted by frame type.",
		}, []string{"type"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and code.",
		}, []string{"provider", "code"}),
		FirstContentLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_content_latency_ms",
			Help:      "Latency to first content frame in milliseconds.",
			Buckets:   []float64{100, 200, 300, 500, 700, 900, 1200, 2000, 5000},
		}),
	}
}

func (m *Metrics) ObserveFirstContentLatency(d time.Duration) {
	m.FirstContentLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
