package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tutormind"

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	registry *prometheus.Registry

	Requests            *prometheus.CounterVec
	GenerationErrors    *prometheus.CounterVec
	ExtractionDegraded  *prometheus.CounterVec
	GenerationLatency   *prometheus.HistogramVec
	RepeatedQuestions   prometheus.Counter
	RateLimitedRequests prometheus.Counter
}

// NewMetrics registers every instrument on a registry of its own, so tests can build as
// many as they need.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Chat turns, quiz gradings and question generations by outcome code.",
		}, []string{"flow", "code"}),
		GenerationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_errors_total",
			Help:      "Failed model calls by provider.",
		}, []string{"provider", "timeout"}),
		ExtractionDegraded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_degraded_total",
			Help:      "Model replies that were not clean JSON, by flow.",
		}, []string{"flow"}),
		GenerationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_latency_ms",
			Help:      "Latency of model calls in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2000, 4000, 8000, 15000, 30000, 60000},
		}, []string{"flow"}),
		RepeatedQuestions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repeated_questions_total",
			Help:      "Generated quiz questions that matched a recently asked one.",
		}),
		RateLimitedRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the per-user rate limiter.",
		}),
	}
}

func (m *Metrics) ObserveGeneration(flow string, d time.Duration) {
	m.GenerationLatency.WithLabelValues(flow).Observe(float64(d.Milliseconds()))
}

// Registry exposes the registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
