package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/domain"
)

// PipelineMetrics tracks the query pipeline and the HTTP surface on one
// private registry.
type PipelineMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queryTotal      *prometheus.CounterVec
	queryDuration   *prometheus.HistogramVec
	stageDuration   *prometheus.HistogramVec
	cacheHitTotal   *prometheus.CounterVec
	rerankTotal     *prometheus.CounterVec
	streamCancelled prometheus.Counter
	degradedTotal   *prometheus.CounterVec
	retryTotal      *prometheus.CounterVec
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rln",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rln",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "rln",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)

	queryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rln",
			Subsystem: "pipeline",
			Name:      "queries_total",
			Help:      "Total finished queries by terminal status.",
		},
		[]string{"service", "status", "cache"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rln",
			Subsystem: "pipeline",
			Name:      "query_duration_seconds",
			Help:      "End-to-end query duration in seconds by status.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 45},
		},
		[]string{"service", "status"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rln",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Per-stage duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 45},
		},
		[]string{"service", "stage"},
	)
	cacheHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rln",
			Subsystem: "pipeline",
			Name:      "cache_hits_total",
			Help:      "Total queries short-circuited by the response cache.",
		},
		[]string{"service"},
	)
	rerankTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rln",
			Subsystem: "pipeline",
			Name:      "rerank_total",
			Help:      "Rerank stage outcomes (ran, skipped, unavailable).",
		},
		[]string{"service", "outcome"},
	)
	streamCancelled := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "rln",
			Subsystem:   "pipeline",
			Name:        "stream_cancelled_total",
			Help:        "Streams cancelled by caller disconnect.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	degradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rln",
			Subsystem: "pipeline",
			Name:      "degraded_total",
			Help:      "Queries that failed with an unavailable backend, by error kind.",
		},
		[]string{"service", "kind"},
	)
	retryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rln",
			Subsystem: "pipeline",
			Name:      "backend_retries_total",
			Help:      "Backend call retries by operation.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(
		requestTotal, requestDuration, requestInFlight,
		queryTotal, queryDuration, stageDuration,
		cacheHitTotal, rerankTotal, streamCancelled, degradedTotal,
		retryTotal,
	)

	return &PipelineMetrics{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		queryTotal:      queryTotal,
		queryDuration:   queryDuration,
		stageDuration:   stageDuration,
		cacheHitTotal:   cacheHitTotal,
		rerankTotal:     rerankTotal,
		streamCancelled: streamCancelled,
		degradedTotal:   degradedTotal,
		retryTotal:      retryTotal,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.requestTotal.WithLabelValues("api", method, path, httpStatusLabel(status)).Inc()
	m.requestDuration.WithLabelValues("api", method, path).Observe(duration.Seconds())
}

func (m *PipelineMetrics) RequestStarted() { m.requestInFlight.Inc() }
func (m *PipelineMetrics) RequestDone()    { m.requestInFlight.Dec() }

func (m *PipelineMetrics) RecordDegraded(kind string) {
	m.degradedTotal.WithLabelValues("api", kind).Inc()
}

// RecordRetry counts one retried backend call. Wired into the
// resilience executor as its retry observer.
func (m *PipelineMetrics) RecordRetry(operation string) {
	m.retryTotal.WithLabelValues("api", operation).Inc()
}

// usecase.Observer implementation.

func (m *PipelineMetrics) QueryFinished(status domain.AnswerStatus, cacheHit bool, duration time.Duration) {
	cache := "miss"
	if cacheHit {
		cache = "hit"
		m.cacheHitTotal.WithLabelValues("api").Inc()
	}
	m.queryTotal.WithLabelValues("api", string(status), cache).Inc()
	m.queryDuration.WithLabelValues("api", string(status)).Observe(duration.Seconds())
}

func (m *PipelineMetrics) StageFinished(stage string, duration time.Duration) {
	m.stageDuration.WithLabelValues("api", stage).Observe(duration.Seconds())
}

func (m *PipelineMetrics) RerankOutcome(outcome string) {
	m.rerankTotal.WithLabelValues("api", outcome).Inc()
}

func (m *PipelineMetrics) StreamCancelled() {
	m.streamCancelled.Inc()
}

func httpStatusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
