// Package monitoring registers the Prometheus metrics oocanad exposes at
// /metrics: HTTP request, session, node firing, broker job, LLM request,
// and cache hit/miss/save-error metrics.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics (remote task-submission surface)
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Session metrics
	SessionsTotal   *prometheus.CounterVec
	SessionDuration *prometheus.HistogramVec
	SessionsActive  prometheus.Gauge
	NodeTransitions *prometheus.CounterVec

	// Node firing metrics
	NodesExecutedTotal *prometheus.CounterVec
	NodeDuration       *prometheus.HistogramVec
	NodeErrors         *prometheus.CounterVec

	// Worker Broker metrics
	JobsDispatchedTotal *prometheus.CounterVec
	JobsTimedOutTotal   *prometheus.CounterVec
	WorkersRegistered   prometheus.Gauge

	// LLM built-in worker metrics
	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec
	LLMTokensTotal     *prometheus.CounterVec
	LLMErrors          *prometheus.CounterVec

	// Node Input Store cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	CacheSaveErrors  *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "oocana"
	}

	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_size_bytes",
				Help:      "HTTP request size in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		SessionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_total",
				Help:      "Total number of flow run sessions started",
			},
			[]string{"flow"},
		),
		SessionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "session_duration_seconds",
				Help:      "Session duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"flow", "status"},
		),
		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Number of currently running sessions",
			},
		),
		NodeTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_state_transitions_total",
				Help:      "Total number of node state transitions",
			},
			[]string{"from_state", "to_state"},
		),

		NodesExecutedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_executed_total",
				Help:      "Total number of nodes fired",
			},
			[]string{"node_kind", "status"},
		),
		NodeDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "node_duration_seconds",
				Help:      "Node firing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"node_kind"},
		),
		NodeErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_errors_total",
				Help:      "Total number of node firing errors",
			},
			[]string{"node_kind", "error_kind"},
		),

		JobsDispatchedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "broker_jobs_dispatched_total",
				Help:      "Total number of jobs dispatched by the Worker Broker",
			},
			[]string{"executor"},
		),
		JobsTimedOutTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "broker_jobs_timed_out_total",
				Help:      "Total number of jobs that exceeded their node timeout",
			},
			[]string{"executor"},
		),
		WorkersRegistered: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "broker_service_workers_registered",
				Help:      "Number of service workers currently registered",
			},
		),

		LLMRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_requests_total",
				Help:      "Total number of LLM requests",
			},
			[]string{"provider", "model", "status"},
		),
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_request_duration_seconds",
				Help:      "LLM request duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
			},
			[]string{"provider", "model"},
		),
		LLMTokensTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_tokens_total",
				Help:      "Total number of LLM tokens used",
			},
			[]string{"provider", "model", "type"},
		),
		LLMErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_errors_total",
				Help:      "Total number of LLM errors",
			},
			[]string{"provider", "model", "error_type"},
		),

		CacheHitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of Node Input Store cache hits",
			},
			[]string{"backend"},
		),
		CacheMissesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of Node Input Store cache misses",
			},
			[]string{"backend"},
		),
		CacheSaveErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_save_errors_total",
				Help:      "Total number of failed cache save attempts",
			},
			[]string{"backend"},
		),
	}
}

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration, reqSize, respSize int) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusLabel(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

// RecordSessionStarted records a session start.
func (m *Metrics) RecordSessionStarted(flowName string) {
	m.SessionsTotal.WithLabelValues(flowName).Inc()
	m.SessionsActive.Inc()
}

// RecordSessionCompleted records a session completion.
func (m *Metrics) RecordSessionCompleted(flowName, status string, duration time.Duration) {
	m.SessionDuration.WithLabelValues(flowName, status).Observe(duration.Seconds())
	m.SessionsActive.Dec()
}

// RecordNodeTransition records a node state machine transition.
func (m *Metrics) RecordNodeTransition(from, to string) {
	m.NodeTransitions.WithLabelValues(from, to).Inc()
}

// RecordNodeExecution records one node firing.
func (m *Metrics) RecordNodeExecution(nodeKind, status string, duration time.Duration) {
	m.NodesExecutedTotal.WithLabelValues(nodeKind, status).Inc()
	m.NodeDuration.WithLabelValues(nodeKind).Observe(duration.Seconds())
}

// RecordJobDispatched records a Worker Broker dispatch.
func (m *Metrics) RecordJobDispatched(executor string) {
	m.JobsDispatchedTotal.WithLabelValues(executor).Inc()
}

// RecordJobTimedOut records a job timeout.
func (m *Metrics) RecordJobTimedOut(executor string) {
	m.JobsTimedOutTotal.WithLabelValues(executor).Inc()
}

// RecordLLMRequest records an LLM built-in worker request.
func (m *Metrics) RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	m.LLMRequestsTotal.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	m.LLMTokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	m.LLMTokensTotal.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// RecordCacheHit records a Node Input Store cache hit.
func (m *Metrics) RecordCacheHit(backend string) { m.CacheHitsTotal.WithLabelValues(backend).Inc() }

// RecordCacheMiss records a Node Input Store cache miss.
func (m *Metrics) RecordCacheMiss(backend string) { m.CacheMissesTotal.WithLabelValues(backend).Inc() }

// RecordCacheSaveError records a failed cache save attempt.
func (m *Metrics) RecordCacheSaveError(backend string) {
	m.CacheSaveErrors.WithLabelValues(backend).Inc()
}

func statusLabel(status int) string {
	switch {
	case status < 200:
		return "1xx"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
