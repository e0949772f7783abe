package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Execution outcomes.
const (
	OutcomeSuccess       = "success"
	OutcomeFailed        = "failed"
	OutcomeCancelled     = "cancelled"
	OutcomeConfiguration = "configuration_error"
)

var (
	// Pipeline execution metrics
	executionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowgpt_executions_total",
			Help: "Total number of pipeline executions by outcome",
		},
		[]string{"outcome"},
	)

	executionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowgpt_execution_duration_seconds",
			Help:    "Pipeline execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	stepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowgpt_step_duration_seconds",
			Help:    "Node step duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"node_type"},
	)

	recordingErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowgpt_recording_errors_total",
			Help: "Persistence failures swallowed while recording executions",
		},
		[]string{"operation"},
	)

	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowgpt_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowgpt_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Maintenance
	prunedExecutionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flowgpt_pruned_executions_total",
			Help: "Completed executions deleted by the retention job",
		},
	)

	statusCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowgpt_status_cache_requests_total",
			Help: "Status cache lookups by result",
		},
		[]string{"result"},
	)
)

// RecordExecution records one finished execution.
func RecordExecution(outcome string, durationSeconds float64) {
	executionsTotal.WithLabelValues(outcome).Inc()
	executionDuration.WithLabelValues(outcome).Observe(durationSeconds)
}

// RecordStep records the time one node took.
func RecordStep(nodeType string, durationSeconds float64) {
	stepDuration.WithLabelValues(nodeType).Observe(durationSeconds)
}

// RecordRecordingError counts a swallowed recorder failure.
func RecordRecordingError(operation string) {
	recordingErrorsTotal.WithLabelValues(operation).Inc()
}

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, route string, statusCode int, durationSeconds float64) {
	status := "unknown"
	switch {
	case statusCode >= 500:
		status = "5xx"
	case statusCode >= 400:
		status = "4xx"
	case statusCode >= 300:
		status = "3xx"
	case statusCode >= 200:
		status = "2xx"
	}
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

// RecordPruned adds n to the pruned executions counter.
func RecordPruned(n int64) {
	if n > 0 {
		prunedExecutionsTotal.Add(float64(n))
	}
}

// RecordCacheLookup counts a status cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		statusCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	statusCacheTotal.WithLabelValues("miss").Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
