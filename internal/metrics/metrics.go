package metrics

import (
	"regexp"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientMetrics collects backend call and analysis metrics for one client process.
type ClientMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	analysesTotal   *prometheus.CounterVec
}

// NewClientMetrics creates the collectors and registers them on a private registry.
func NewClientMetrics() *ClientMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uwu_classroom",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total backend API calls by outcome status (0 = transport failure).",
		},
		[]string{"method", "endpoint", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "uwu_classroom",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Backend API call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uwu_classroom",
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Retried attempts by operation.",
		},
		[]string{"operation"},
	)
	analysesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uwu_classroom",
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Pronunciation analyses by outcome.",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(requestTotal, requestDuration, retriesTotal, analysesTotal)

	return &ClientMetrics{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		retriesTotal:    retriesTotal,
		analysesTotal:   analysesTotal,
	}
}

// Registry exposes the underlying registry, e.g. for a promhttp handler.
func (m *ClientMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteToFile dumps all metrics in the text exposition format.
func (m *ClientMetrics) WriteToFile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// RecordRequest records one backend call.
func (m *ClientMetrics) RecordRequest(method, path string, status int, duration time.Duration) {
	endpoint := NormalizePath(path)
	m.requestTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRetry records one retried attempt.
func (m *ClientMetrics) RecordRetry(operation string) {
	if operation == "" {
		operation = "unknown"
	}
	m.retriesTotal.WithLabelValues(operation).Inc()
}

// RecordAnalysis records the outcome of one analysis run.
func (m *ClientMetrics) RecordAnalysis(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.analysesTotal.WithLabelValues(outcome).Inc()
}

var numericSegment = regexp.MustCompile(`/\d+(/|$)`)

// NormalizePath replaces numeric path segments with {id} to keep label cardinality bounded.
func NormalizePath(path string) string {
	// Applied twice because adjacent numeric segments share a slash.
	path = numericSegment.ReplaceAllString(path, "/{id}$1")
	return numericSegment.ReplaceAllString(path, "/{id}$1")
}
