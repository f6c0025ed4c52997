package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics interface for dependency injection
type Metrics interface {
	RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration)
	RecordCommentClassified(category, sentiment string)
	RecordCommentSkipped(reason string)
	RecordAnalysisRun(source string, duration time.Duration)
	SetPriorityScore(category string, score float64)
	SetDBConnectionsActive(count float64)
	RecordDBQuery(operation, status string)
	Handler() http.Handler
}

// NoOpMetrics provides a no-op implementation
type NoOpMetrics struct{}

func (m *NoOpMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
}
func (m *NoOpMetrics) RecordCommentClassified(category, sentiment string)      {}
func (m *NoOpMetrics) RecordCommentSkipped(reason string)                      {}
func (m *NoOpMetrics) RecordAnalysisRun(source string, duration time.Duration) {}
func (m *NoOpMetrics) SetPriorityScore(category string, score float64)         {}
func (m *NoOpMetrics) SetDBConnectionsActive(count float64)                    {}
func (m *NoOpMetrics) RecordDBQuery(operation, status string)                  {}
func (m *NoOpMetrics) Handler() http.Handler                                   { return http.NotFoundHandler() }

// PrometheusMetrics exports metrics through a dedicated registry
type PrometheusMetrics struct {
	registry *prometheus.Registry

	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	commentsClassified *prometheus.CounterVec
	commentsSkipped    *prometheus.CounterVec
	analysisRuns       *prometheus.CounterVec
	analysisDuration   *prometheus.HistogramVec
	priorityScore      *prometheus.GaugeVec
	dbConnections      prometheus.Gauge
	dbQueries          *prometheus.CounterVec
}

// NewPrometheus creates a Prometheus-backed implementation with its own registry
func NewPrometheus() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	m := &PrometheusMetrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commentintel_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "endpoint", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "commentintel_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		commentsClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commentintel_comments_classified_total",
			Help: "Relevant comment classifications by category and sentiment.",
		}, []string{"category", "sentiment"}),
		commentsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commentintel_comments_skipped_total",
			Help: "Comments skipped during classification.",
		}, []string{"reason"}),
		analysisRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commentintel_analysis_runs_total",
			Help: "Completed analysis runs by source.",
		}, []string{"source"}),
		analysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "commentintel_analysis_duration_seconds",
			Help:    "Analysis run duration.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"source"}),
		priorityScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "commentintel_priority_score",
			Help: "Latest priority score per category.",
		}, []string{"category"}),
		dbConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "commentintel_db_connections_active",
			Help: "Active database connections.",
		}),
		dbQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commentintel_db_queries_total",
			Help: "Database queries by operation and status.",
		}, []string{"operation", "status"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration,
		m.commentsClassified, m.commentsSkipped,
		m.analysisRuns, m.analysisDuration, m.priorityScore,
		m.dbConnections, m.dbQueries,
	)
	return m
}

func (m *PrometheusMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordCommentClassified(category, sentiment string) {
	m.commentsClassified.WithLabelValues(category, sentiment).Inc()
}

func (m *PrometheusMetrics) RecordCommentSkipped(reason string) {
	m.commentsSkipped.WithLabelValues(reason).Inc()
}

func (m *PrometheusMetrics) RecordAnalysisRun(source string, duration time.Duration) {
	m.analysisRuns.WithLabelValues(source).Inc()
	m.analysisDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) SetPriorityScore(category string, score float64) {
	m.priorityScore.WithLabelValues(category).Set(score)
}

func (m *PrometheusMetrics) SetDBConnectionsActive(count float64) {
	m.dbConnections.Set(count)
}

func (m *PrometheusMetrics) RecordDBQuery(operation, status string) {
	m.dbQueries.WithLabelValues(operation, status).Inc()
}

func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Global metrics instance
var globalMetrics Metrics = &NoOpMetrics{}

// Init installs the Prometheus implementation as the global metrics instance
func Init() {
	globalMetrics = NewPrometheus()
}

// Use replaces the global metrics instance
func Use(m Metrics) {
	if m == nil {
		m = &NoOpMetrics{}
	}
	globalMetrics = m
}

// Handler returns the metrics handler
func Handler() http.Handler {
	return globalMetrics.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	globalMetrics.RecordHTTPRequest(method, endpoint, statusCode, duration)
}

// RecordCommentClassified counts one relevant classification
func RecordCommentClassified(category, sentiment string) {
	globalMetrics.RecordCommentClassified(category, sentiment)
}

// RecordCommentSkipped counts a comment that was not classified
func RecordCommentSkipped(reason string) {
	globalMetrics.RecordCommentSkipped(reason)
}

// RecordAnalysisRun records analysis run metrics
func RecordAnalysisRun(source string, duration time.Duration) {
	globalMetrics.RecordAnalysisRun(source, duration)
}

// SetPriorityScore publishes the latest priority score of a category
func SetPriorityScore(category string, score float64) {
	globalMetrics.SetPriorityScore(category, score)
}

// SetDBConnectionsActive sets the number of active database connections
func SetDBConnectionsActive(count float64) {
	globalMetrics.SetDBConnectionsActive(count)
}

// RecordDBQuery records database query metrics
func RecordDBQuery(operation, status string) {
	globalMetrics.RecordDBQuery(operation, status)
}
