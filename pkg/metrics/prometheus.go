// Package metrics provides Prometheus metrics for the bookrec recommendation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the bookrec service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Core business metrics
	recommendationsServed *prometheus.CounterVec
	recommendationsEmpty  *prometheus.CounterVec
	candidatesFetched     prometheus.Counter
	candidatesExcluded    prometheus.Counter
	candidatesDuplicate   prometheus.Counter
	pipelineLatency       *prometheus.HistogramVec
	historyEvents         prometheus.Counter

	// Catalog metrics
	catalogRequests     *prometheus.CounterVec
	catalogLatency      prometheus.Histogram
	catalogBreakerState prometheus.Gauge

	// Embedding metrics
	embeddingLatency prometheus.Histogram
	embeddingTexts   prometheus.Counter

	// Repository metrics
	repositoryUpserts      *prometheus.CounterVec
	repositoryQueryLatency *prometheus.HistogramVec

	// HTTP performance metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error breakdown
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System performance metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "bookrec",
		subsystem:        "recommender",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.recommendationsServed = auto.NewCounterVec(
		m.counterOpts("recommendations_served_total", "Recommendation lists returned to users, by variant"),
		[]string{"variant"},
	)
	m.recommendationsEmpty = auto.NewCounterVec(
		m.counterOpts("recommendations_failed_total", "Recommendation requests that ended without a list, by reason"),
		[]string{"reason"},
	)
	m.candidatesFetched = auto.NewCounter(m.counterOpts("candidates_fetched_total", "Candidate items returned by the catalog"))
	m.candidatesExcluded = auto.NewCounter(m.counterOpts("candidates_excluded_total", "Candidates dropped before scoring because they carry no description"))
	m.candidatesDuplicate = auto.NewCounter(m.counterOpts("candidates_duplicate_total", "Candidates dropped by identity-key deduplication"))
	m.pipelineLatency = auto.NewHistogramVec(
		m.histogramOpts("pipeline_latency_milliseconds", "End-to-end recommendation pipeline latency", m.histogramBuckets),
		[]string{"variant"},
	)
	m.historyEvents = auto.NewCounter(m.counterOpts("history_events_total", "Reading-history signal events recorded"))

	m.catalogRequests = auto.NewCounterVec(
		m.counterOpts("catalog_requests_total", "Catalog search calls by outcome"),
		[]string{"outcome"},
	)
	m.catalogLatency = auto.NewHistogram(m.histogramOpts("catalog_latency_milliseconds", "Catalog search latency", m.histogramBuckets))
	m.catalogBreakerState = auto.NewGauge(m.gaugeOpts("catalog_breaker_state", "Catalog circuit breaker state (0 closed, 1 half-open, 2 open)"))

	m.embeddingLatency = auto.NewHistogram(m.histogramOpts("embedding_latency_milliseconds", "Text embedding batch latency", m.histogramBuckets))
	m.embeddingTexts = auto.NewCounter(m.counterOpts("embedding_texts_total", "Texts passed through the embedder"))

	m.repositoryUpserts = auto.NewCounterVec(
		m.counterOpts("repository_upserts_total", "Recommendation record upserts by outcome"),
		[]string{"outcome"},
	)
	m.repositoryQueryLatency = auto.NewHistogramVec(
		m.histogramOpts("repository_query_latency_milliseconds", "Repository operation latency", m.histogramBuckets),
		[]string{"operation"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component and error type"),
		[]string{"component", "error_type"},
	)
	m.errorRateByType = auto.NewCounterVec(
		m.counterOpts("errors_by_type_total", "Errors by type and severity"),
		[]string{"error_type", "severity"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Errors by endpoint, method and error type"),
		[]string{"endpoint", "method", "error_type"},
	)
	m.errorLatency = auto.NewHistogramVec(
		m.histogramOpts("error_latency_milliseconds", "Latency of operations that ended in an error", m.histogramBuckets),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts(
		"system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	))
}

// RecordRecommendationServed counts a returned list for variant ("history" or "similar").
func RecordRecommendationServed(variant string) {
	globalManager.recommendationsServed.WithLabelValues(variant).Inc()
}

// RecordRecommendationFailed counts a request that produced no list.
func RecordRecommendationFailed(reason string) {
	globalManager.recommendationsEmpty.WithLabelValues(reason).Inc()
}

// RecordCandidatesFetched adds n catalog candidates.
func RecordCandidatesFetched(n int) {
	globalManager.candidatesFetched.Add(float64(n))
}

// RecordCandidatesExcluded adds n candidates skipped for lack of text.
func RecordCandidatesExcluded(n int) {
	globalManager.candidatesExcluded.Add(float64(n))
}

// RecordCandidateDuplicate increments the dedup counter.
func RecordCandidateDuplicate() {
	globalManager.candidatesDuplicate.Inc()
}

// RecordPipelineLatency records end-to-end latency in milliseconds.
func RecordPipelineLatency(variant string, latencyMs float64) {
	globalManager.pipelineLatency.WithLabelValues(variant).Observe(latencyMs)
}

// RecordHistoryEvent increments the history events counter.
func RecordHistoryEvent() {
	globalManager.historyEvents.Inc()
}

// RecordCatalogRequest counts a catalog call with outcome ok, error or rejected.
func RecordCatalogRequest(outcome string) {
	globalManager.catalogRequests.WithLabelValues(outcome).Inc()
}

// RecordCatalogLatency records catalog latency in milliseconds.
func RecordCatalogLatency(latencyMs float64) {
	globalManager.catalogLatency.Observe(latencyMs)
}

// UpdateCatalogBreakerState sets the breaker gauge.
func UpdateCatalogBreakerState(state float64) {
	globalManager.catalogBreakerState.Set(state)
}

// RecordEmbeddingLatency records one Encode call.
func RecordEmbeddingLatency(latencyMs float64, texts int) {
	globalManager.embeddingLatency.Observe(latencyMs)
	globalManager.embeddingTexts.Add(float64(texts))
}

// RecordRepositoryUpsert counts an upsert with outcome ok or error.
func RecordRepositoryUpsert(outcome string) {
	globalManager.repositoryUpserts.WithLabelValues(outcome).Inc()
}

// RecordRepositoryQueryLatency records repository operation latency in milliseconds.
func RecordRepositoryQueryLatency(operation string, latencyMs float64) {
	globalManager.repositoryQueryLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
