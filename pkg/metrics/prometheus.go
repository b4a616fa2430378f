// Package metrics provides Prometheus metrics for the stratowatch service.
//
// A single Manager registers every collector on a private registry at init
// time; the package-level Record*/Update* functions write to it so callers
// never pass the manager around.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Scoring - what the service exists for
	fleetsScored        prometheus.Counter
	objectsScored       *prometheus.CounterVec
	objectsInvalid      prometheus.Counter
	flagsRaised         *prometheus.CounterVec
	fleetScoringLatency prometheus.Histogram
	inlineFallbacks     prometheus.Counter

	// Profiles
	profilesBuilt  prometheus.Counter
	profileLevels  *prometheus.CounterVec
	profileLatency prometheus.Histogram

	// Anomaly board
	boardEntries       prometheus.Gauge
	boardAnomalous     prometheus.Gauge
	boardUpdateLatency prometheus.Histogram
	boardQueryLatency  prometheus.Histogram

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec

	// Workers
	workerActiveCount       prometheus.Gauge
	workerJobsPerSecond     prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRateLimited     *prometheus.CounterVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
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

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "stratowatch",
		subsystem:        "anomaly",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.fleetsScored = m.counter("fleets_scored_total", "Total number of fleet scoring calls")
	m.objectsScored = m.counterVec("objects_scored_total", "Objects scored by classification", "classification")
	m.objectsInvalid = m.counter("objects_invalid_total", "Objects rejected as invalid input")
	m.flagsRaised = m.counterVec("telemetry_flags_total", "Telemetry exception flags raised", "flag")
	m.fleetScoringLatency = m.histogram("fleet_scoring_latency_milliseconds", "Fleet scoring latency in milliseconds", m.histogramBuckets)
	m.inlineFallbacks = m.counter("inline_fallbacks_total", "Fleet elements scored inline because the queue refused them")

	m.profilesBuilt = m.counter("profiles_built_total", "Total number of deviation profiles built")
	m.profileLevels = m.counterVec("profile_levels_total", "Sounding levels processed by result", "result")
	m.profileLatency = m.histogram("profile_latency_milliseconds", "Profile build latency in milliseconds", m.histogramBuckets)

	m.boardEntries = m.gauge("board_entries", "Objects currently on the anomaly board")
	m.boardAnomalous = m.gauge("board_anomalous", "Anomalous objects currently on the anomaly board")
	m.boardUpdateLatency = m.histogram("board_update_latency_milliseconds", "Anomaly board update latency", m.histogramBuckets)
	m.boardQueryLatency = m.histogram("board_query_latency_milliseconds", "Anomaly board query latency", m.histogramBuckets)

	m.queueSize = m.gauge("queue_size", "Current number of queued scoring jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of queued scoring jobs")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Scoring jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Scoring jobs dequeued")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Refused enqueues by reason", "reason")

	m.workerActiveCount = m.gauge("worker_active_count", "Number of running workers")
	m.workerJobsPerSecond = m.gauge("worker_jobs_per_second", "Jobs processed per second over the last interval")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Per-job worker latency", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Worker failures such as scorer panics")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.httpRateLimited = m.counterVec("http_rate_limited_total", "Requests refused by the rate limiter", "endpoint")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint, method and type", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds", "Latency of operations that ended in an error", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordFleetScored records one fleet scoring call and its latency.
func RecordFleetScored(latencyMs float64) {
	globalManager.fleetsScored.Inc()
	globalManager.fleetScoringLatency.Observe(latencyMs)
}

// RecordObjectScored counts a scored object under its classification.
func RecordObjectScored(classification string) {
	globalManager.objectsScored.WithLabelValues(classification).Inc()
}

// RecordObjectInvalid counts an object rejected as invalid input.
func RecordObjectInvalid() {
	globalManager.objectsInvalid.Inc()
}

// RecordFlagRaised counts a telemetry exception flag.
func RecordFlagRaised(flag string) {
	globalManager.flagsRaised.WithLabelValues(flag).Inc()
}

// RecordInlineFallback counts a fleet element the queue refused.
func RecordInlineFallback() {
	globalManager.inlineFallbacks.Inc()
}

// RecordProfileBuilt records one profile build and its latency.
func RecordProfileBuilt(latencyMs float64) {
	globalManager.profilesBuilt.Inc()
	globalManager.profileLatency.Observe(latencyMs)
}

// RecordProfileLevels adds n levels under result (valid, invalid, anomalous).
func RecordProfileLevels(result string, n int) {
	globalManager.profileLevels.WithLabelValues(result).Add(float64(n))
}

// UpdateBoardEntries sets the number of objects on the board.
func UpdateBoardEntries(count int) {
	globalManager.boardEntries.Set(float64(count))
}

// UpdateBoardAnomalous sets the number of anomalous objects on the board.
func UpdateBoardAnomalous(count int) {
	globalManager.boardAnomalous.Set(float64(count))
}

// RecordBoardUpdateLatency records board write latency.
func RecordBoardUpdateLatency(latencyMs float64) {
	globalManager.boardUpdateLatency.Observe(latencyMs)
}

// RecordBoardQueryLatency records board read latency.
func RecordBoardQueryLatency(latencyMs float64) {
	globalManager.boardQueryLatency.Observe(latencyMs)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a refused enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
	globalManager.errorRateByComponent.WithLabelValues("queue", reason).Inc()
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerJobsPerSecond sets the recent job throughput.
func UpdateWorkerJobsPerSecond(rate float64) {
	globalManager.workerJobsPerSecond.Set(rate)
}

// RecordWorkerProcessingLatency records per-job worker latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordHTTPRateLimited counts a request refused by the rate limiter.
func RecordHTTPRateLimited(endpoint string) {
	globalManager.httpRateLimited.WithLabelValues(endpoint).Inc()
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

// UpdateSystemMemoryUsage sets the heap memory in use in bytes.
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
