// Package metrics provides Prometheus metrics for the arena judging service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the arena service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Judging
	scoresSubmitted   *prometheus.CounterVec
	scoreRejections   *prometheus.CounterVec
	aggregations      prometheus.Counter
	aggregationTiming prometheus.Histogram

	// Leaderboards
	leaderboardCalcs   *prometheus.CounterVec
	leaderboardTiming  *prometheus.HistogramVec
	leaderboardEntries *prometheus.GaugeVec
	historyReads       prometheus.Counter
	trendDirections    *prometheus.CounterVec

	// Live recompute
	recomputeTriggered prometheus.Counter
	recomputeCoalesced prometheus.Counter
	recomputeTiming    prometheus.Histogram
	liveSubscribers    prometheus.Gauge
	notificationsLost  prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors *prometheus.CounterVec
	workerCount        prometheus.Gauge

	// Stores
	storeLatency *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// Runtime
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
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
		namespace:        "arena",
		subsystem:        "judging",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
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

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: m.histogramBuckets}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.scoresSubmitted = auto.NewCounterVec(m.counterOpts("scores_submitted_total", "Judge scores written, by create or update"), []string{"action"})
	m.scoreRejections = auto.NewCounterVec(m.counterOpts("score_rejections_total", "Judge scores rejected before storage, by reason"), []string{"reason"})
	m.aggregations = auto.NewCounter(m.counterOpts("aggregations_total", "Per-submission score aggregations computed"))
	m.aggregationTiming = auto.NewHistogram(m.histogramOpts("aggregation_duration_milliseconds", "Time to fetch and aggregate one submission's scores"))

	m.leaderboardCalcs = auto.NewCounterVec(m.counterOpts("leaderboard_calculations_total", "Leaderboards calculated, by scope"), []string{"scope"})
	m.leaderboardTiming = auto.NewHistogramVec(m.histogramOpts("leaderboard_calculation_duration_milliseconds", "Leaderboard calculation time, by scope"), []string{"scope"})
	m.leaderboardEntries = auto.NewGaugeVec(m.gaugeOpts("leaderboard_entries", "Entries in the most recently calculated leaderboard, by scope"), []string{"scope"})
	m.historyReads = auto.NewCounter(m.counterOpts("history_reads_total", "Team score histories built"))
	m.trendDirections = auto.NewCounterVec(m.counterOpts("trend_classifications_total", "Score trends classified, by direction"), []string{"direction"})

	m.recomputeTriggered = auto.NewCounter(m.counterOpts("recompute_triggered_total", "Live leaderboard recomputations started"))
	m.recomputeCoalesced = auto.NewCounter(m.counterOpts("recompute_coalesced_total", "Score change notifications folded into a pending recomputation"))
	m.recomputeTiming = auto.NewHistogram(m.histogramOpts("recompute_duration_milliseconds", "Live leaderboard recomputation time"))
	m.liveSubscribers = auto.NewGauge(m.gaugeOpts("live_subscribers", "Open live leaderboard subscriptions"))
	m.notificationsLost = auto.NewCounter(m.counterOpts("notifications_dropped_total", "Score change notifications dropped on a full queue or failed publish"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current size of the notification queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Capacity of the notification queue"))
	m.queueEnqueueErrors = auto.NewCounterVec(m.counterOpts("queue_enqueue_errors_total", "Failed enqueues, by reason"), []string{"reason"})
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Recompute workers running"))

	m.storeLatency = auto.NewHistogramVec(m.histogramOpts("store_operation_duration_milliseconds", "Collaborator store call latency, by operation"), []string{"operation"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"), []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_total", "Errors by component and type"), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
}

// Judging.

// RecordScoreSubmitted counts a stored score; action is "create" or "update".
func RecordScoreSubmitted(action string) {
	globalManager.scoresSubmitted.WithLabelValues(action).Inc()
}

// RecordScoreRejected counts a score refused before storage.
func RecordScoreRejected(reason string) {
	globalManager.scoreRejections.WithLabelValues(reason).Inc()
}

// RecordAggregation records one submission aggregation and its latency.
func RecordAggregation(latencyMs float64) {
	globalManager.aggregations.Inc()
	globalManager.aggregationTiming.Observe(latencyMs)
}

// Leaderboards.

// RecordLeaderboardCalculation records a leaderboard build for scope.
func RecordLeaderboardCalculation(scope string, entries int, latencyMs float64) {
	globalManager.leaderboardCalcs.WithLabelValues(scope).Inc()
	globalManager.leaderboardTiming.WithLabelValues(scope).Observe(latencyMs)
	globalManager.leaderboardEntries.WithLabelValues(scope).Set(float64(entries))
}

// RecordHistoryRead counts a team history build.
func RecordHistoryRead() {
	globalManager.historyReads.Inc()
}

// RecordTrend counts a classified trend.
func RecordTrend(direction string) {
	globalManager.trendDirections.WithLabelValues(direction).Inc()
}

// Live recompute.

// RecordRecomputeTriggered counts a started recomputation.
func RecordRecomputeTriggered() {
	globalManager.recomputeTriggered.Inc()
}

// RecordRecomputeCoalesced counts a notification absorbed by a pending recomputation.
func RecordRecomputeCoalesced() {
	globalManager.recomputeCoalesced.Inc()
}

// RecordRecomputeLatency records how long a recomputation took.
func RecordRecomputeLatency(latencyMs float64) {
	globalManager.recomputeTiming.Observe(latencyMs)
}

// UpdateLiveSubscribers sets the number of open live subscriptions.
func UpdateLiveSubscribers(count int) {
	globalManager.liveSubscribers.Set(float64(count))
}

// RecordNotificationDropped counts a lost score change notification.
func RecordNotificationDropped() {
	globalManager.notificationsLost.Inc()
}

// Queue.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueueError counts a failed enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// Stores.

// RecordStoreLatency records a collaborator store call latency.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// HTTP.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// Runtime.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
