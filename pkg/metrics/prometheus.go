// Package metrics provides Prometheus metrics for the toolrank ranking service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Scoring pass
	scoringPassDuration prometheus.Histogram
	scoringPasses       *prometheus.CounterVec
	toolsScored         prometheus.Counter
	factorClamps        *prometheus.CounterVec
	deltaClamps         *prometheus.CounterVec
	dataQualityIssues   *prometheus.CounterVec
	evaluatorPanics     *prometheus.CounterVec

	// Evidence events
	eventsReceived  *prometheus.CounterVec
	eventsApplied   *prometheus.CounterVec
	eventsDuplicate prometheus.Counter
	eventsRejected  *prometheus.CounterVec

	// Periods and standings
	periodsFinalized   prometheus.Counter
	movements          *prometheus.CounterVec
	currentPeriodTools prometheus.Gauge
	standingsTools     prometheus.Gauge

	// Repository
	repositoryLatency *prometheus.HistogramVec
	repositoryErrors  *prometheus.CounterVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec

	// Workers
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // avoids default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "toolrank",
		subsystem:        "engine",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	passBuckets := []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}
	m.scoringPassDuration = auto.NewHistogram(m.histogramOpts("scoring_pass_duration_milliseconds",
		"Duration of a full scoring pass in milliseconds", passBuckets))
	m.scoringPasses = auto.NewCounterVec(m.counterOpts("scoring_passes_total",
		"Scoring passes by outcome"), []string{"status"})
	m.toolsScored = auto.NewCounter(m.counterOpts("tools_scored_total",
		"Tools scored across all passes"))
	m.factorClamps = auto.NewCounterVec(m.counterOpts("factor_clamps_total",
		"Evaluator outputs that fell outside [0,100] and were clamped"), []string{"factor"})
	m.deltaClamps = auto.NewCounterVec(m.counterOpts("delta_clamps_total",
		"Delta adjustments truncated by the per-factor bound"), []string{"factor"})
	m.dataQualityIssues = auto.NewCounterVec(m.counterOpts("data_quality_issues_total",
		"Data-quality findings in tool metrics"), []string{"kind"})
	m.evaluatorPanics = auto.NewCounterVec(m.counterOpts("evaluator_panics_total",
		"Recovered evaluator panics"), []string{"factor"})

	m.eventsReceived = auto.NewCounterVec(m.counterOpts("events_received_total",
		"Evidence events accepted for processing"), []string{"type"})
	m.eventsApplied = auto.NewCounterVec(m.counterOpts("events_applied_total",
		"Evidence events folded into delta scores"), []string{"type"})
	m.eventsDuplicate = auto.NewCounter(m.counterOpts("events_duplicate_total",
		"Duplicate evidence events dropped"))
	m.eventsRejected = auto.NewCounterVec(m.counterOpts("events_rejected_total",
		"Evidence events rejected"), []string{"reason"})

	m.periodsFinalized = auto.NewCounter(m.counterOpts("periods_finalized_total",
		"Ranking periods persisted and made current"))
	m.movements = auto.NewCounterVec(m.counterOpts("movements_total",
		"Movement classifications emitted at period close"), []string{"class"})
	m.currentPeriodTools = auto.NewGauge(m.gaugeOpts("current_period_tools",
		"Number of tools ranked in the current period"))
	m.standingsTools = auto.NewGauge(m.gaugeOpts("standings_tools",
		"Number of tools in the live standings index"))

	m.repositoryLatency = auto.NewHistogramVec(m.histogramOpts("repository_latency_milliseconds",
		"Repository operation latency in milliseconds", m.histogramBuckets), []string{"op"})
	m.repositoryErrors = auto.NewCounterVec(m.counterOpts("repository_errors_total",
		"Repository operation failures"), []string{"op"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current size of the event queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum capacity of the event queue"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Queue size divided by capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Events enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeued_total", "Events dequeued"))
	m.queueEnqueueErrors = auto.NewCounterVec(m.counterOpts("queue_enqueue_errors_total",
		"Failed enqueue attempts"), []string{"reason"})

	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Running event workers"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds",
		"Time to apply one event in milliseconds", m.histogramBuckets))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Worker processing failures"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.histogramBuckets), []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds",
		"Average GC pause in milliseconds", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// RecordScoringPass records the duration and outcome of one scoring pass.
func RecordScoringPass(status string, durationMs float64, tools int) {
	globalManager.scoringPasses.WithLabelValues(status).Inc()
	globalManager.scoringPassDuration.Observe(durationMs)
	globalManager.toolsScored.Add(float64(tools))
}

// RecordFactorClamp counts an evaluator output that needed clamping.
func RecordFactorClamp(factor string) {
	globalManager.factorClamps.WithLabelValues(factor).Inc()
}

// RecordDeltaClamp counts a delta adjustment truncated by its bound.
func RecordDeltaClamp(factor string) {
	globalManager.deltaClamps.WithLabelValues(factor).Inc()
}

// RecordDataQualityIssue counts a data-quality finding.
func RecordDataQualityIssue(kind string) {
	globalManager.dataQualityIssues.WithLabelValues(kind).Inc()
}

// RecordEvaluatorPanic counts a recovered evaluator panic.
func RecordEvaluatorPanic(factor string) {
	globalManager.evaluatorPanics.WithLabelValues(factor).Inc()
}

// RecordEventReceived counts an accepted evidence event.
func RecordEventReceived(eventType string) {
	globalManager.eventsReceived.WithLabelValues(eventType).Inc()
}

// RecordEventApplied counts an event folded into a delta score.
func RecordEventApplied(eventType string) {
	globalManager.eventsApplied.WithLabelValues(eventType).Inc()
}

// RecordEventDuplicate counts a dropped duplicate event.
func RecordEventDuplicate() {
	globalManager.eventsDuplicate.Inc()
}

// RecordEventRejected counts a rejected event.
func RecordEventRejected(reason string) {
	globalManager.eventsRejected.WithLabelValues(reason).Inc()
}

// RecordPeriodFinalized counts a period made current.
func RecordPeriodFinalized(tools int) {
	globalManager.periodsFinalized.Inc()
	globalManager.currentPeriodTools.Set(float64(tools))
}

// RecordMovement counts a movement classification.
func RecordMovement(class string) {
	globalManager.movements.WithLabelValues(class).Inc()
}

// UpdateStandingsTools sets the live standings size.
func UpdateStandingsTools(count int) {
	globalManager.standingsTools.Set(float64(count))
}

// RecordRepositoryLatency records repository operation latency.
func RecordRepositoryLatency(op string, latencyMs float64) {
	globalManager.repositoryLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordRepositoryError counts a failed repository operation.
func RecordRepositoryError(op string) {
	globalManager.repositoryErrors.WithLabelValues(op).Inc()
}

// UpdateQueueSize sets the current queue size and utilization.
func UpdateQueueSize(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
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

// RecordQueueEnqueueError counts a failed enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
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
