// Package metrics provides Prometheus metrics for the Hunter ranking service.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values shared by callers.
const (
	PathCloud   = "cloud"
	PathLocal   = "local"
	PathDefault = "default"

	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ranking
	scoreSubmissions *prometheus.CounterVec
	rankingReads     *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
	ledgerRecords    prometheus.Gauge

	// Remote store
	remoteLatency     *prometheus.HistogramVec
	remoteErrors      *prometheus.CounterVec
	profileCacheHits  *prometheus.CounterVec
	enrichmentSkipped prometheus.Counter

	// Migration and history
	migrationRecords *prometheus.CounterVec
	migrationRuns    *prometheus.CounterVec
	lastSyncUnix     prometheus.Gauge
	historySaves     *prometheus.CounterVec

	// Local storage
	kvErrors *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// Process
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// process pairs the process-wide manager with the registry it registered on.
// A custom registry keeps the default Go collectors out.
type process struct {
	manager  *Manager
	registry *prometheus.Registry
}

var current atomic.Pointer[process] //nolint:gochecknoglobals // process-wide metrics manager

func init() { //nolint:gochecknoinits // global metrics setup
	Configure()
}

// Configure replaces the process-wide manager with one built from opts on a
// fresh registry. Handlers built from GetRegistry before the call keep
// serving the old registry.
func Configure(opts ...Option) *Manager {
	registry := prometheus.NewRegistry()
	opts = append(opts[:len(opts):len(opts)], WithPrometheusRegistry(registry))
	m := NewManager(opts...)
	current.Store(&process{manager: m, registry: registry})
	return m
}

func global() *Manager {
	return current.Load().manager
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "hunter",
		subsystem:        "ranking",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.scoreSubmissions = m.counterVec("score_submissions_total",
		"Score writes by storage path and outcome", "path", "outcome")
	m.rankingReads = m.counterVec("ranking_reads_total",
		"Ranking reads by operation and the path that served them", "operation", "path")
	m.fallbacks = m.counterVec("fallbacks_total",
		"Cloud failures that were served from the local store or a default", "operation")
	m.ledgerRecords = m.gauge("local_ledger_records",
		"Number of score records held in the local ledger")

	m.remoteLatency = m.histogramVec("remote_call_latency_milliseconds",
		"Latency of remote store calls in milliseconds", m.histogramBuckets, "operation")
	m.remoteErrors = m.counterVec("remote_call_errors_total",
		"Remote store call failures", "operation")
	m.profileCacheHits = m.counterVec("profile_cache_lookups_total",
		"Profile lookups by cache result", "result")
	m.enrichmentSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "enrichment_skipped_total",
		Help:        "Profile lookups that failed and left an entry without enrichment",
		ConstLabels: m.constLabels,
	})

	m.migrationRecords = m.counterVec("migration_records_total",
		"Records handled by local to cloud migration", "kind", "outcome")
	m.migrationRuns = m.counterVec("migration_runs_total",
		"Local to cloud migration runs", "kind", "outcome")
	m.lastSyncUnix = m.gauge("last_sync_unix",
		"Unix timestamp of the last successful score migration")
	m.historySaves = m.counterVec("history_saves_total",
		"Game history writes by the path that stored them", "path")

	m.kvErrors = m.counterVec("kv_errors_total",
		"Local key-value storage failures", "backend", "op")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.histogramBuckets, "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total",
		"Total number of errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total",
		"Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Total number of errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds",
		"Latency of operations that resulted in errors", m.histogramBuckets, "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_gc_pause_time_milliseconds",
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: m.constLabels,
	})
}

// RecordScoreSubmission counts a score write on one storage path.
func RecordScoreSubmission(path, outcome string) {
	global().scoreSubmissions.WithLabelValues(path, outcome).Inc()
}

// RecordRankingRead counts a ranking read served by path.
func RecordRankingRead(operation, path string) {
	global().rankingReads.WithLabelValues(operation, path).Inc()
}

// RecordFallback counts a cloud failure that degraded to local or default data.
func RecordFallback(operation string) {
	global().fallbacks.WithLabelValues(operation).Inc()
}

// UpdateLedgerRecords sets the local ledger size.
func UpdateLedgerRecords(count int) {
	global().ledgerRecords.Set(float64(count))
}

// RecordRemoteCall observes a remote store call and counts it as an error when err is non-nil.
func RecordRemoteCall(operation string, latencyMs float64, err error) {
	global().remoteLatency.WithLabelValues(operation).Observe(latencyMs)
	if err != nil {
		global().remoteErrors.WithLabelValues(operation).Inc()
	}
}

// RecordProfileCache counts a profile cache hit or miss.
func RecordProfileCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	global().profileCacheHits.WithLabelValues(result).Inc()
}

// RecordEnrichmentSkipped counts a profile lookup failure during ranking enrichment.
func RecordEnrichmentSkipped() {
	global().enrichmentSkipped.Inc()
}

// RecordMigrationRecord counts one migrated record. kind is "scores" or "history".
func RecordMigrationRecord(kind, outcome string) {
	global().migrationRecords.WithLabelValues(kind, outcome).Inc()
}

// RecordMigrationRun counts one migration run.
func RecordMigrationRun(kind, outcome string) {
	global().migrationRuns.WithLabelValues(kind, outcome).Inc()
}

// UpdateLastSync sets the last successful sync time.
func UpdateLastSync(unix int64) {
	global().lastSyncUnix.Set(float64(unix))
}

// RecordHistorySave counts a history write on path.
func RecordHistorySave(path string) {
	global().historySaves.WithLabelValues(path).Inc()
}

// RecordKVError counts a local storage failure.
func RecordKVError(backend, op string) {
	global().kvErrors.WithLabelValues(backend, op).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	global().httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	global().httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	global().errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	global().errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	global().errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	global().errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	global().systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	global().systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	global().systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry of the process-wide manager.
func GetRegistry() *prometheus.Registry {
	return current.Load().registry
}
