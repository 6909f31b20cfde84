// Package metrics provides Prometheus metrics for the preference ranking
// engine and the reference preference store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by the submission and revert counters.
const (
	OutcomeLocked         = "locked"
	OutcomeUnlocked       = "unlocked"
	OutcomeIncomplete     = "incomplete"
	OutcomeCancelled      = "cancelled"
	OutcomePartialFailure = "partial_failure"
	OutcomeSessionExpired = "session_expired"
	OutcomeError          = "error"
	OutcomeInvalidState   = "invalid_state"
)

// Selection rejection reasons.
const (
	ReasonSelectionFull    = "full"
	ReasonUnknownCandidate = "unknown"
)

// Manager manages all Prometheus metrics for prefrank.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Workflow metrics
	selectionRejections *prometheus.CounterVec
	submissions         *prometheus.CounterVec
	reverts             *prometheus.CounterVec
	rankWrites          *prometheus.CounterVec

	// Remote store client
	remoteRetries         *prometheus.CounterVec
	remoteRequestDuration *prometheus.HistogramVec

	// HTTP server
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Preference store
	storeRows         prometheus.Gauge
	storeLockedScopes prometheus.Gauge
	storeQueryLatency *prometheus.HistogramVec
	idempotentReplays prometheus.Counter
	errorsByComponent *prometheus.CounterVec

	// Process
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "prefrank",
		subsystem:        "",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
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

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.selectionRejections = m.counterVec("selection_rejections_total",
		"Toggles rejected by the selection manager", "reason")
	m.submissions = m.counterVec("submissions_total",
		"Submit attempts by flow and outcome", "flow", "outcome")
	m.reverts = m.counterVec("reverts_total",
		"Revert attempts by flow and outcome", "flow", "outcome")
	m.rankWrites = m.counterVec("rank_writes_total",
		"Per-item upserts and deletes issued by the coordinator", "op", "result")

	m.remoteRetries = m.counterVec("remote_retries_total",
		"Retried calls to the remote preference store", "op")
	m.remoteRequestDuration = m.histogramVec("remote_request_duration_milliseconds",
		"Remote preference store call latency in milliseconds", "op", "status_code")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.storeRows = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "store_rows",
		Help:        "Persisted rank rows across all scopes",
		ConstLabels: m.constLabels,
	})
	m.storeLockedScopes = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "store_locked_scopes",
		Help:        "Scopes whose ranking is currently locked",
		ConstLabels: m.constLabels,
	})
	m.storeQueryLatency = m.histogramVec("store_query_latency_milliseconds",
		"Preference store operation latency in milliseconds", "op")
	m.idempotentReplays = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "idempotent_replays_total",
		Help:        "Upserts received again under an idempotency key already seen",
		ConstLabels: m.constLabels,
	})
	m.errorsByComponent = m.counterVec("errors_by_component_total",
		"Total number of errors by component", "component", "error_type")

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_memory_usage_bytes",
		Help:        "Heap bytes allocated",
		ConstLabels: m.constLabels,
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_goroutines",
		Help:        "Number of running goroutines",
		ConstLabels: m.constLabels,
	})
}

// RecordSelectionRejected counts a rejected toggle.
func RecordSelectionRejected(reason string) {
	globalManager.selectionRejections.WithLabelValues(reason).Inc()
}

// RecordSubmission counts a submit attempt.
func RecordSubmission(flow, outcome string) {
	globalManager.submissions.WithLabelValues(flow, outcome).Inc()
}

// RecordRevert counts a revert attempt.
func RecordRevert(flow, outcome string) {
	globalManager.reverts.WithLabelValues(flow, outcome).Inc()
}

// RecordRankWrite counts one upsert or delete.
func RecordRankWrite(op string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	globalManager.rankWrites.WithLabelValues(op, result).Inc()
}

// RecordRemoteRetry counts a retried remote call.
func RecordRemoteRetry(op string) {
	globalManager.remoteRetries.WithLabelValues(op).Inc()
}

// RecordRemoteRequest records one remote store call.
func RecordRemoteRequest(op, statusCode string, latencyMs float64) {
	globalManager.remoteRequestDuration.WithLabelValues(op, statusCode).Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateStoreRows sets the number of persisted rank rows.
func UpdateStoreRows(count int) {
	globalManager.storeRows.Set(float64(count))
}

// UpdateLockedScopes sets the number of locked scopes.
func UpdateLockedScopes(count int) {
	globalManager.storeLockedScopes.Set(float64(count))
}

// RecordStoreLatency records a preference store operation latency.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeQueryLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordIdempotentReplay counts an upsert replayed under a known key.
func RecordIdempotentReplay() {
	globalManager.idempotentReplays.Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
