// Package metrics provides Prometheus metrics for the predictor service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the predictor service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Engine metrics
	computations        *prometheus.CounterVec
	computationDuration *prometheus.HistogramVec
	computationErrors   *prometheus.CounterVec
	participants        prometheus.Gauge
	scoredWeeks         prometheus.Gauge

	// Write-side metrics
	predictionsSaved  *prometheus.CounterVec
	predictionsLocked prometheus.Counter
	imports           *prometheus.CounterVec
	importedRows      *prometheus.CounterVec
	signIns           prometheus.Counter
	outcomesSet       *prometheus.CounterVec

	// Store metrics
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimited         prometheus.Counter

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// MCP metrics
	toolCalls *prometheus.CounterVec
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
		namespace:        "predictor",
		subsystem:        "contest",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.computations = auto.NewCounterVec(
		m.counterOpts("computations_total", "Total number of standings computations by kind"),
		[]string{"kind"},
	)
	m.computationDuration = auto.NewHistogramVec(
		m.histogramOpts("computation_duration_seconds", "Duration of standings computations in seconds"),
		[]string{"kind"},
	)
	m.computationErrors = auto.NewCounterVec(
		m.counterOpts("computation_errors_total", "Total number of failed standings computations by kind"),
		[]string{"kind"},
	)
	m.participants = auto.NewGauge(
		m.gaugeOpts("participants", "Number of participants on the latest leaderboard"),
	)
	m.scoredWeeks = auto.NewGauge(
		m.gaugeOpts("scored_weeks", "Number of weeks with at least one completed match"),
	)

	m.predictionsSaved = auto.NewCounterVec(
		m.counterOpts("predictions_saved_total", "Total number of saved predictions by kind"),
		[]string{"kind"},
	)
	m.predictionsLocked = auto.NewCounter(
		m.counterOpts("predictions_locked_total", "Total number of predictions rejected after the cutoff"),
	)
	m.imports = auto.NewCounterVec(
		m.counterOpts("imports_total", "Total number of data imports by kind"),
		[]string{"kind"},
	)
	m.importedRows = auto.NewCounterVec(
		m.counterOpts("imported_rows_total", "Total number of imported rows by kind"),
		[]string{"kind"},
	)
	m.signIns = auto.NewCounter(
		m.counterOpts("sign_ins_total", "Total number of user sign-ins"),
	)
	m.outcomesSet = auto.NewCounterVec(
		m.counterOpts("outcomes_set_total", "Total number of actual outcome updates by key"),
		[]string{"key"},
	)

	m.storeLatency = auto.NewHistogramVec(
		m.histogramOpts("store_operation_duration_seconds", "Store operation latency in seconds"),
		[]string{"backend", "op"},
	)
	m.storeErrors = auto.NewCounterVec(
		m.counterOpts("store_errors_total", "Total number of store errors by backend and operation"),
		[]string{"backend", "op"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_seconds", "HTTP request duration in seconds"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.rateLimited = auto.NewCounter(
		m.counterOpts("http_rate_limited_total", "Total number of requests rejected by the rate limiter"),
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component and error type"),
		[]string{"component", "error_type"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Total number of errors by endpoint, method and error type"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.toolCalls = auto.NewCounterVec(
		m.counterOpts("mcp_tool_calls_total", "Total number of MCP tool calls by tool and outcome"),
		[]string{"tool", "outcome"},
	)
}

// Engine Metrics Functions.

// RecordComputation records a successful computation of kind and its duration.
func RecordComputation(kind string, seconds float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.computations.WithLabelValues(kind).Inc()
	globalManager.computationDuration.WithLabelValues(kind).Observe(seconds)
}

// RecordComputationError increments the failed computation counter.
func RecordComputationError(kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.computationErrors.WithLabelValues(kind).Inc()
}

// UpdateParticipants sets the number of leaderboard participants.
func UpdateParticipants(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.participants.Set(float64(count))
}

// UpdateScoredWeeks sets the number of weeks that have winners.
func UpdateScoredWeeks(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.scoredWeeks.Set(float64(count))
}

// Write-side Metrics Functions.

// RecordPredictionsSaved adds n saved predictions of kind ("match" or "meta").
func RecordPredictionsSaved(kind string, n int) {
	if !globalManager.enabled {
		return
	}
	globalManager.predictionsSaved.WithLabelValues(kind).Add(float64(n))
}

// RecordPredictionLocked increments the locked prediction counter.
func RecordPredictionLocked() {
	if !globalManager.enabled {
		return
	}
	globalManager.predictionsLocked.Inc()
}

// RecordImport records an import of kind with its row count.
func RecordImport(kind string, rows int) {
	if !globalManager.enabled {
		return
	}
	globalManager.imports.WithLabelValues(kind).Inc()
	globalManager.importedRows.WithLabelValues(kind).Add(float64(rows))
}

// RecordSignIn increments the sign-in counter.
func RecordSignIn() {
	if !globalManager.enabled {
		return
	}
	globalManager.signIns.Inc()
}

// RecordOutcomeSet increments the outcome update counter for key.
func RecordOutcomeSet(key string) {
	if !globalManager.enabled {
		return
	}
	globalManager.outcomesSet.WithLabelValues(key).Inc()
}

// Store Metrics Functions.

// RecordStoreLatency records the latency of a store operation.
func RecordStoreLatency(backend, op string, seconds float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.storeLatency.WithLabelValues(backend, op).Observe(seconds)
}

// RecordStoreError increments the store error counter.
func RecordStoreError(backend, op string) {
	if !globalManager.enabled {
		return
	}
	globalManager.storeErrors.WithLabelValues(backend, op).Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in seconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, seconds float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(seconds)
}

// RecordRateLimited increments the rate limited request counter.
func RecordRateLimited() {
	if !globalManager.enabled {
		return
	}
	globalManager.rateLimited.Inc()
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// MCP Metrics Functions.

// RecordToolCall increments the tool call counter; outcome is "ok" or "error".
func RecordToolCall(tool, outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.toolCalls.WithLabelValues(tool, outcome).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
