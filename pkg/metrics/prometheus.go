// Package metrics provides Prometheus metrics for the gazelink tracker binding.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the gazelink service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Stream Metrics - Sample flow through the ring buffers
	samplesBuffered *prometheus.CounterVec
	samplesEvicted  *prometheus.CounterVec
	samplesConsumed *prometheus.CounterVec
	bufferOccupancy *prometheus.GaugeVec
	bufferCapacity  *prometheus.GaugeVec

	// Subscription and Connection Health
	activeSubscriptions prometheus.Gauge
	activeConnections   prometheus.Gauge

	// Native Boundary Metrics - SDK round-trip performance
	boundaryCallLatency *prometheus.HistogramVec
	boundaryErrors      *prometheus.CounterVec

	// Calibration Metrics - Session workflow outcomes
	calibrationOps      *prometheus.CounterVec
	calibrationSessions prometheus.Gauge

	// Live Feed Metrics - WebSocket gateway
	wsClients       prometheus.Gauge
	wsFramesSent    prometheus.Counter
	wsFramesDropped prometheus.Counter

	// Error tracking
	errorsByComponent *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryBytes prometheus.Gauge
	systemCPUPercent  prometheus.Gauge
	systemGoroutines  prometheus.Gauge
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
		namespace:        "gazelink",
		subsystem:        "tracker",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Stream Metrics - What flows into and out of the ring buffers
	m.samplesBuffered = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "samples_buffered_total",
			Help:      "Total number of samples delivered by the SDK and admitted to a buffer",
		},
		[]string{"stream"},
	)

	m.samplesEvicted = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "samples_evicted_total",
			Help:      "Total number of oldest samples evicted on buffer overflow (consumer falling behind)",
		},
		[]string{"stream"},
	)

	m.samplesConsumed = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "samples_consumed_total",
			Help:      "Total number of samples drained by host consume calls",
		},
		[]string{"stream"},
	)

	m.bufferOccupancy = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "buffer_occupancy",
			Help:      "Current number of samples held per stream buffer",
		},
		[]string{"stream"},
	)

	m.bufferCapacity = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "buffer_capacity",
			Help:      "Configured capacity per stream buffer",
		},
		[]string{"stream"},
	)

	// Subscription and Connection Health
	m.activeSubscriptions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_subscriptions",
		Help:      "Current number of live stream subscriptions across all trackers",
	})

	m.activeConnections = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_connections",
		Help:      "Current number of connected tracker handles",
	})

	// Native Boundary Metrics - Hardware round-trip performance
	m.boundaryCallLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "boundary_call_latency_milliseconds",
			Help:      "Latency of synchronous native SDK calls in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"call"},
	)

	m.boundaryErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "boundary_errors_total",
			Help:      "Total number of native SDK calls that returned an error",
		},
		[]string{"call"},
	)

	// Calibration Metrics
	m.calibrationOps = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "calibration_operations_total",
			Help:      "Total number of calibration operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	m.calibrationSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "calibration_sessions_active",
		Help:      "Current number of live calibration sessions",
	})

	// Live Feed Metrics
	m.wsClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ws_clients",
		Help:      "Current number of attached WebSocket feed clients",
	})

	m.wsFramesSent = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ws_frames_sent_total",
		Help:      "Total number of frames sent to WebSocket feed clients",
	})

	m.wsFramesDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ws_frames_dropped_total",
		Help:      "Total number of frames dropped because a feed client was too slow",
	})

	// Error tracking
	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of surfaced errors by component and reason",
		},
		[]string{"component", "reason"},
	)

	// System Performance Metrics
	m.systemMemoryBytes = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_bytes",
		Help:      "Resident memory of the gazelink process in bytes",
	})

	m.systemCPUPercent = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_cpu_percent",
		Help:      "CPU utilization of the gazelink process",
	})

	m.systemGoroutines = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Current number of goroutines",
	})
}

// Registry returns the registry all gazelink metrics are registered on.
func Registry() *prometheus.Registry {
	return customRegistry
}

// RecordSampleBuffered increments the admitted-sample counter for a stream.
func RecordSampleBuffered(stream string) {
	globalManager.samplesBuffered.WithLabelValues(stream).Inc()
}

// RecordSampleEvicted increments the overflow-eviction counter for a stream.
func RecordSampleEvicted(stream string) {
	globalManager.samplesEvicted.WithLabelValues(stream).Inc()
}

// RecordSamplesConsumed adds to the consumed-sample counter for a stream.
func RecordSamplesConsumed(stream string, n int) {
	globalManager.samplesConsumed.WithLabelValues(stream).Add(float64(n))
}

// UpdateBufferOccupancy sets the current occupancy gauge for a stream.
func UpdateBufferOccupancy(stream string, n int) {
	globalManager.bufferOccupancy.WithLabelValues(stream).Set(float64(n))
}

// UpdateBufferCapacity sets the configured capacity gauge for a stream.
func UpdateBufferCapacity(stream string, n int) {
	globalManager.bufferCapacity.WithLabelValues(stream).Set(float64(n))
}

// UpdateActiveSubscriptions sets the live subscription count.
func UpdateActiveSubscriptions(n int) {
	globalManager.activeSubscriptions.Set(float64(n))
}

// UpdateActiveConnections sets the connected handle count.
func UpdateActiveConnections(n int) {
	globalManager.activeConnections.Set(float64(n))
}

// RecordBoundaryCall observes the latency of one native SDK call.
func RecordBoundaryCall(call string, elapsed time.Duration) {
	globalManager.boundaryCallLatency.WithLabelValues(call).Observe(float64(elapsed.Milliseconds()))
}

// RecordBoundaryError increments the error counter for a native SDK call.
func RecordBoundaryError(call string) {
	globalManager.boundaryErrors.WithLabelValues(call).Inc()
}

// RecordCalibrationOp records one calibration operation with its outcome.
func RecordCalibrationOp(operation, outcome string) {
	globalManager.calibrationOps.WithLabelValues(operation, outcome).Inc()
}

// UpdateCalibrationSessions sets the live calibration session count.
func UpdateCalibrationSessions(n int) {
	globalManager.calibrationSessions.Set(float64(n))
}

// UpdateWSClients sets the attached feed client count.
func UpdateWSClients(n int) {
	globalManager.wsClients.Set(float64(n))
}

// RecordWSFrameSent increments the sent-frame counter.
func RecordWSFrameSent() {
	globalManager.wsFramesSent.Inc()
}

// RecordWSFrameDropped increments the dropped-frame counter.
func RecordWSFrameDropped() {
	globalManager.wsFramesDropped.Inc()
}

// RecordErrorByComponent tracks a surfaced error by component and reason.
func RecordErrorByComponent(component, reason string) {
	globalManager.errorsByComponent.WithLabelValues(component, reason).Inc()
}

// UpdateSystemMemory sets the process resident memory gauge.
func UpdateSystemMemory(bytes uint64) {
	globalManager.systemMemoryBytes.Set(float64(bytes))
}

// UpdateSystemCPU sets the process CPU utilization gauge.
func UpdateSystemCPU(percent float64) {
	globalManager.systemCPUPercent.Set(percent)
}

// UpdateSystemGoroutines sets the goroutine count gauge.
func UpdateSystemGoroutines(n int) {
	globalManager.systemGoroutines.Set(float64(n))
}
