// Package metrics provides Prometheus metrics for the rollcall attendance service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Recognition pipeline
	recognitions    *prometheus.CounterVec
	eventsRecorded  prometheus.Counter
	duplicates      prometheus.Counter
	matchDistance   prometheus.Histogram
	pipelineLatency prometheus.Histogram

	// Enrollment catalog
	enrollments         prometheus.Counter
	enrollmentDeletions prometheus.Counter
	catalogSamples      prometheus.Gauge
	catalogCache        *prometheus.CounterVec

	// Store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
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
		namespace:        "rollcall",
		subsystem:        "attendance",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
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

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.recognitions = auto.NewCounterVec(
		m.counterOpts("recognitions_total", "Recognition attempts by outcome status"),
		[]string{"status"},
	)
	m.eventsRecorded = auto.NewCounter(m.counterOpts("events_recorded_total", "Attendance events written to the ledger"))
	m.duplicates = auto.NewCounter(m.counterOpts("duplicates_total", "Recognitions of identities already recorded for the session"))
	m.matchDistance = auto.NewHistogram(m.histogramOpts(
		"match_distance", "Best L2 distance per recognition attempt",
		[]float64{0.1, 0.2, 0.4, 0.6, 0.8, 1.0, 1.2, 1.4, 2, 5, 10, 20},
	))
	m.pipelineLatency = auto.NewHistogram(m.histogramOpts(
		"pipeline_latency_milliseconds", "Recognition pipeline latency in milliseconds", m.histogramBuckets,
	))

	m.enrollments = auto.NewCounter(m.counterOpts("enrollments_total", "Enrollment samples created"))
	m.enrollmentDeletions = auto.NewCounter(m.counterOpts("enrollment_deletions_total", "Enrollment samples deleted"))
	m.catalogSamples = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "catalog_samples",
		Help:        "Samples in the most recently loaded catalog",
		ConstLabels: m.customLabels,
	})
	m.catalogCache = auto.NewCounterVec(
		m.counterOpts("catalog_cache_total", "Catalog cache lookups by result"),
		[]string{"result"},
	)

	m.storeLatency = auto.NewHistogramVec(
		m.histogramOpts("store_latency_milliseconds", "Store operation latency in milliseconds", m.histogramBuckets),
		[]string{"op"},
	)
	m.storeErrors = auto.NewCounterVec(
		m.counterOpts("store_errors_total", "Store operation failures"),
		[]string{"op"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_seconds", "HTTP request duration in seconds", prometheus.DefBuckets),
		[]string{"endpoint", "method", "status_code"},
	)
}

// RecordRecognition counts a recognition attempt by status.
func RecordRecognition(status string) {
	globalManager.recognitions.WithLabelValues(status).Inc()
}

// RecordEventRecorded increments the ledger writes counter.
func RecordEventRecorded() {
	globalManager.eventsRecorded.Inc()
}

// RecordDuplicate increments the duplicate recognitions counter.
func RecordDuplicate() {
	globalManager.duplicates.Inc()
}

// RecordMatchDistance observes the best distance of an attempt.
func RecordMatchDistance(d float64) {
	globalManager.matchDistance.Observe(d)
}

// RecordPipelineLatency records pipeline latency in milliseconds.
func RecordPipelineLatency(latencyMs float64) {
	globalManager.pipelineLatency.Observe(latencyMs)
}

// RecordEnrollment increments the enrollment counter.
func RecordEnrollment() {
	globalManager.enrollments.Inc()
}

// RecordEnrollmentDeletion increments the enrollment deletion counter.
func RecordEnrollmentDeletion() {
	globalManager.enrollmentDeletions.Inc()
}

// UpdateCatalogSamples sets the size of the last loaded catalog.
func UpdateCatalogSamples(n int) {
	globalManager.catalogSamples.Set(float64(n))
}

// RecordCatalogCache counts a cache lookup; hit selects the result label.
func RecordCatalogCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	globalManager.catalogCache.WithLabelValues(result).Inc()
}

// RecordStoreLatency records store operation latency in milliseconds.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(op string) {
	globalManager.storeErrors.WithLabelValues(op).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in seconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// GetRegistry returns the registry backing the package-level recorders.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
