package livecmp

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "livecmp").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus collectors.
type MetricsOption func(*MetricsConfig)

// WithMetricsNamespace sets the metrics namespace.
func WithMetricsNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithMetricsRegistry sets the Prometheus registry.
func WithMetricsRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// WithMetricsBuckets sets the histogram buckets.
func WithMetricsBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// Metrics holds the collectors updated by the manager. A nil *Metrics
// records nothing.
//
// Collected:
//   - livecmp_requests_total: update requests by component and outcome
//   - livecmp_request_duration_seconds: update request duration by component
//   - livecmp_validation_failures_total: actions ending in field errors
//   - livecmp_native_calls_total: native calls drained into responses
//   - livecmp_pages_total: full-page renders by component and outcome
type Metrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	validations *prometheus.CounterVec
	natives     *prometheus.CounterVec
	pages       *prometheus.CounterVec
}

// NewMetrics registers the collectors.
//
//	reg := prometheus.NewRegistry()
//	metrics := livecmp.NewMetrics(livecmp.WithMetricsRegistry(reg))
//	registry := livecmp.NewRegistry(key, livecmp.WithMetrics(metrics))
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := MetricsConfig{
		Namespace: "livecmp",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "requests_total",
			Help:        "Total number of component update requests",
			ConstLabels: config.ConstLabels,
		}, []string{"component", "outcome"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "request_duration_seconds",
			Help:        "Component update request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"component"}),

		validations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "validation_failures_total",
			Help:        "Total number of actions that ended with field errors",
			ConstLabels: config.ConstLabels,
		}, []string{"component", "action"}),

		natives: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "native_calls_total",
			Help:        "Total number of native calls sent to clients",
			ConstLabels: config.ConstLabels,
		}, []string{"name"}),

		pages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "pages_total",
			Help:        "Total number of full-page renders",
			ConstLabels: config.ConstLabels,
		}, []string{"component", "outcome"}),
	}
}

// Request outcomes.
const (
	outcomeOK         = "ok"
	outcomeRedirect   = "redirect"
	outcomeDispatch   = "dispatch_error"
	outcomeValidation = "validation"
	outcomeError      = "error"
)

func (m *Metrics) observeRequest(component, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(component, outcome).Inc()
	m.duration.WithLabelValues(component).Observe(d.Seconds())
}

func (m *Metrics) observeValidation(component, action string) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(component, action).Inc()
}

func (m *Metrics) observeNative(name string) {
	if m == nil {
		return
	}
	m.natives.WithLabelValues(name).Inc()
}

func (m *Metrics) observePage(component, outcome string) {
	if m == nil {
		return
	}
	m.pages.WithLabelValues(component, outcome).Inc()
}
