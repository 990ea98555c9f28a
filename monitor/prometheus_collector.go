package monitor

import (
	"fmt"
	"time"

	"github.com/glimte/mmate-intercept/contracts"
	"github.com/glimte/mmate-intercept/interceptors"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector records call metrics as Prometheus vectors labelled by
// owner and method
type PrometheusCollector struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

// NewPrometheusCollector creates the vectors under namespace and registers
// them with reg. A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(namespace string, reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &PrometheusCollector{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Total number of intercepted calls.",
		}, []string{"owner", "method"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Intercepted call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"owner", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_errors_total",
			Help:      "Total number of failed intercepted calls.",
		}, []string{"owner", "method", "error_type"}),
	}

	for _, collector := range c.Collectors() {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register prometheus collector: %w", err)
		}
	}

	return c, nil
}

// Collectors returns the underlying Prometheus collectors
func (c *PrometheusCollector) Collectors() []prometheus.Collector {
	return []prometheus.Collector{c.calls, c.duration, c.errors}
}

// IncrementCallCount implements interceptors.MetricsCollector
func (c *PrometheusCollector) IncrementCallCount(key contracts.InvocationKey) {
	c.calls.WithLabelValues(key.Owner, key.Method).Inc()
}

// RecordCallDuration implements interceptors.MetricsCollector
func (c *PrometheusCollector) RecordCallDuration(key contracts.InvocationKey, duration time.Duration) {
	c.duration.WithLabelValues(key.Owner, key.Method).Observe(duration.Seconds())
}

// IncrementErrorCount implements interceptors.MetricsCollector
func (c *PrometheusCollector) IncrementErrorCount(key contracts.InvocationKey, errorType string) {
	c.errors.WithLabelValues(key.Owner, key.Method, errorType).Inc()
}

var _ interceptors.MetricsCollector = (*PrometheusCollector)(nil)
