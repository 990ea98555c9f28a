package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/glimte/mmate-intercept/contracts"
	"github.com/glimte/mmate-intercept/interceptors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names used by OTelCollector
const (
	OTelCallsTotal      = "intercept_calls_total"
	OTelCallDuration    = "intercept_call_duration_seconds"
	OTelCallErrorsTotal = "intercept_call_errors_total"
)

// OTelCollector records call metrics with OpenTelemetry instruments.
//
// Labels:
//   - owner: the intercepted type (e.g., "Calculator")
//   - method: the method name (e.g., "Divide")
//   - error_type: only on the error counter
//
// Safe for concurrent use.
type OTelCollector struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewOTelCollector creates the instruments on meter
func NewOTelCollector(meter metric.Meter) (*OTelCollector, error) {
	calls, err := meter.Int64Counter(
		OTelCallsTotal,
		metric.WithDescription("Total number of intercepted calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", OTelCallsTotal, err)
	}

	// Buckets: [0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10]
	duration, err := meter.Float64Histogram(
		OTelCallDuration,
		metric.WithDescription("Intercepted call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", OTelCallDuration, err)
	}

	errs, err := meter.Int64Counter(
		OTelCallErrorsTotal,
		metric.WithDescription("Total number of failed intercepted calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", OTelCallErrorsTotal, err)
	}

	return &OTelCollector{calls: calls, duration: duration, errors: errs}, nil
}

func keyAttributes(key contracts.InvocationKey, extra ...attribute.KeyValue) metric.MeasurementOption {
	attrs := append([]attribute.KeyValue{
		attribute.String("owner", key.Owner),
		attribute.String("method", key.Method),
	}, extra...)
	return metric.WithAttributes(attrs...)
}

// IncrementCallCount implements interceptors.MetricsCollector
func (c *OTelCollector) IncrementCallCount(key contracts.InvocationKey) {
	c.calls.Add(context.Background(), 1, keyAttributes(key))
}

// RecordCallDuration implements interceptors.MetricsCollector
func (c *OTelCollector) RecordCallDuration(key contracts.InvocationKey, duration time.Duration) {
	c.duration.Record(context.Background(), duration.Seconds(), keyAttributes(key))
}

// IncrementErrorCount implements interceptors.MetricsCollector
func (c *OTelCollector) IncrementErrorCount(key contracts.InvocationKey, errorType string) {
	c.errors.Add(context.Background(), 1, keyAttributes(key, attribute.String("error_type", errorType)))
}

var _ interceptors.MetricsCollector = (*OTelCollector)(nil)
