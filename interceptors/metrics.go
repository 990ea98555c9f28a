package interceptors

import (
	"context"
	"errors"
	"time"

	"github.com/glimte/mmate-intercept/contracts"
)

// MetricsCollector defines the interface for collecting call metrics
type MetricsCollector interface {
	IncrementCallCount(key contracts.InvocationKey)
	RecordCallDuration(key contracts.InvocationKey, duration time.Duration)
	IncrementErrorCount(key contracts.InvocationKey, errorType string)
}

// Error types reported to MetricsCollector.IncrementErrorCount
const (
	ErrorTypeInvocation = "invocation_error"
	ErrorTypePanic      = "panic"
	ErrorTypeProtocol   = "protocol_error"
)

// MetricsInterceptor collects metrics about calls. It returns whatever
// propagated from the inner stages unchanged.
type MetricsInterceptor struct {
	collector MetricsCollector
}

// NewMetricsInterceptor creates a new metrics interceptor
func NewMetricsInterceptor(collector MetricsCollector) *MetricsInterceptor {
	return &MetricsInterceptor{collector: collector}
}

// Intercept implements Interceptor
func (i *MetricsInterceptor) Intercept(ctx context.Context, inv contracts.Invocation) error {
	start := time.Now()
	key := inv.Key()

	i.collector.IncrementCallCount(key)

	err := inv.Proceed(ctx)
	i.collector.RecordCallDuration(key, time.Since(start))

	if failure := observedFailure(inv, err); failure != nil {
		i.collector.IncrementErrorCount(key, classifyFailure(failure))
	}

	return err
}

// Name implements Interceptor
func (i *MetricsInterceptor) Name() string {
	return "MetricsInterceptor"
}

func classifyFailure(err error) string {
	var panicErr *contracts.PanicError
	switch {
	case errors.As(err, &panicErr):
		return ErrorTypePanic
	case errors.Is(err, ErrAlreadyProceeded), errors.Is(err, ErrNotProceeded):
		return ErrorTypeProtocol
	default:
		return ErrorTypeInvocation
	}
}
