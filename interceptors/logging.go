package interceptors

import (
	"context"
	"log/slog"
	"time"

	"github.com/glimte/mmate-intercept/contracts"
)

// LoggingInterceptor logs every call: once before, once on failure, once after
type LoggingInterceptor struct {
	logger *slog.Logger
	policy FailurePolicy
}

// NewLoggingInterceptor creates a new logging interceptor
func NewLoggingInterceptor(logger *slog.Logger, opts ...Option) *LoggingInterceptor {
	if logger == nil {
		logger = slog.Default()
	}

	o := newOptions(opts)
	return &LoggingInterceptor{logger: logger, policy: o.policy}
}

// Intercept implements Interceptor
func (i *LoggingInterceptor) Intercept(ctx context.Context, inv contracts.Invocation) error {
	name := inv.Key().String()
	start := time.Now()

	i.logger.InfoContext(ctx, "about to call "+name,
		"invocation", name,
		"invocationId", inv.ID(),
	)
	defer func() {
		i.logger.InfoContext(ctx, "finished calling "+name,
			"invocation", name,
			"invocationId", inv.ID(),
			"duration", time.Since(start),
		)
	}()

	failure := observedFailure(inv, inv.Proceed(ctx))
	if failure != nil {
		i.logger.ErrorContext(ctx, "error in "+name,
			"invocation", name,
			"invocationId", inv.ID(),
			"error", failure,
		)
	}

	return i.policy.settle(failure)
}

// Name implements Interceptor
func (i *LoggingInterceptor) Name() string {
	return "LoggingInterceptor"
}
