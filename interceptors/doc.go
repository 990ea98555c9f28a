// Package interceptors provides the interceptor chain that wraps method calls.
//
// An interceptor adds a cross-cutting concern (logging, timing, tracing,
// metrics) around a call without changing the target. Every interceptor must
// call inv.Proceed exactly once; the chain reports ErrAlreadyProceeded and
// ErrNotProceeded when it does not. This package provides:
//   - Interceptor interface, InterceptorChain and Call
//   - Built-in interceptors for common concerns
//   - TypeSelector and Registry to pick interceptors by concrete type
//   - Builder pattern for easy chain construction
//
// Built-in interceptors:
//   - LoggingInterceptor: Logs before, on failure and after each call
//   - TraceInterceptor: Writes the same events as plain lines to two streams
//   - TimerInterceptor: Records call timings and reports statistics per call site on Flush
//   - MetricsInterceptor: Feeds a MetricsCollector
//   - ConditionalInterceptor: Applies another interceptor to matching call sites only
//
// Failures are absorbed by default. When the target fails, Logging, Trace and
// Timer record the failure and return nil, so the caller receives a zero
// value instead of the error. This changes what callers can observe and is
// configurable per interceptor:
//
//	logging := interceptors.NewLoggingInterceptor(logger,
//		interceptors.WithFailurePolicy(interceptors.PropagateFailures))
//
// Example usage:
//
//	timer := interceptors.NewTimerInterceptor(logger)
//	chain := interceptors.NewDefaultInterceptorChainBuilder(logger).
//		WithTimer(timer).
//		WithLogging().
//		Build()
//
//	call, err := chain.Invoke(ctx, key, target, args...)
//	...
//	reports, err := timer.Flush(ctx)
//
// Selecting a subset of the registered interceptors:
//
//	registry := interceptors.NewRegistry()
//	_ = registry.Register(logging, timer, trace)
//
//	selector, err := interceptors.NewSelector().
//		Add(interceptors.TypeOf[*interceptors.LoggingInterceptor]()).
//		Add(interceptors.TypeOf[*interceptors.TraceInterceptor]()).
//		Build()
//	chain, err := registry.ChainFor(selector, logger)
//
// Interceptors are executed in the order they are added to the chain, with the
// target being called last.
package interceptors
