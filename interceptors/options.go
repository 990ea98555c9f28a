package interceptors

import (
	"time"
)

type options struct {
	policy    FailurePolicy
	now       func() time.Time
	reporters []TimingReporter
}

func newOptions(opts []Option) *options {
	o := &options{
		policy: SwallowFailures,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures the built-in interceptors
type Option func(*options)

// WithFailurePolicy sets what the interceptor returns after observing a failure.
// The default is SwallowFailures.
func WithFailurePolicy(policy FailurePolicy) Option {
	return func(o *options) {
		o.policy = policy
	}
}

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithReporters sets where the timer interceptor sends its reports on flush.
// Without it the timer logs its reports.
func WithReporters(reporters ...TimingReporter) Option {
	return func(o *options) {
		o.reporters = append(o.reporters, reporters...)
	}
}
