package interceptors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"runtime/debug"

	"github.com/glimte/mmate-intercept/contracts"
	"github.com/google/uuid"
)

var (
	// ErrAlreadyProceeded is returned when an interceptor calls Proceed a second time
	ErrAlreadyProceeded = errors.New("interceptor: proceed already called")

	// ErrNotProceeded is returned when an interceptor returns without calling Proceed
	ErrNotProceeded = errors.New("interceptor: returned without calling proceed")

	// ErrCallReused is returned when a Call that already ran is executed again
	ErrCallReused = errors.New("interceptor: call already executed")
)

// Target is the wrapped method. It runs once the last interceptor proceeds.
type Target func(ctx context.Context, args []any) (any, error)

// Interceptor wraps a call with before, after and failure behavior
type Interceptor interface {
	// Intercept observes the call and must call inv.Proceed exactly once
	Intercept(ctx context.Context, inv contracts.Invocation) error

	// Name returns the interceptor name for logging and debugging
	Name() string
}

// InterceptorFunc is a function adapter for Interceptor
type InterceptorFunc struct {
	name string
	fn   func(ctx context.Context, inv contracts.Invocation) error
}

// NewInterceptorFunc creates a new function-based interceptor
func NewInterceptorFunc(name string, fn func(ctx context.Context, inv contracts.Invocation) error) *InterceptorFunc {
	return &InterceptorFunc{name: name, fn: fn}
}

// Intercept implements Interceptor
func (i *InterceptorFunc) Intercept(ctx context.Context, inv contracts.Invocation) error {
	return i.fn(ctx, inv)
}

// Name implements Interceptor
func (i *InterceptorFunc) Name() string {
	return i.name
}

// FailurePolicy decides what an interceptor returns after it observed a failed call
type FailurePolicy int

const (
	// SwallowFailures records the failure and returns nil, so the caller sees a zero value
	SwallowFailures FailurePolicy = iota
	// PropagateFailures records the failure and returns it
	PropagateFailures
)

func (p FailurePolicy) String() string {
	switch p {
	case SwallowFailures:
		return "swallow"
	case PropagateFailures:
		return "propagate"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
}

// ParseFailurePolicy parses "swallow" or "propagate"
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "swallow":
		return SwallowFailures, nil
	case "propagate", "rethrow":
		return PropagateFailures, nil
	default:
		return 0, contracts.NewArgumentError("interceptors.ParseFailurePolicy", "policy",
			fmt.Errorf("unknown failure policy %q", s))
	}
}

// settle returns what the interceptor hands back to the previous stage.
// Chain protocol violations are never swallowed.
func (p FailurePolicy) settle(failure error) error {
	if failure == nil {
		return nil
	}
	if errors.Is(failure, ErrAlreadyProceeded) || errors.Is(failure, ErrNotProceeded) {
		return failure
	}
	if p == PropagateFailures {
		return failure
	}
	return nil
}

// observedFailure returns the failure seen at this stage, including one
// absorbed further down the chain
func observedFailure(inv contracts.Invocation, err error) error {
	if err != nil {
		return err
	}
	return inv.Failure()
}

// Call holds the identity and outcome slots of one call. Every stage of the
// chain sees the same Call through its own Invocation view.
type Call struct {
	id      string
	key     contracts.InvocationKey
	args    []any
	state   contracts.InvocationState
	result  any
	failure error
}

// NewCall creates a call for the given key and arguments
func NewCall(key contracts.InvocationKey, args ...any) *Call {
	return &Call{
		id:    uuid.New().String(),
		key:   key,
		args:  args,
		state: contracts.StateNotStarted,
	}
}

// ID returns the call id
func (c *Call) ID() string {
	return c.id
}

// Key returns the call site identity
func (c *Call) Key() contracts.InvocationKey {
	return c.key
}

// Arguments returns the call arguments
func (c *Call) Arguments() []any {
	return c.args
}

// ReturnValue returns the target's result
func (c *Call) ReturnValue() any {
	return c.result
}

// Failure returns the failure recorded by the target
func (c *Call) Failure() error {
	return c.failure
}

// State returns the call state
func (c *Call) State() contracts.InvocationState {
	return c.state
}

func (c *Call) runTarget(ctx context.Context, target Target) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &contracts.PanicError{Key: c.key, Value: r, Stack: debug.Stack()}
			c.failure = err
			c.state = contracts.StateFailed
		}
	}()

	result, err := target(ctx, c.args)
	if err != nil {
		c.failure = err
		c.state = contracts.StateFailed
		return err
	}

	c.result = result
	c.state = contracts.StateSucceeded
	return nil
}

// stage is the Invocation view handed to a single interceptor
type stage struct {
	*Call
	next      func(ctx context.Context) error
	proceeded bool
}

// Proceed implements contracts.Invocation
func (s *stage) Proceed(ctx context.Context) error {
	if s.proceeded {
		return ErrAlreadyProceeded
	}
	s.proceeded = true
	return s.next(ctx)
}

// InterceptorChain manages an ordered chain of interceptors
type InterceptorChain struct {
	interceptors []Interceptor
	logger       *slog.Logger
}

// NewInterceptorChain creates a new interceptor chain
func NewInterceptorChain(logger *slog.Logger) *InterceptorChain {
	if logger == nil {
		logger = slog.Default()
	}

	return &InterceptorChain{
		interceptors: make([]Interceptor, 0),
		logger:       logger,
	}
}

// Add adds an interceptor to the chain. Nil interceptors, including nil
// pointers of an interceptor type, are ignored.
func (c *InterceptorChain) Add(interceptor Interceptor) *InterceptorChain {
	if isNil(interceptor) {
		c.logger.Warn("ignoring nil interceptor")
		return c
	}
	c.interceptors = append(c.interceptors, interceptor)
	return c
}

// Interceptors returns the interceptors in execution order
func (c *InterceptorChain) Interceptors() []Interceptor {
	out := make([]Interceptor, len(c.interceptors))
	copy(out, c.interceptors)
	return out
}

// Len returns the number of interceptors
func (c *InterceptorChain) Len() int {
	return len(c.interceptors)
}

// Execute runs call through every interceptor in order and finally target.
// The returned error is what propagated out of the first interceptor; the
// call itself keeps the target's outcome.
func (c *InterceptorChain) Execute(ctx context.Context, call *Call, target Target) error {
	if call == nil {
		return contracts.NewArgumentError("InterceptorChain.Execute", "call", errors.New("call cannot be nil"))
	}
	if target == nil {
		return contracts.NewArgumentError("InterceptorChain.Execute", "target", errors.New("target cannot be nil"))
	}
	if call.state != contracts.StateNotStarted {
		return ErrCallReused
	}

	call.state = contracts.StateRunning
	return c.run(ctx, call, target, 0)
}

// Invoke creates a call for key and args and executes it
func (c *InterceptorChain) Invoke(ctx context.Context, key contracts.InvocationKey, target Target, args ...any) (*Call, error) {
	call := NewCall(key, args...)
	err := c.Execute(ctx, call, target)
	return call, err
}

func (c *InterceptorChain) run(ctx context.Context, call *Call, target Target, pos int) error {
	if pos == len(c.interceptors) {
		return call.runTarget(ctx, target)
	}

	interceptor := c.interceptors[pos]
	inv := &stage{
		Call: call,
		next: func(ctx context.Context) error {
			return c.run(ctx, call, target, pos+1)
		},
	}

	err := interceptor.Intercept(ctx, inv)
	if !inv.proceeded {
		c.logger.Error("interceptor returned without proceeding",
			"interceptor", interceptor.Name(),
			"invocation", call.key.String(),
			"invocationId", call.id,
		)
		return fmt.Errorf("%s: %w", interceptor.Name(), ErrNotProceeded)
	}

	return err
}

// isNil reports whether interceptor is nil or a nil pointer
func isNil(interceptor Interceptor) bool {
	if interceptor == nil {
		return true
	}
	v := reflect.ValueOf(interceptor)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// Default interceptor chain builder

// DefaultInterceptorChainBuilder builds a common interceptor chain
type DefaultInterceptorChainBuilder struct {
	chain  *InterceptorChain
	logger *slog.Logger
}

// NewDefaultInterceptorChainBuilder creates a new builder
func NewDefaultInterceptorChainBuilder(logger *slog.Logger) *DefaultInterceptorChainBuilder {
	if logger == nil {
		logger = slog.Default()
	}

	return &DefaultInterceptorChainBuilder{
		chain:  NewInterceptorChain(logger),
		logger: logger,
	}
}

// WithTimer adds a timer interceptor. The caller keeps the instance to flush it.
func (b *DefaultInterceptorChainBuilder) WithTimer(timer *TimerInterceptor) *DefaultInterceptorChainBuilder {
	if timer == nil {
		b.logger.Warn("ignoring nil timer interceptor")
		return b
	}
	b.chain.Add(timer)
	return b
}

// WithLogging adds a logging interceptor
func (b *DefaultInterceptorChainBuilder) WithLogging(opts ...Option) *DefaultInterceptorChainBuilder {
	b.chain.Add(NewLoggingInterceptor(b.logger, opts...))
	return b
}

// WithTrace adds a trace interceptor writing to out and errOut
func (b *DefaultInterceptorChainBuilder) WithTrace(out, errOut io.Writer, opts ...Option) *DefaultInterceptorChainBuilder {
	b.chain.Add(NewTraceInterceptor(out, errOut, opts...))
	return b
}

// WithMetrics adds a metrics interceptor
func (b *DefaultInterceptorChainBuilder) WithMetrics(collector MetricsCollector) *DefaultInterceptorChainBuilder {
	if collector == nil {
		b.logger.Warn("ignoring metrics interceptor without collector")
		return b
	}
	b.chain.Add(NewMetricsInterceptor(collector))
	return b
}

// WithCustom adds a custom interceptor
func (b *DefaultInterceptorChainBuilder) WithCustom(interceptor Interceptor) *DefaultInterceptorChainBuilder {
	b.chain.Add(interceptor)
	return b
}

// Build returns the built interceptor chain
func (b *DefaultInterceptorChainBuilder) Build() *InterceptorChain {
	return b.chain
}
