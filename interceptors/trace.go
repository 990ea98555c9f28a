package interceptors

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/glimte/mmate-intercept/contracts"
)

// TraceInterceptor writes plain lines to an output and an error stream.
// It is meant for tests and local debugging.
type TraceInterceptor struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	policy FailurePolicy
}

// NewTraceInterceptor creates a trace interceptor. Nil writers default to
// os.Stdout and os.Stderr.
func NewTraceInterceptor(out, errOut io.Writer, opts ...Option) *TraceInterceptor {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}

	o := newOptions(opts)
	return &TraceInterceptor{out: out, errOut: errOut, policy: o.policy}
}

// Intercept implements Interceptor
func (i *TraceInterceptor) Intercept(ctx context.Context, inv contracts.Invocation) error {
	name := inv.Key().String()

	i.writeLine(i.out, "About to call %s", name)
	defer i.writeLine(i.out, "Finished calling %s", name)

	failure := observedFailure(inv, inv.Proceed(ctx))
	if failure != nil {
		i.writeLine(i.errOut, "Error in %s - it is %v", name, failure)
	}

	return i.policy.settle(failure)
}

// Name implements Interceptor
func (i *TraceInterceptor) Name() string {
	return "TraceInterceptor"
}

func (i *TraceInterceptor) writeLine(w io.Writer, format string, args ...any) {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}
