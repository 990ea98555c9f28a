package contracts

import (
	"context"
	"strings"
)

// InvocationKey identifies a call site. It is computed once when a method is
// registered and is used both for grouping timing records and for filtering.
type InvocationKey struct {
	Owner     string `json:"owner"`
	Method    string `json:"method"`
	Signature string `json:"signature,omitempty"`
}

// NewInvocationKey creates a key from the owning interface name, the method name
// and the names of the parameter types.
func NewInvocationKey(owner, method string, paramTypes ...string) InvocationKey {
	return InvocationKey{
		Owner:     owner,
		Method:    method,
		Signature: strings.Join(paramTypes, ","),
	}
}

// String renders the key as Owner.Method
func (k InvocationKey) String() string {
	return k.Owner + "." + k.Method
}

// IsZero reports whether the key carries no identity
func (k InvocationKey) IsZero() bool {
	return k.Owner == "" && k.Method == ""
}

// InvocationState tracks a call through NotStarted, Running and one of the two terminal states.
type InvocationState int

const (
	StateNotStarted InvocationState = iota
	StateRunning
	StateSucceeded
	StateFailed
)

func (s InvocationState) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true for Succeeded and Failed
func (s InvocationState) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Invocation is one observed call as seen by a single interceptor in the chain
type Invocation interface {
	// ID returns the unique id of the call, shared by every stage of the chain
	ID() string

	// Key returns the call site identity
	Key() InvocationKey

	// Arguments returns the call arguments in declaration order
	Arguments() []any

	// Proceed runs the rest of the chain and finally the target. It must be
	// called exactly once per interceptor. The returned error is the failure
	// that propagated up to this stage; it is nil when an inner interceptor
	// absorbed the failure.
	Proceed(ctx context.Context) error

	// ReturnValue returns the target's result once the call succeeded
	ReturnValue() any

	// Failure returns the failure recorded by the target, whether or not it
	// was absorbed on the way back up the chain
	Failure() error

	// State returns the current call state
	State() InvocationState
}
