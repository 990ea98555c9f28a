package proxy

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/glimte/mmate-intercept/contracts"
	"github.com/glimte/mmate-intercept/interceptors"
)

var contextType = reflect.TypeFor[context.Context]()

// Method routes calls of one method through an interceptor chain. The key
// is computed once, when the method is created.
type Method struct {
	chain *interceptors.InterceptorChain
	key   contracts.InvocationKey
}

// NewMethod binds key to chain
func NewMethod(chain *interceptors.InterceptorChain, key contracts.InvocationKey) (*Method, error) {
	if chain == nil {
		return nil, contracts.NewArgumentError("proxy.NewMethod", "chain", errors.New("chain cannot be nil"))
	}
	if key.IsZero() {
		return nil, contracts.NewArgumentError("proxy.NewMethod", "key", errors.New("key cannot be empty"))
	}
	return &Method{chain: chain, key: key}, nil
}

// MethodOf binds the method named name of type T to chain. The key is built
// from the type name, the method name and its parameter types, leaving out a
// leading context.Context.
func MethodOf[T any](chain *interceptors.InterceptorChain, name string) (*Method, error) {
	key, err := keyOf(reflect.TypeFor[T](), name)
	if err != nil {
		return nil, err
	}
	return NewMethod(chain, key)
}

func keyOf(t reflect.Type, name string) (contracts.InvocationKey, error) {
	m, ok := t.MethodByName(name)
	if !ok {
		return contracts.InvocationKey{}, contracts.NewArgumentError("proxy.MethodOf", "name",
			fmt.Errorf("%s has no method %q", t, name))
	}

	// Methods of concrete types carry the receiver as first input.
	first := 0
	if t.Kind() != reflect.Interface {
		first = 1
	}

	var params []string
	for i := first; i < m.Type.NumIn(); i++ {
		in := m.Type.In(i)
		if i == first && in == contextType {
			continue
		}
		params = append(params, in.String())
	}

	return contracts.NewInvocationKey(ownerName(t), name, params...), nil
}

func ownerName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// Key returns the call site key
func (m *Method) Key() contracts.InvocationKey {
	return m.key
}

// Chain returns the chain the method is routed through
func (m *Method) Chain() *interceptors.InterceptorChain {
	return m.chain
}

// Call runs fn through the chain of m. args are what the interceptors see
// as the call arguments.
//
// On success it returns the result of fn. When an interceptor absorbed a
// failure it returns the zero value of R and a nil error. Propagated failures
// and chain protocol errors are returned as is.
func Call[R any](ctx context.Context, m *Method, fn func(ctx context.Context) (R, error), args ...any) (R, error) {
	var zero R

	call := interceptors.NewCall(m.key, args...)
	err := m.chain.Execute(ctx, call, func(ctx context.Context, _ []any) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	if call.State() != contracts.StateSucceeded {
		return zero, nil
	}

	result, ok := call.ReturnValue().(R)
	if !ok {
		return zero, nil
	}
	return result, nil
}

// Exec is Call for methods that return only an error
func Exec(ctx context.Context, m *Method, fn func(ctx context.Context) error, args ...any) error {
	_, err := Call(ctx, m, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, args...)
	return err
}
