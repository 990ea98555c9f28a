package contracts

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument matches every ArgumentError through errors.Is
var ErrInvalidArgument = errors.New("invalid argument")

// ArgumentError reports an invalid setup: an empty sample set, an invalid
// selector type, a missing collaborator. It is returned immediately and is
// never absorbed by an interceptor.
type ArgumentError struct {
	Op  string
	Arg string
	Err error
}

// NewArgumentError creates an ArgumentError
func NewArgumentError(op, arg string, err error) *ArgumentError {
	return &ArgumentError{Op: op, Arg: arg, Err: err}
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: invalid argument %s: %v", e.Op, e.Arg, e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrInvalidArgument) match any ArgumentError
func (e *ArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// IsArgumentError checks if an error is an ArgumentError
func IsArgumentError(err error) bool {
	var argErr *ArgumentError
	return errors.As(err, &argErr)
}

// PanicError is the failure recorded when a target panics instead of returning an error
type PanicError struct {
	Key   InvocationKey
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Key, e.Value)
}

// Unwrap exposes the panic value when it was itself an error
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
