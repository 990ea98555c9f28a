package interceptors

import (
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/glimte/mmate-intercept/contracts"
)

// ErrInvalidSelectorType is wrapped by the ArgumentError returned for a selector
// type that cannot identify a registered interceptor
var ErrInvalidSelectorType = errors.New("selector type must be a concrete type implementing Interceptor")

var interceptorType = reflect.TypeFor[Interceptor]()

// TypeOf returns the type identifier of the interceptor type T
func TypeOf[T Interceptor]() reflect.Type {
	return reflect.TypeFor[T]()
}

// TypeSelector is an ordered set of concrete interceptor types. It picks a
// subset of the registered interceptors instead of all of them. Duplicates
// are kept in Types but do not change membership.
type TypeSelector struct {
	types []reflect.Type
	set   map[reflect.Type]struct{}
}

// Types returns the flattened types in the order they were added
func (s *TypeSelector) Types() []reflect.Type {
	return slices.Clone(s.types)
}

// Len returns the number of types, duplicates included
func (s *TypeSelector) Len() int {
	return len(s.types)
}

// Contains reports whether t is a member of the selector
func (s *TypeSelector) Contains(t reflect.Type) bool {
	_, ok := s.set[t]
	return ok
}

// Matches reports whether the concrete type of interceptor, or of any
// interceptor it wraps, is a member of the selector
func (s *TypeSelector) Matches(interceptor Interceptor) bool {
	for _, t := range wrappedTypes(interceptor) {
		if s.Contains(t) {
			return true
		}
	}
	return false
}

// unwrapper is implemented by interceptors that delegate to another one,
// such as ConditionalInterceptor
type unwrapper interface {
	Unwrap() Interceptor
}

// wrappedTypes returns the concrete type of interceptor followed by the types
// reached through Unwrap
func wrappedTypes(interceptor Interceptor) []reflect.Type {
	var types []reflect.Type
	for interceptor != nil {
		types = append(types, reflect.TypeOf(interceptor))
		w, ok := interceptor.(unwrapper)
		if !ok {
			break
		}
		interceptor = w.Unwrap()
	}
	return types
}

// SelectorBuilder builds a TypeSelector
type SelectorBuilder struct {
	types []reflect.Type
}

// NewSelector starts an empty selector
func NewSelector() *SelectorBuilder {
	return &SelectorBuilder{}
}

// Add appends types to the selector
func (b *SelectorBuilder) Add(types ...reflect.Type) *SelectorBuilder {
	b.types = append(b.types, types...)
	return b
}

// Append appends every type of another selector, keeping its order
func (b *SelectorBuilder) Append(other *TypeSelector) *SelectorBuilder {
	if other != nil {
		b.types = append(b.types, other.types...)
	}
	return b
}

// Include appends the interceptor type T to the builder
func Include[T Interceptor](b *SelectorBuilder) *SelectorBuilder {
	return b.Add(TypeOf[T]())
}

// Build validates the types and returns the selector
func (b *SelectorBuilder) Build() (*TypeSelector, error) {
	set := make(map[reflect.Type]struct{}, len(b.types))
	for idx, t := range b.types {
		if err := validateSelectorType(t); err != nil {
			return nil, contracts.NewArgumentError("SelectorBuilder.Build", fmt.Sprintf("types[%d]", idx), err)
		}
		set[t] = struct{}{}
	}

	return &TypeSelector{types: slices.Clone(b.types), set: set}, nil
}

// SelectorOf builds a selector from types
func SelectorOf(types ...reflect.Type) (*TypeSelector, error) {
	return NewSelector().Add(types...).Build()
}

func validateSelectorType(t reflect.Type) error {
	if t == nil {
		return fmt.Errorf("nil type: %w", ErrInvalidSelectorType)
	}
	if t.Kind() == reflect.Interface {
		return fmt.Errorf("%s is an interface: %w", t, ErrInvalidSelectorType)
	}
	if !t.Implements(interceptorType) {
		return fmt.Errorf("%s: %w", t, ErrInvalidSelectorType)
	}
	return nil
}

// Filter returns the interceptors whose concrete type is a member of the
// selector, in registration order. Wrapped interceptors are matched through
// Unwrap and returned with their wrapper. A nil selector matches nothing.
func Filter(all []Interceptor, selector *TypeSelector) []Interceptor {
	if selector == nil {
		return nil
	}

	var out []Interceptor
	for _, interceptor := range all {
		if selector.Matches(interceptor) {
			out = append(out, interceptor)
		}
	}
	return out
}

// FilterByType returns the interceptors whose concrete type, or the type of
// an interceptor they wrap, is exactly T
func FilterByType[T Interceptor](all []Interceptor) []Interceptor {
	want := TypeOf[T]()

	var out []Interceptor
	for _, interceptor := range all {
		if slices.Contains(wrappedTypes(interceptor), want) {
			out = append(out, interceptor)
		}
	}
	return out
}
