package interceptors

import (
	"context"
	"fmt"

	"github.com/glimte/mmate-intercept/contracts"
)

// MethodFilter decides whether an interceptor applies to a call site
type MethodFilter interface {
	// ShouldIntercept returns true if the call should be intercepted
	ShouldIntercept(key contracts.InvocationKey) bool
}

// MethodFilterFunc is a function adapter for MethodFilter
type MethodFilterFunc func(key contracts.InvocationKey) bool

// ShouldIntercept implements MethodFilter
func (f MethodFilterFunc) ShouldIntercept(key contracts.InvocationKey) bool {
	return f(key)
}

// CompositeFilter combines multiple filters with AND logic
type CompositeFilter struct {
	filters []MethodFilter
}

// NewCompositeFilter creates a new composite filter
func NewCompositeFilter(filters ...MethodFilter) *CompositeFilter {
	return &CompositeFilter{filters: filters}
}

// ShouldIntercept implements MethodFilter - all filters must return true
func (f *CompositeFilter) ShouldIntercept(key contracts.InvocationKey) bool {
	for _, filter := range f.filters {
		if !filter.ShouldIntercept(key) {
			return false
		}
	}
	return true
}

// OrFilter combines multiple filters with OR logic
type OrFilter struct {
	filters []MethodFilter
}

// NewOrFilter creates a new OR filter
func NewOrFilter(filters ...MethodFilter) *OrFilter {
	return &OrFilter{filters: filters}
}

// ShouldIntercept implements MethodFilter - at least one filter must return true
func (f *OrFilter) ShouldIntercept(key contracts.InvocationKey) bool {
	for _, filter := range f.filters {
		if filter.ShouldIntercept(key) {
			return true
		}
	}
	return false
}

// OwnerFilter matches calls on specific owners
type OwnerFilter struct {
	owners map[string]bool
}

// NewOwnerFilter creates a filter that only matches the given owners
func NewOwnerFilter(owners ...string) *OwnerFilter {
	m := make(map[string]bool, len(owners))
	for _, o := range owners {
		m[o] = true
	}
	return &OwnerFilter{owners: m}
}

// ShouldIntercept implements MethodFilter
func (f *OwnerFilter) ShouldIntercept(key contracts.InvocationKey) bool {
	return f.owners[key.Owner]
}

// MethodNameFilter matches calls by their Owner.Method name
type MethodNameFilter struct {
	methods map[string]bool
}

// NewMethodNameFilter creates a filter matching "Owner.Method" names
func NewMethodNameFilter(methods ...string) *MethodNameFilter {
	m := make(map[string]bool, len(methods))
	for _, name := range methods {
		m[name] = true
	}
	return &MethodNameFilter{methods: m}
}

// ShouldIntercept implements MethodFilter
func (f *MethodNameFilter) ShouldIntercept(key contracts.InvocationKey) bool {
	return f.methods[key.String()]
}

// ConditionalInterceptor applies an interceptor only to matching call sites.
// Other calls are proceeded untouched.
type ConditionalInterceptor struct {
	condition   MethodFilter
	interceptor Interceptor
}

// NewConditionalInterceptor creates a new conditional interceptor
func NewConditionalInterceptor(condition MethodFilter, interceptor Interceptor) *ConditionalInterceptor {
	return &ConditionalInterceptor{
		condition:   condition,
		interceptor: interceptor,
	}
}

// Intercept implements Interceptor
func (i *ConditionalInterceptor) Intercept(ctx context.Context, inv contracts.Invocation) error {
	if i.condition.ShouldIntercept(inv.Key()) {
		return i.interceptor.Intercept(ctx, inv)
	}

	return inv.Proceed(ctx)
}

// Name implements Interceptor
func (i *ConditionalInterceptor) Name() string {
	return fmt.Sprintf("ConditionalInterceptor[%s]", i.interceptor.Name())
}

// Unwrap returns the wrapped interceptor
func (i *ConditionalInterceptor) Unwrap() Interceptor {
	if i == nil {
		return nil
	}
	return i.interceptor
}
