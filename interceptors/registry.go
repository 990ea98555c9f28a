package interceptors

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/glimte/mmate-intercept/contracts"
)

// Registry keeps the registered interceptor instances in registration order
// and resolves the chain for a proxied component: every registered
// interceptor, or the subset picked by a TypeSelector.
type Registry struct {
	mu           sync.RWMutex
	interceptors []Interceptor
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds interceptors after those already registered
func (r *Registry) Register(interceptors ...Interceptor) error {
	for idx, interceptor := range interceptors {
		if isNil(interceptor) {
			return contracts.NewArgumentError("Registry.Register", fmt.Sprintf("interceptors[%d]", idx),
				errors.New("interceptor cannot be nil"))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.interceptors = append(r.interceptors, interceptors...)
	return nil
}

// All returns every registered interceptor
func (r *Registry) All() []Interceptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Interceptor, len(r.interceptors))
	copy(out, r.interceptors)
	return out
}

// Select returns the registered interceptors picked by selector
func (r *Registry) Select(selector *TypeSelector) ([]Interceptor, error) {
	if selector == nil {
		return nil, contracts.NewArgumentError("Registry.Select", "selector", errors.New("selector cannot be nil"))
	}
	return Filter(r.All(), selector), nil
}

// Chain builds a chain over every registered interceptor
func (r *Registry) Chain(logger *slog.Logger) *InterceptorChain {
	return newChainOf(logger, r.All())
}

// ChainFor builds a chain over the interceptors picked by selector
func (r *Registry) ChainFor(selector *TypeSelector, logger *slog.Logger) (*InterceptorChain, error) {
	selected, err := r.Select(selector)
	if err != nil {
		return nil, err
	}
	return newChainOf(logger, selected), nil
}

// ChainForType builds a chain over the registered interceptors of exactly type T
func ChainForType[T Interceptor](r *Registry, logger *slog.Logger) *InterceptorChain {
	return newChainOf(logger, FilterByType[T](r.All()))
}

func newChainOf(logger *slog.Logger, interceptors []Interceptor) *InterceptorChain {
	chain := NewInterceptorChain(logger)
	for _, interceptor := range interceptors {
		chain.Add(interceptor)
	}
	return chain
}
