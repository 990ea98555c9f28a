package demo

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/glimte/mmate-intercept/interceptors"
	"github.com/glimte/mmate-intercept/proxy"
)

var (
	ErrDivideByZero = errors.New("division by zero")
	ErrNegativeSqrt = errors.New("square root of a negative number")
)

// Calculator is the component decorated by the demo
type Calculator interface {
	Add(ctx context.Context, a, b int) (int, error)
	Divide(ctx context.Context, a, b int) (int, error)
	Sqrt(ctx context.Context, x float64) (float64, error)
}

// BasicCalculator computes results after an optional simulated latency
type BasicCalculator struct {
	Latency time.Duration
}

func (c BasicCalculator) wait(ctx context.Context) error {
	if c.Latency <= 0 {
		return nil
	}
	select {
	case <-time.After(c.Latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Add implements Calculator
func (c BasicCalculator) Add(ctx context.Context, a, b int) (int, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	return a + b, nil
}

// Divide implements Calculator
func (c BasicCalculator) Divide(ctx context.Context, a, b int) (int, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	if b == 0 {
		return 0, ErrDivideByZero
	}
	return a / b, nil
}

// Sqrt implements Calculator
func (c BasicCalculator) Sqrt(ctx context.Context, x float64) (float64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	if x < 0 {
		return 0, ErrNegativeSqrt
	}
	return math.Sqrt(x), nil
}

// interceptedCalculator routes every method through a chain
type interceptedCalculator struct {
	next   Calculator
	add    *proxy.Method
	divide *proxy.Method
	sqrt   *proxy.Method
}

// Intercept decorates next so that each call passes through chain
func Intercept(next Calculator, chain *interceptors.InterceptorChain) (Calculator, error) {
	c := &interceptedCalculator{next: next}

	var err error
	if c.add, err = proxy.MethodOf[Calculator](chain, "Add"); err != nil {
		return nil, err
	}
	if c.divide, err = proxy.MethodOf[Calculator](chain, "Divide"); err != nil {
		return nil, err
	}
	if c.sqrt, err = proxy.MethodOf[Calculator](chain, "Sqrt"); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *interceptedCalculator) Add(ctx context.Context, a, b int) (int, error) {
	return proxy.Call(ctx, c.add, func(ctx context.Context) (int, error) {
		return c.next.Add(ctx, a, b)
	}, a, b)
}

func (c *interceptedCalculator) Divide(ctx context.Context, a, b int) (int, error) {
	return proxy.Call(ctx, c.divide, func(ctx context.Context) (int, error) {
		return c.next.Divide(ctx, a, b)
	}, a, b)
}

func (c *interceptedCalculator) Sqrt(ctx context.Context, x float64) (float64, error) {
	return proxy.Call(ctx, c.sqrt, func(ctx context.Context) (float64, error) {
		return c.next.Sqrt(ctx, x)
	}, x)
}
