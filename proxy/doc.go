// Package proxy routes typed method calls through an interceptor chain.
//
// Go has no runtime proxies, so a component is decorated by hand: each
// method of the decorator binds a Method once and forwards through Call or
// Exec.
//
//	type calculator struct {
//		next   Calculator
//		divide *proxy.Method
//	}
//
//	func (c *calculator) Divide(ctx context.Context, a, b int) (int, error) {
//		return proxy.Call(ctx, c.divide, func(ctx context.Context) (int, error) {
//			return c.next.Divide(ctx, a, b)
//		}, a, b)
//	}
//
// With the default failure policy a failing call returns the zero value and
// a nil error.
package proxy
