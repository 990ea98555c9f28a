// Package demo wires a configured interceptor chain around a small
// Calculator service. It backs the intercept-demo command.
package demo
