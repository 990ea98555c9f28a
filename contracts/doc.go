// Package contracts provides the core invocation types shared by interceptors, collectors and reporters.
//
// This package defines the contracts for calls that flow through an interceptor chain:
//   - InvocationKey: Stable identity of a call site (owner, method, parameter types)
//   - Invocation: One observed call as seen by a single interceptor
//   - InvocationRecord: The timed outcome of a completed call
//   - ArgumentError and PanicError: The setup and invocation failure types
//
// Records are JSON serializable so timing data can be shipped to other services.
package contracts
