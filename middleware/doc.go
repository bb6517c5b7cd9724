// Package middleware provides composable middleware for request
// execution.
//
// A [Middleware] is a function that wraps a request handler. Middleware
// are composed into a chain using [Chain] and applied around each
// request the digest executes. They are applied right-to-left: the first
// middleware in the slice is the outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] logs request type, attempt, duration, and outcome
//   - [Recover] catches panics and converts them to errors
//   - [Timeout] cancels the request context after a configured duration
//   - [Tracing] wraps execution in an OpenTelemetry span
//   - [Metrics] records per-request duration and outcome counters
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
