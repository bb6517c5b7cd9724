// Package api is the HTTP client for the remote loyalty platform. It
// authenticates with a bearer token, exposes the cheap connectivity
// check and the per-domain create/list/update operations, and routes
// every outbound call through the shared rate limiter. Non-2xx responses
// surface as *Error.
package api
