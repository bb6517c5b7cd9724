// Package ratelimit throttles outbound work in two places: Limiter
// spaces individual API calls on one store connection, and Manager
// bounds how fast the digest picks up jobs per store view.
package ratelimit
