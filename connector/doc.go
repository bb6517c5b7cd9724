// Package connector owns the per-store client cache. Each store view has
// its own platform credentials; the connector resolves them, validates
// the session with a ping on first use, and hands out the cached client
// afterward. Authentication failures escalate through the throttled
// alert notifier so a revoked token is noticed without flooding the
// operator inbox on every pass.
package connector
