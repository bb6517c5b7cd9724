// Package handler defines the polymorphic request execution contract: the
// Handler interface implemented once per request type code, the typed
// Exec context carrying payload data and the previous request's result,
// the Pool registry resolving type codes to fresh handler instances, and
// the Skip signal handlers return on a dedup hit.
package handler
