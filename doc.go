// Package loyaltysync synchronizes e-commerce domain events (customers,
// orders, gift cards, balances) to an external loyalty platform through a
// durable, retryable job queue.
//
// Producers enqueue a Job containing an ordered sequence of Requests via
// the job.Builder. A Digest pass, triggered periodically, walks each open
// job's requests in creation order, resolves a handler per request type,
// threads the previous request's result into the next, and executes the
// remote call through a rate-limited, per-store API connection. Handlers
// with non-idempotent remote effects use a content-hash dedup index so
// retries and re-runs never duplicate remote state.
//
// # Quick Start
//
//	s, err := loyaltysync.New(
//	    loyaltysync.WithStore(memory.New()),
//	    loyaltysync.WithLogger(logger),
//	)
//
// Register handlers on a handler.Pool, build jobs with job.NewBuilder,
// and run passes via digest.Digest, typically from a trigger.Scheduler.
//
// # Architecture
//
// The module follows a composable store pattern: each subsystem (job,
// parked, alert) defines its own store interface and a single backend
// implements all of them. Entity IDs use TypeID (type-prefixed,
// K-sortable, UUIDv7-based identifiers), so comparing two IDs of the same
// kind doubles as a creation-order comparison.
package loyaltysync
