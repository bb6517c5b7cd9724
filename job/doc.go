// Package job defines the durable queue data model: a Job owning an
// ordered sequence of Requests, the lossless Payload mapping, the
// deterministic content hash used as an idempotency key, the Builder
// producers use to enqueue work, and the Store persistence contract.
package job
