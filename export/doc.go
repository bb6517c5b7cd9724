// Package export provides the built-in request handlers that push
// e-commerce events to the loyalty platform: contact upsert, ledger
// transaction creation with idempotency protection, and gift card
// creation. Producers enqueue jobs with these type codes; RegisterAll
// wires the handlers into a pool.
package export
