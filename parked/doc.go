// Package parked manages requests the digest has set aside: unknown
// request types, and requests that exhausted a configured retry budget.
// Parked requests are not terminal. Their job stays open, they are
// skipped by every pass, and an operator can replay them once the
// underlying problem (a missing handler, a broken payload) is fixed.
package parked
