// Package dedup tracks which content hashes have already been applied to
// a remote subject, such as a loyalty contact's transaction ledger.
// Handlers that write financial data consult the index before executing
// so a retried request never double-applies.
//
// The remote ledger itself is the source of truth; the index is a local
// accelerator seeded from remote reads. A miss means "check remotely",
// never "safe to write".
package dedup
