// Package hook defines the lifecycle extension points of the syncer.
// Hooks are notified of digest events (request synced, skipped, failed,
// parked; job completed; pass completed) and can react to them for
// auditing, metrics, or follow-up work.
//
// Each lifecycle event is a separate interface so hooks opt in only to
// the events they care about. Hook errors are logged and never interrupt
// the digest.
package hook
