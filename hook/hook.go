package hook

import (
	"context"
	"time"

	"github.com/the-line/loyaltysync/job"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// ──────────────────────────────────────────────────
// Request lifecycle hooks
// ──────────────────────────────────────────────────

// RequestSynced is called after a request executes successfully.
type RequestSynced interface {
	OnRequestSynced(ctx context.Context, r *job.Request) error
}

// RequestSkipped is called when a handler skips a request, typically on
// an idempotency hit.
type RequestSkipped interface {
	OnRequestSkipped(ctx context.Context, r *job.Request, reason string) error
}

// RequestFailed is called when a request fails and will be retried.
type RequestFailed interface {
	OnRequestFailed(ctx context.Context, r *job.Request, reqErr error) error
}

// RequestParked is called when a request is set aside as non-retryable.
type RequestParked interface {
	OnRequestParked(ctx context.Context, r *job.Request, reason string) error
}

// ──────────────────────────────────────────────────
// Job and pass lifecycle hooks
// ──────────────────────────────────────────────────

// JobCompleted is called once, when a job's last request goes terminal.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job) error
}

// PassCompleted is called after a digest pass finishes, with the pass
// outcome counters.
type PassCompleted interface {
	OnPassCompleted(ctx context.Context, stats PassStats) error
}

// AlertSent is called after an operator alert was delivered.
type AlertSent interface {
	OnAlertSent(ctx context.Context, class, subject string) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}

// PassStats summarizes one digest pass.
type PassStats struct {
	Trigger   string
	StoreID   string
	Jobs      int
	Completed int
	Synced    int
	Skipped   int
	Failed    int
	Parked    int
	Elapsed   time.Duration
}
