package trigger

import (
	"context"
	"time"
)

// Store persists per-trigger scheduling state so cutoff windows survive
// restarts.
type Store interface {
	// LastRun returns the time the named trigger last completed a pass,
	// or the zero time when it never has.
	LastRun(ctx context.Context, name string) (time.Time, error)

	// SetLastRun records the completion time of the named trigger's
	// latest pass.
	SetLastRun(ctx context.Context, name string, at time.Time) error
}
