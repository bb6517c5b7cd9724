package middleware

import (
	"context"
	"time"

	"github.com/the-line/loyaltysync/job"
)

// Timeout returns middleware that enforces a per-request execution
// deadline. A zero duration disables the deadline. When the deadline is
// exceeded the context is cancelled and the handler should return
// context.DeadlineExceeded.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *job.Request, next Handler) error {
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
