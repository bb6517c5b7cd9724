package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/the-line/loyaltysync/job"
)

// Logging returns middleware that logs request start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, r *job.Request, next Handler) error {
		logger.Info("request started",
			slog.String("type_code", r.TypeCode),
			slog.String("request_id", r.ID.String()),
			slog.String("job_id", r.JobID.String()),
			slog.Int("attempt", r.Attempt),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("request failed",
				slog.String("type_code", r.TypeCode),
				slog.String("request_id", r.ID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("request completed",
				slog.String("type_code", r.TypeCode),
				slog.String("request_id", r.ID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
