package parked

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/the-line/loyaltysync/id"
	"github.com/the-line/loyaltysync/job"
)

// Service provides parking and replay over a Store and the job store.
type Service struct {
	store  Store
	jobs   job.Store
	logger *slog.Logger
}

// NewService creates a parked-request service.
func NewService(store Store, jobs job.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, jobs: jobs, logger: logger}
}

// Park marks the request as parked with the given reason and clears any
// scheduled retry. The owning job stays open.
func (s *Service) Park(ctx context.Context, r *job.Request, reason string) error {
	r.Parked = true
	r.LatestFailReason = reason
	r.NextAttemptAt = nil
	r.Touch()
	if err := s.jobs.UpdateRequest(ctx, r); err != nil {
		return fmt.Errorf("parked: park %s: %w", r.ID, err)
	}
	s.logger.Warn("request parked",
		"request_id", r.ID,
		"job_id", r.JobID,
		"type_code", r.TypeCode,
		"reason", reason)
	return nil
}

// Replay clears the parked flag so the next pass picks the request up
// again. The attempt counter is preserved; replaying is not a pardon,
// only another chance.
func (s *Service) Replay(ctx context.Context, requestID id.RequestID) error {
	r, err := s.store.GetParked(ctx, requestID)
	if err != nil {
		return err
	}
	r.Parked = false
	r.NextAttemptAt = nil
	r.Touch()
	if err := s.jobs.UpdateRequest(ctx, r); err != nil {
		return fmt.Errorf("parked: replay %s: %w", requestID, err)
	}
	s.logger.Info("request replayed", "request_id", r.ID, "job_id", r.JobID, "attempt", r.Attempt)
	return nil
}

// List returns parked requests matching the given options.
func (s *Service) List(ctx context.Context, opts ListOpts) ([]*job.Request, error) {
	return s.store.ListParked(ctx, opts)
}

// Get retrieves a parked request by ID.
func (s *Service) Get(ctx context.Context, requestID id.RequestID) (*job.Request, error) {
	return s.store.GetParked(ctx, requestID)
}

// Count returns the total number of parked requests.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.CountParked(ctx)
}
