package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/the-line/loyaltysync"
	"github.com/the-line/loyaltysync/id"
	"github.com/the-line/loyaltysync/job"
)

// ── Jobs ──────────────────────────────────────────────────────────

func (s *Store) CreateJob(ctx context.Context, j *job.Job, requests []*job.Request) error {
	return s.RunInTx(ctx, func(ctx context.Context) error {
		jm := toJobModel(j)
		if _, err := s.idb(ctx).NewInsert().Model(jm).Exec(ctx); err != nil {
			if isDuplicateKey(err) {
				return fmt.Errorf("loyaltysync/bun: job %s: %w", j.ID, loyaltysync.ErrJobAlreadyExists)
			}
			return fmt.Errorf("loyaltysync/bun: insert job %s: %w", j.ID, err)
		}

		if len(requests) == 0 {
			return nil
		}

		models := make([]*requestModel, 0, len(requests))
		for _, r := range requests {
			rm, err := toRequestModel(r)
			if err != nil {
				return err
			}
			models = append(models, rm)
		}
		if _, err := s.idb(ctx).NewInsert().Model(&models).Exec(ctx); err != nil {
			return fmt.Errorf("loyaltysync/bun: insert requests for job %s: %w", j.ID, err)
		}
		return nil
	})
}

func (s *Store) CommitJob(ctx context.Context, jobID id.JobID) error {
	res, err := s.idb(ctx).NewUpdate().
		Model((*jobModel)(nil)).
		Set("committed = TRUE").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", jobID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("loyaltysync/bun: commit job %s: %w", jobID, err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("loyaltysync/bun: job %s: %w", jobID, loyaltysync.ErrJobNotFound)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	m := new(jobModel)
	err := s.idb(ctx).NewSelect().
		Model(m).
		Where("id = ?", jobID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("loyaltysync/bun: job %s: %w", jobID, loyaltysync.ErrJobNotFound)
		}
		return nil, fmt.Errorf("loyaltysync/bun: get job %s: %w", jobID, err)
	}
	return fromJobModel(m)
}

func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	m := toJobModel(j)
	res, err := s.idb(ctx).NewUpdate().
		Model(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("loyaltysync/bun: update job %s: %w", j.ID, err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("loyaltysync/bun: job %s: %w", j.ID, loyaltysync.ErrJobNotFound)
	}
	return nil
}

func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	// Requests cascade via the foreign key.
	res, err := s.idb(ctx).NewDelete().
		Model((*jobModel)(nil)).
		Where("id = ?", jobID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("loyaltysync/bun: delete job %s: %w", jobID, err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("loyaltysync/bun: job %s: %w", jobID, loyaltysync.ErrJobNotFound)
	}
	return nil
}

func (s *Store) ListOpenJobs(ctx context.Context, opts job.ListOpts) ([]*job.Job, error) {
	var models []*jobModel
	q := s.idb(ctx).NewSelect().
		Model(&models).
		Where("committed = TRUE").
		Where("completed = FALSE")

	if opts.StoreID != "" {
		q = q.Where("store_id = ?", opts.StoreID)
	}
	if !opts.CreatedBefore.IsZero() {
		q = q.Where("created_at < ?", opts.CreatedBefore)
	}

	// TypeID suffixes are K-sortable, so ID order is creation order.
	q = q.Order("id ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("loyaltysync/bun: list open jobs: %w", err)
	}

	jobs := make([]*job.Job, 0, len(models))
	for _, m := range models {
		j, err := fromJobModel(m)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (s *Store) HasUncompletedParent(ctx context.Context, j *job.Job) (bool, error) {
	if j.RelationID == "" {
		return false, nil
	}
	exists, err := s.idb(ctx).NewSelect().
		Model((*jobModel)(nil)).
		Where("relation_id = ?", j.RelationID).
		Where("id < ?", j.ID.String()).
		Where("committed = TRUE").
		Where("completed = FALSE").
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("loyaltysync/bun: check parent for job %s: %w", j.ID, err)
	}
	return exists, nil
}

func (s *Store) ClaimJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID, ttl time.Duration) error {
	now := time.Now().UTC()
	until := now.Add(ttl)

	// Claim succeeds when the lease is free, expired, or already held
	// by this worker (which extends it).
	res, err := s.idb(ctx).NewUpdate().
		Model((*jobModel)(nil)).
		Set("leased_by = ?", workerID.String()).
		Set("lease_until = ?", until).
		Set("updated_at = ?", now).
		Where("id = ?", jobID.String()).
		Where("leased_by = '' OR leased_by = ? OR lease_until IS NULL OR lease_until <= ?", workerID.String(), now).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("loyaltysync/bun: claim job %s: %w", jobID, err)
	}
	rows, _ := res.RowsAffected()
	if rows > 0 {
		return nil
	}

	// Nothing updated: either the job is gone or another worker holds
	// an unexpired lease.
	exists, err := s.idb(ctx).NewSelect().
		Model((*jobModel)(nil)).
		Where("id = ?", jobID.String()).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("loyaltysync/bun: claim job %s: %w", jobID, err)
	}
	if !exists {
		return fmt.Errorf("loyaltysync/bun: job %s: %w", jobID, loyaltysync.ErrJobNotFound)
	}
	return fmt.Errorf("loyaltysync/bun: job %s: %w", jobID, loyaltysync.ErrJobLeased)
}

func (s *Store) ReleaseJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) error {
	_, err := s.idb(ctx).NewUpdate().
		Model((*jobModel)(nil)).
		Set("leased_by = ''").
		Set("lease_until = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", jobID.String()).
		Where("leased_by = ?", workerID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("loyaltysync/bun: release job %s: %w", jobID, err)
	}
	return nil
}

// ── Requests ──────────────────────────────────────────────────────

func (s *Store) ListRequests(ctx context.Context, jobID id.JobID) ([]*job.Request, error) {
	var models []*requestModel
	err := s.idb(ctx).NewSelect().
		Model(&models).
		Where("job_id = ?", jobID.String()).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("loyaltysync/bun: list requests for job %s: %w", jobID, err)
	}

	requests := make([]*job.Request, 0, len(models))
	for _, m := range models {
		r, err := fromRequestModel(m)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, nil
}

func (s *Store) GetRequest(ctx context.Context, requestID id.RequestID) (*job.Request, error) {
	m := new(requestModel)
	err := s.idb(ctx).NewSelect().
		Model(m).
		Where("id = ?", requestID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("loyaltysync/bun: request %s: %w", requestID, loyaltysync.ErrRequestNotFound)
		}
		return nil, fmt.Errorf("loyaltysync/bun: get request %s: %w", requestID, err)
	}
	return fromRequestModel(m)
}

func (s *Store) UpdateRequest(ctx context.Context, r *job.Request) error {
	m, err := toRequestModel(r)
	if err != nil {
		return err
	}
	res, err := s.idb(ctx).NewUpdate().
		Model(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("loyaltysync/bun: update request %s: %w", r.ID, err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("loyaltysync/bun: request %s: %w", r.ID, loyaltysync.ErrRequestNotFound)
	}
	return nil
}
