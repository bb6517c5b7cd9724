package bunstore

import (
	"context"
	"fmt"

	"github.com/the-line/loyaltysync"
	"github.com/the-line/loyaltysync/id"
	"github.com/the-line/loyaltysync/job"
	"github.com/the-line/loyaltysync/parked"
)

func (s *Store) ListParked(ctx context.Context, opts parked.ListOpts) ([]*job.Request, error) {
	var models []*requestModel
	q := s.idb(ctx).NewSelect().
		Model(&models).
		Where("parked = TRUE")

	if opts.TypeCode != "" {
		q = q.Where("type_code = ?", opts.TypeCode)
	}
	if opts.StoreID != "" {
		q = q.Where("job_id IN (SELECT id FROM loyaltysync_jobs WHERE store_id = ?)", opts.StoreID)
	}

	q = q.Order("id ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("loyaltysync/bun: list parked requests: %w", err)
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

func (s *Store) GetParked(ctx context.Context, requestID id.RequestID) (*job.Request, error) {
	m := new(requestModel)
	err := s.idb(ctx).NewSelect().
		Model(m).
		Where("id = ?", requestID.String()).
		Where("parked = TRUE").
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("loyaltysync/bun: parked request %s: %w", requestID, loyaltysync.ErrParkedNotFound)
		}
		return nil, fmt.Errorf("loyaltysync/bun: get parked request %s: %w", requestID, err)
	}
	return fromRequestModel(m)
}

func (s *Store) CountParked(ctx context.Context) (int64, error) {
	count, err := s.idb(ctx).NewSelect().
		Model((*requestModel)(nil)).
		Where("parked = TRUE").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("loyaltysync/bun: count parked requests: %w", err)
	}
	return int64(count), nil
}
