package job

import (
	"context"
	"fmt"

	"github.com/the-line/loyaltysync"
	"github.com/the-line/loyaltysync/id"
)

// Builder assembles a Job and its ordered Requests. Producers obtain one
// from NewBuilder, chain setters, and finish with Create. Request order
// is the order of AddRequest calls.
type Builder struct {
	store    Store
	job      *Job
	requests []*Request
}

// NewBuilder starts a job for the given store backend.
func NewBuilder(store Store) *Builder {
	return &Builder{
		store: store,
		job: &Job{
			Entity: loyaltysync.NewEntity(),
			ID:     id.NewJobID(),
		},
	}
}

// Relation scopes the job to an external entity (e.g. a customer id).
// Jobs sharing a relation are processed in creation order.
func (b *Builder) Relation(relationID string) *Builder {
	b.job.RelationID = relationID
	return b
}

// StoreID scopes the job to a store view / tenant.
func (b *Builder) StoreID(storeID string) *Builder {
	b.job.StoreID = storeID
	return b
}

// Source references the originating source record.
func (b *Builder) Source(sourceID string) *Builder {
	b.job.SourceID = sourceID
	return b
}

// AddRequest appends a request of the given type. Order is preserved:
// the digest executes requests in the order they were added.
func (b *Builder) AddRequest(typeCode string, payload Payload) *Builder {
	b.requests = append(b.requests, &Request{
		Entity:   loyaltysync.NewEntity(),
		ID:       id.NewRequestID(),
		JobID:    b.job.ID,
		TypeCode: typeCode,
		Payload:  payload,
	})
	return b
}

// Create persists the job and its requests atomically. With commit=true
// the job is immediately visible to the digest; with commit=false the
// caller owns visibility and later calls Commit (or the store's
// CommitJob) inside its own unit of work.
func (b *Builder) Create(ctx context.Context, commit bool) (*Job, error) {
	if b.job.StoreID == "" {
		return nil, fmt.Errorf("job: builder requires a store id")
	}
	if len(b.requests) == 0 {
		return nil, fmt.Errorf("job: builder requires at least one request")
	}

	b.job.Committed = commit
	if err := b.store.CreateJob(ctx, b.job, b.requests); err != nil {
		return nil, fmt.Errorf("job: create job %s: %w", b.job.ID, err)
	}
	return b.job, nil
}

// Commit makes a job created with commit=false visible to the digest.
func (b *Builder) Commit(ctx context.Context) error {
	return b.store.CommitJob(ctx, b.job.ID)
}
