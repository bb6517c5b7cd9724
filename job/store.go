package job

import (
	"context"
	"time"

	"github.com/the-line/loyaltysync/id"
)

// ListOpts controls filtering for open-job queries.
type ListOpts struct {
	// StoreID filters by store view. Empty means all stores.
	StoreID string
	// CreatedBefore excludes jobs created at or after the cutoff.
	// Zero disables the cutoff.
	CreatedBefore time.Time
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
}

// Store defines the persistence contract for jobs and their requests.
type Store interface {
	// CreateJob persists a job together with its ordered requests in a
	// single atomic operation. Requests become visible to the digest
	// only once the job is committed.
	CreateJob(ctx context.Context, j *Job, requests []*Request) error

	// CommitJob makes a job created with commit=false visible to the
	// digest.
	CommitJob(ctx context.Context, jobID id.JobID) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// UpdateJob persists changes to an existing job.
	UpdateJob(ctx context.Context, j *Job) error

	// DeleteJob removes a job and all of its requests.
	DeleteJob(ctx context.Context, jobID id.JobID) error

	// ListOpenJobs returns committed, uncompleted jobs in ascending ID
	// (creation) order.
	ListOpenJobs(ctx context.Context, opts ListOpts) ([]*Job, error)

	// HasUncompletedParent reports whether an older committed job with
	// the same non-empty RelationID is not yet completed.
	HasUncompletedParent(ctx context.Context, j *Job) (bool, error)

	// ClaimJob atomically leases a job for the worker. It returns
	// loyaltysync.ErrJobLeased when another worker holds an unexpired
	// lease. Re-claiming with the same worker extends the lease.
	ClaimJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID, ttl time.Duration) error

	// ReleaseJob frees a lease held by the worker. Releasing a lease
	// held by another worker is a no-op.
	ReleaseJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) error

	// ListRequests returns a job's requests in creation order.
	ListRequests(ctx context.Context, jobID id.JobID) ([]*Request, error)

	// GetRequest retrieves a request by ID.
	GetRequest(ctx context.Context, requestID id.RequestID) (*Request, error)

	// UpdateRequest persists changes to an existing request.
	UpdateRequest(ctx context.Context, r *Request) error

	// RunInTx executes fn inside a transaction where the backend
	// supports one, so a handler's local side effects and the recorded
	// request outcome commit together. Backends without transactions
	// run fn directly.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
