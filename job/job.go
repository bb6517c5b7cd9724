package job

import (
	"time"

	"github.com/the-line/loyaltysync"
	"github.com/the-line/loyaltysync/id"
)

// Job is a unit of sync work: an ordered sequence of Requests scoped to a
// store and, optionally, to an external relation (e.g. a customer).
// Deleting a Job deletes its Requests.
type Job struct {
	loyaltysync.Entity

	ID id.JobID `json:"id"`

	// RelationID references the external entity this job is about.
	// Jobs sharing a non-empty RelationID are processed in ascending
	// ID order: an older incomplete job blocks newer ones.
	RelationID string `json:"relation_id,omitempty"`

	// SourceID references the originating source record (e.g. an order
	// increment id).
	SourceID string `json:"source_id,omitempty"`

	// StoreID scopes the job to a store view / tenant.
	StoreID string `json:"store_id"`

	// Completed flips false→true exactly once, when every owned request
	// is terminal. Terminal once true.
	Completed bool `json:"completed"`

	// Committed makes the job visible to the digest. Producers may
	// create a job uncommitted and commit it in their own unit of work.
	Committed bool `json:"committed"`

	// LeasedBy / LeaseUntil record the worker currently claiming the
	// job. An expired lease is reclaimable.
	LeasedBy   id.WorkerID `json:"leased_by,omitempty"`
	LeaseUntil *time.Time  `json:"lease_until,omitempty"`
}

// Open reports whether the job still has non-terminal requests.
func (j *Job) Open() bool { return !j.Completed }

// Leased reports whether the job holds an unexpired lease at now.
func (j *Job) Leased(now time.Time) bool {
	return j.LeaseUntil != nil && j.LeaseUntil.After(now)
}
