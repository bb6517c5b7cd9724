package parked

import (
	"context"

	"github.com/the-line/loyaltysync/id"
	"github.com/the-line/loyaltysync/job"
)

// ListOpts controls pagination and filtering for parked request queries.
type ListOpts struct {
	// Limit is the maximum number of requests to return. Zero means no limit.
	Limit int
	// Offset is the number of requests to skip.
	Offset int
	// StoreID filters by the owning job's store view. Empty means all stores.
	StoreID string
	// TypeCode filters by request type. Empty means all types.
	TypeCode string
}

// Store defines the query contract over parked requests. Parking and
// replaying mutate the request through job.Store; this interface only
// reads.
type Store interface {
	// ListParked returns parked requests matching the given options,
	// oldest first.
	ListParked(ctx context.Context, opts ListOpts) ([]*job.Request, error)

	// GetParked retrieves a parked request by ID. Returns
	// loyaltysync.ErrParkedNotFound when the request does not exist or
	// is not parked.
	GetParked(ctx context.Context, requestID id.RequestID) (*job.Request, error)

	// CountParked returns the total number of parked requests.
	CountParked(ctx context.Context) (int64, error)
}
