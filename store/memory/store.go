// Package memory implements store.Store fully in memory. Safe for
// concurrent access. Intended for unit testing, development, and
// single-process deployments that can tolerate losing queue state on
// restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/the-line/loyaltysync"
	"github.com/the-line/loyaltysync/alert"
	"github.com/the-line/loyaltysync/id"
	"github.com/the-line/loyaltysync/job"
	"github.com/the-line/loyaltysync/parked"
	"github.com/the-line/loyaltysync/trigger"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ job.Store         = (*Store)(nil)
	_ parked.Store      = (*Store)(nil)
	_ alert.MarkerStore = (*Store)(nil)
	_ trigger.Store     = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	jobs     map[string]*job.Job
	requests map[string]*job.Request
	alerts   map[string]time.Time
	triggers map[string]time.Time
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs:     make(map[string]*job.Job),
		requests: make(map[string]*job.Request),
		alerts:   make(map[string]time.Time),
		triggers: make(map[string]time.Time),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle: Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

func (m *Store) CreateJob(_ context.Context, j *job.Job, requests []*job.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return loyaltysync.ErrJobAlreadyExists
	}
	cp := *j
	m.jobs[key] = &cp
	for _, r := range requests {
		rcp := *r
		m.requests[r.ID.String()] = &rcp
	}
	return nil
}

func (m *Store) CommitJob(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return loyaltysync.ErrJobNotFound
	}
	j.Committed = true
	j.Touch()
	return nil
}

func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, loyaltysync.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *Store) UpdateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, ok := m.jobs[key]; !ok {
		return loyaltysync.ErrJobNotFound
	}
	cp := *j
	m.jobs[key] = &cp
	return nil
}

func (m *Store) DeleteJob(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := jobID.String()
	if _, ok := m.jobs[key]; !ok {
		return loyaltysync.ErrJobNotFound
	}
	delete(m.jobs, key)
	for rk, r := range m.requests {
		if r.JobID == jobID {
			delete(m.requests, rk)
		}
	}
	return nil
}

func (m *Store) ListOpenJobs(_ context.Context, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*job.Job, 0)
	for _, j := range m.jobs {
		if !j.Committed || j.Completed {
			continue
		}
		if opts.StoreID != "" && j.StoreID != opts.StoreID {
			continue
		}
		if !opts.CreatedBefore.IsZero() && !j.CreatedAt.Before(opts.CreatedBefore) {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID.Before(out[b].ID) })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *Store) HasUncompletedParent(_ context.Context, j *job.Job) (bool, error) {
	if j.RelationID == "" {
		return false, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, other := range m.jobs {
		if other.ID == j.ID || other.RelationID != j.RelationID {
			continue
		}
		if other.Committed && !other.Completed && other.ID.Before(j.ID) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Store) ClaimJob(_ context.Context, jobID id.JobID, workerID id.WorkerID, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return loyaltysync.ErrJobNotFound
	}
	now := time.Now().UTC()
	if !j.LeasedBy.IsNil() && j.LeasedBy.String() != workerID.String() && j.Leased(now) {
		return fmt.Errorf("job %s held by %s: %w", jobID, j.LeasedBy, loyaltysync.ErrJobLeased)
	}
	until := now.Add(ttl)
	j.LeasedBy = workerID
	j.LeaseUntil = &until
	return nil
}

func (m *Store) ReleaseJob(_ context.Context, jobID id.JobID, workerID id.WorkerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return loyaltysync.ErrJobNotFound
	}
	if j.LeasedBy.String() != workerID.String() {
		return nil
	}
	j.LeasedBy = id.Nil
	j.LeaseUntil = nil
	return nil
}

func (m *Store) ListRequests(_ context.Context, jobID id.JobID) ([]*job.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*job.Request, 0)
	for _, r := range m.requests {
		if r.JobID != jobID {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID.Before(out[b].ID) })
	return out, nil
}

func (m *Store) GetRequest(_ context.Context, requestID id.RequestID) (*job.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[requestID.String()]
	if !ok {
		return nil, loyaltysync.ErrRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *Store) UpdateRequest(_ context.Context, r *job.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := r.ID.String()
	if _, ok := m.requests[key]; !ok {
		return loyaltysync.ErrRequestNotFound
	}
	cp := *r
	m.requests[key] = &cp
	return nil
}

// RunInTx runs fn directly. The memory store has no transactions; the
// mutex already serializes individual operations.
func (m *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// ──────────────────────────────────────────────────
// Parked Store
// ──────────────────────────────────────────────────

func (m *Store) ListParked(_ context.Context, opts parked.ListOpts) ([]*job.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*job.Request, 0)
	for _, r := range m.requests {
		if !r.Parked {
			continue
		}
		if opts.TypeCode != "" && r.TypeCode != opts.TypeCode {
			continue
		}
		if opts.StoreID != "" {
			j, ok := m.jobs[r.JobID.String()]
			if !ok || j.StoreID != opts.StoreID {
				continue
			}
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID.Before(out[b].ID) })
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *Store) GetParked(_ context.Context, requestID id.RequestID) (*job.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[requestID.String()]
	if !ok || !r.Parked {
		return nil, loyaltysync.ErrParkedNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *Store) CountParked(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, r := range m.requests {
		if r.Parked {
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Alert Marker Store
// ──────────────────────────────────────────────────

func (m *Store) LastAlert(_ context.Context, class string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.alerts[class], nil
}

func (m *Store) SetLastAlert(_ context.Context, class string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[class] = at
	return nil
}

// ──────────────────────────────────────────────────
// Trigger Store
// ──────────────────────────────────────────────────

func (m *Store) LastRun(_ context.Context, name string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.triggers[name], nil
}

func (m *Store) SetLastRun(_ context.Context, name string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers[name] = at
	return nil
}
