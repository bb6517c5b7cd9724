package digest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/the-line/loyaltysync"
	"github.com/the-line/loyaltysync/handler"
	"github.com/the-line/loyaltysync/hook"
	"github.com/the-line/loyaltysync/id"
	"github.com/the-line/loyaltysync/job"
	"github.com/the-line/loyaltysync/middleware"
	"github.com/the-line/loyaltysync/parked"
	"github.com/the-line/loyaltysync/ratelimit"
	"github.com/the-line/loyaltysync/retry"
)

// Digest drives open jobs to completion, one pass at a time.
type Digest struct {
	store    job.Store
	pool     *handler.Pool
	hooks    *hook.Registry
	parked   *parked.Service
	policy   retry.Policy
	mw       middleware.Middleware
	pickup   *ratelimit.Manager
	workerID id.WorkerID
	leaseTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time

	requestTimeout time.Duration
}

// Option configures a Digest.
type Option func(*Digest)

// WithHooks sets the lifecycle hook registry.
func WithHooks(r *hook.Registry) Option {
	return func(d *Digest) { d.hooks = r }
}

// WithParked routes non-retryable requests through the parked service.
// Without it the digest sets the parked flag directly on the store.
func WithParked(s *parked.Service) Option {
	return func(d *Digest) { d.parked = s }
}

// WithRetryPolicy sets the failed-request retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(d *Digest) { d.policy = p }
}

// WithMiddleware replaces the default middleware chain wrapped around
// every request execution. The first middleware is the outermost wrapper.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(d *Digest) { d.mw = middleware.Chain(mws...) }
}

// WithRequestTimeout sets the per-request execution deadline enforced by
// the default middleware chain. Ignored when WithMiddleware is used.
func WithRequestTimeout(d time.Duration) Option {
	return func(dg *Digest) { dg.requestTimeout = d }
}

// WithPickup gates job pickup through the per-store rate manager.
func WithPickup(m *ratelimit.Manager) Option {
	return func(d *Digest) { d.pickup = m }
}

// WithLeaseTTL sets how long a claimed job stays leased. A pass over a
// job that outlives its lease risks a competing worker reclaiming it.
func WithLeaseTTL(ttl time.Duration) Option {
	return func(d *Digest) { d.leaseTTL = ttl }
}

// WithWorkerID sets the lease owner identity. Defaults to a fresh ID per
// Digest.
func WithWorkerID(w id.WorkerID) Option {
	return func(d *Digest) { d.workerID = w }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(d *Digest) { d.logger = l }
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(d *Digest) { d.now = now }
}

// New creates a Digest over the given store and handler pool. Unless
// WithMiddleware overrides it, request executions run through the
// default chain recover, tracing, metrics, logging, timeout, so a
// panicking handler is recorded as a failed attempt instead of
// unwinding the pass.
func New(store job.Store, pool *handler.Pool, opts ...Option) *Digest {
	d := &Digest{
		store:          store,
		pool:           pool,
		policy:         retry.DefaultPolicy(),
		workerID:       id.NewWorkerID(),
		leaseTTL:       5 * time.Minute,
		logger:         slog.Default(),
		now:            time.Now,
		requestTimeout: time.Minute,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.hooks == nil {
		d.hooks = hook.NewRegistry(d.logger)
	}
	if d.mw == nil {
		d.mw = middleware.Chain(
			middleware.Recover(d.logger),
			middleware.Tracing(),
			middleware.Metrics(),
			middleware.Logging(d.logger),
			middleware.Timeout(d.requestTimeout),
		)
	}
	return d
}

// WorkerID returns the lease owner identity of this digest.
func (d *Digest) WorkerID() id.WorkerID { return d.workerID }

// PassOpts scopes a single pass.
type PassOpts struct {
	// Trigger names the schedule that initiated the pass, for logging
	// and hooks.
	Trigger string
	// StoreID restricts the pass to one store view. Empty means all.
	StoreID string
	// CreatedBefore excludes jobs created at or after the cutoff.
	CreatedBefore time.Time
	// Limit caps how many jobs the pass picks up. Zero means no cap.
	Limit int
}

// Stats summarizes the outcome of one pass.
type Stats struct {
	Jobs      int
	Completed int
	Synced    int
	Skipped   int
	Failed    int
	Parked    int
	Elapsed   time.Duration
}

// Pass runs one digest pass: list open jobs, claim each, and walk its
// requests in creation order until a request does not go terminal. The
// pass itself is single-threaded; concurrency comes from overlapping
// passes, which the job lease keeps disjoint.
func (d *Digest) Pass(ctx context.Context, opts PassOpts) (Stats, error) {
	start := d.now()
	var stats Stats

	jobs, err := d.store.ListOpenJobs(ctx, job.ListOpts{
		StoreID:       opts.StoreID,
		CreatedBefore: opts.CreatedBefore,
		Limit:         opts.Limit,
	})
	if err != nil {
		return stats, fmt.Errorf("digest: list open jobs: %w", err)
	}

	for _, j := range jobs {
		if ctx.Err() != nil {
			break
		}
		d.runJob(ctx, j, &stats)
	}

	stats.Elapsed = d.now().Sub(start)
	d.logger.Info("pass completed",
		"trigger", opts.Trigger,
		"store_id", opts.StoreID,
		"jobs", stats.Jobs,
		"completed", stats.Completed,
		"synced", stats.Synced,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"parked", stats.Parked,
		"elapsed", stats.Elapsed)
	d.hooks.EmitPassCompleted(ctx, hook.PassStats{
		Trigger:   opts.Trigger,
		StoreID:   opts.StoreID,
		Jobs:      stats.Jobs,
		Completed: stats.Completed,
		Synced:    stats.Synced,
		Skipped:   stats.Skipped,
		Failed:    stats.Failed,
		Parked:    stats.Parked,
		Elapsed:   stats.Elapsed,
	})
	return stats, nil
}

// runJob claims one job and walks its requests. Claim conflicts and
// relation blocks are normal pass outcomes, not errors.
func (d *Digest) runJob(ctx context.Context, j *job.Job, stats *Stats) {
	blocked, err := d.store.HasUncompletedParent(ctx, j)
	if err != nil {
		d.logger.Error("parent check failed", "job_id", j.ID, "error", err)
		return
	}
	if blocked {
		d.logger.Debug("job blocked by older job in relation",
			"job_id", j.ID, "relation_id", j.RelationID)
		return
	}

	if d.pickup != nil {
		if !d.pickup.Acquire(j.StoreID) {
			d.logger.Debug("pickup gate full", "job_id", j.ID, "store_id", j.StoreID)
			return
		}
		defer d.pickup.Release(j.StoreID)
	}

	if err := d.store.ClaimJob(ctx, j.ID, d.workerID, d.leaseTTL); err != nil {
		if errors.Is(err, loyaltysync.ErrJobLeased) {
			d.logger.Debug("job leased by another worker", "job_id", j.ID)
			return
		}
		d.logger.Error("claim failed", "job_id", j.ID, "error", err)
		return
	}
	defer func() {
		if err := d.store.ReleaseJob(ctx, j.ID, d.workerID); err != nil {
			d.logger.Error("release failed", "job_id", j.ID, "error", err)
		}
	}()

	stats.Jobs++
	d.walkRequests(ctx, j, stats)
}

// walkRequests executes the job's non-terminal requests in creation
// order and completes the job when every request is terminal. The first
// request that does not go terminal ends the walk: a successor never
// runs before its predecessor is done.
func (d *Digest) walkRequests(ctx context.Context, j *job.Job, stats *Stats) {
	requests, err := d.store.ListRequests(ctx, j.ID)
	if err != nil {
		d.logger.Error("list requests failed", "job_id", j.ID, "error", err)
		return
	}

	now := d.now().UTC()
	var previous json.RawMessage
	terminal := 0
	for _, r := range requests {
		if r.Terminal() {
			previous = r.Result
			terminal++
			continue
		}
		if r.Parked {
			d.logger.Debug("job stopped at parked request",
				"job_id", j.ID, "request_id", r.ID)
			return
		}
		if !r.Eligible(now) {
			d.logger.Debug("request deferred by retry policy",
				"job_id", j.ID, "request_id", r.ID, "next_attempt_at", r.NextAttemptAt)
			return
		}

		if !d.executeRequest(ctx, j, r, previous, stats) {
			return
		}
		previous = r.Result
		terminal++
	}

	if terminal == len(requests) && !j.Completed {
		// Re-read before persisting: the pass's snapshot predates the
		// claim, so writing it back would clear the lease columns.
		fresh, err := d.store.GetJob(ctx, j.ID)
		if err != nil {
			d.logger.Error("complete job failed", "job_id", j.ID, "error", err)
			return
		}
		fresh.Completed = true
		fresh.Touch()
		if err := d.store.UpdateJob(ctx, fresh); err != nil {
			d.logger.Error("complete job failed", "job_id", j.ID, "error", err)
			return
		}
		j.Completed = true
		stats.Completed++
		d.logger.Info("job completed", "job_id", j.ID, "requests", len(requests))
		d.hooks.EmitJobCompleted(ctx, fresh)
	}
}

// executeRequest runs one request to an outcome and persists it. Returns
// true when the request went terminal and the walk may continue.
func (d *Digest) executeRequest(ctx context.Context, j *job.Job, r *job.Request, previous json.RawMessage, stats *Stats) bool {
	h, err := d.pool.Resolve(r.TypeCode)
	if err != nil {
		d.park(ctx, r, fmt.Sprintf("no handler registered for type %q", r.TypeCode))
		stats.Parked++
		return false
	}

	ok, err := h.Validate(ctx, j, r)
	if err != nil {
		d.recordFailure(ctx, r, fmt.Errorf("validate: %w", err), stats)
		return false
	}
	if !ok {
		d.logger.Debug("request not ready", "request_id", r.ID, "type_code", r.TypeCode)
		return false
	}

	ex := handler.NewExec(j, r, previous)
	var result any
	run := func(ctx context.Context) error {
		v, execErr := h.Execute(ctx, ex)
		if execErr != nil {
			return execErr
		}
		result = v
		return nil
	}

	var skip *handler.Skip
	txErr := d.store.RunInTx(ctx, func(ctx context.Context) error {
		err := d.mw(ctx, r, run)
		switch {
		case err == nil:
			r.IsSynced = true
			r.LatestFailReason = ""
			r.NextAttemptAt = nil
			if serr := r.SetResult(result); serr != nil {
				return serr
			}
		case errors.As(err, &skip):
			r.IsSynced = true
			r.LatestFailReason = skip.Reason
			r.NextAttemptAt = nil
			if skip.Result != nil {
				if serr := r.SetResult(skip.Result); serr != nil {
					return serr
				}
			}
		default:
			return err
		}
		r.Touch()
		return d.store.UpdateRequest(ctx, r)
	})

	if txErr != nil {
		d.recordFailure(ctx, r, txErr, stats)
		return false
	}

	if skip != nil {
		stats.Skipped++
		d.hooks.EmitRequestSkipped(ctx, r, skip.Reason)
	} else {
		stats.Synced++
		d.hooks.EmitRequestSynced(ctx, r)
	}
	return true
}

// recordFailure books a failed attempt and either schedules the retry or
// parks the request when the attempt budget is spent.
func (d *Digest) recordFailure(ctx context.Context, r *job.Request, reqErr error, stats *Stats) {
	now := d.now().UTC()
	r.Attempt++
	r.LatestFailReason = reqErr.Error()
	r.NextAttemptAt = d.policy.NextAttemptAt(now, r.Attempt)

	if d.policy.Exhausted(r.Attempt) {
		d.park(ctx, r, fmt.Sprintf("retry budget exhausted after %d attempts: %s", r.Attempt, reqErr))
		stats.Parked++
		return
	}

	r.Touch()
	if err := d.store.UpdateRequest(ctx, r); err != nil {
		d.logger.Error("record failure failed", "request_id", r.ID, "error", err)
		return
	}
	stats.Failed++
	d.logger.Warn("request failed",
		"request_id", r.ID,
		"type_code", r.TypeCode,
		"attempt", r.Attempt,
		"error", reqErr)
	d.hooks.EmitRequestFailed(ctx, r, reqErr)
}

// park sets a request aside as non-retryable.
func (d *Digest) park(ctx context.Context, r *job.Request, reason string) {
	if d.parked != nil {
		if err := d.parked.Park(ctx, r, reason); err != nil {
			d.logger.Error("park failed", "request_id", r.ID, "error", err)
			return
		}
	} else {
		r.Parked = true
		r.LatestFailReason = reason
		r.NextAttemptAt = nil
		r.Touch()
		if err := d.store.UpdateRequest(ctx, r); err != nil {
			d.logger.Error("park failed", "request_id", r.ID, "error", err)
			return
		}
	}
	d.hooks.EmitRequestParked(ctx, r, reason)
}
