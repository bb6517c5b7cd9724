package digest_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/the-line/loyaltysync/dedup"
	"github.com/the-line/loyaltysync/digest"
	"github.com/the-line/loyaltysync/handler"
	"github.com/the-line/loyaltysync/id"
	"github.com/the-line/loyaltysync/job"
	"github.com/the-line/loyaltysync/retry"
	"github.com/the-line/loyaltysync/store/memory"
)

// ──────────────────────────────────────────────────
// Test handlers
// ──────────────────────────────────────────────────

// echoHandler succeeds and returns a fixed result.
type echoHandler struct {
	result any
}

func (h *echoHandler) Validate(_ context.Context, _ *job.Job, _ *job.Request) (bool, error) {
	return true, nil
}

func (h *echoHandler) Execute(_ context.Context, _ *handler.Exec) (any, error) {
	return h.result, nil
}

// captureHandler records the exec context it sees.
type captureHandler struct {
	seen **handler.Exec
}

func (h *captureHandler) Validate(_ context.Context, _ *job.Job, _ *job.Request) (bool, error) {
	return true, nil
}

func (h *captureHandler) Execute(_ context.Context, ex *handler.Exec) (any, error) {
	*h.seen = ex
	return "done", nil
}

// failingHandler always fails.
type failingHandler struct{}

func (h *failingHandler) Validate(_ context.Context, _ *job.Job, _ *job.Request) (bool, error) {
	return true, nil
}

func (h *failingHandler) Execute(_ context.Context, _ *handler.Exec) (any, error) {
	return nil, errors.New("remote unavailable")
}

// notReadyHandler never validates.
type notReadyHandler struct{}

func (h *notReadyHandler) Validate(_ context.Context, _ *job.Job, _ *job.Request) (bool, error) {
	return false, nil
}

func (h *notReadyHandler) Execute(_ context.Context, _ *handler.Exec) (any, error) {
	return nil, errors.New("must not execute")
}

// ledgerHandler simulates a financial write guarded by the dedup index:
// at most one remote transaction per content hash. failAfterApply
// simulates a crash after the remote write landed but before the
// request was marked synced, which is the situation the index exists
// for.
type ledgerHandler struct {
	index          dedup.Index
	applied        *[]string
	failAfterApply *bool
}

func (h *ledgerHandler) Validate(_ context.Context, _ *job.Job, _ *job.Request) (bool, error) {
	return true, nil
}

func (h *ledgerHandler) Execute(ctx context.Context, ex *handler.Exec) (any, error) {
	subject := ex.Job.StoreID + ":" + ex.Data.String("contact")
	hash := ex.Request.ContentHash()
	seen, err := h.index.Seen(ctx, subject, hash)
	if err != nil {
		return nil, err
	}
	if seen {
		return nil, handler.SkipDuplicate(hash, nil)
	}
	*h.applied = append(*h.applied, hash)
	if err := h.index.Record(ctx, subject, hash); err != nil {
		return nil, err
	}
	if h.failAfterApply != nil && *h.failAfterApply {
		*h.failAfterApply = false
		return nil, errors.New("connection reset after remote write")
	}
	return hash, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func poolWith(t *testing.T, types map[string]func() handler.Handler) *handler.Pool {
	t.Helper()
	p := handler.NewPool()
	for code, factory := range types {
		if err := p.Register(code, factory); err != nil {
			t.Fatal(err)
		}
	}
	return p
}

func createJob(t *testing.T, s *memory.Store, relation string, types ...string) *job.Job {
	t.Helper()
	b := job.NewBuilder(s).StoreID("shop-1").Relation(relation)
	for i, code := range types {
		b.AddRequest(code, job.Payload{"seq": fmt.Sprintf("%d", i)})
	}
	j, err := b.Create(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	return j
}

func requestsOf(t *testing.T, s *memory.Store, j *job.Job) []*job.Request {
	t.Helper()
	reqs, err := s.ListRequests(context.Background(), j.ID)
	if err != nil {
		t.Fatal(err)
	}
	return reqs
}

// ──────────────────────────────────────────────────
// Pass behavior
// ──────────────────────────────────────────────────

func TestPassSyncsSingleRequestJob(t *testing.T) {
	t.Parallel()

	s := memory.New()
	pool := poolWith(t, map[string]func() handler.Handler{
		"contact_create": func() handler.Handler { return &echoHandler{result: "C1"} },
	})
	j := createJob(t, s, "", "contact_create")

	d := digest.New(s, pool)
	stats, err := d.Pass(context.Background(), digest.PassOpts{Trigger: "test"})
	if err != nil {
		t.Fatalf("Pass: %v", err)
	}
	if stats.Synced != 1 || stats.Completed != 1 {
		t.Fatalf("stats = %+v, want 1 synced 1 completed", stats)
	}

	got, err := s.GetJob(context.Background(), j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Completed {
		t.Fatal("job not completed")
	}
	r := requestsOf(t, s, got)[0]
	if !r.IsSynced || r.State() != job.StateSynced {
		t.Fatalf("request state = %q", r.State())
	}
}

func TestPassChainsPreviousResult(t *testing.T) {
	t.Parallel()

	s := memory.New()
	var seen *handler.Exec
	pool := poolWith(t, map[string]func() handler.Handler{
		"create": func() handler.Handler { return &echoHandler{result: "C1"} },
		"update": func() handler.Handler { return &captureHandler{seen: &seen} },
	})
	createJob(t, s, "", "create", "update")

	d := digest.New(s, pool)
	if _, err := d.Pass(context.Background(), digest.PassOpts{}); err != nil {
		t.Fatal(err)
	}

	if seen == nil {
		t.Fatal("second handler never executed")
	}
	if got := seen.PreviousString(); got != "C1" {
		t.Fatalf("PreviousResult = %q, want %q", got, "C1")
	}
}

func TestPassFailureStopsJob(t *testing.T) {
	t.Parallel()

	s := memory.New()
	var seen *handler.Exec
	pool := poolWith(t, map[string]func() handler.Handler{
		"boom": func() handler.Handler { return &failingHandler{} },
		"next": func() handler.Handler { return &captureHandler{seen: &seen} },
	})
	j := createJob(t, s, "", "boom", "next")

	d := digest.New(s, pool)
	stats, err := d.Pass(context.Background(), digest.PassOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Failed != 1 {
		t.Fatalf("stats = %+v, want 1 failed", stats)
	}
	if seen != nil {
		t.Fatal("request after a failure was attempted in the same pass")
	}

	reqs := requestsOf(t, s, j)
	first := reqs[0]
	if first.IsSynced {
		t.Fatal("failed request marked synced")
	}
	if first.Attempt != 1 {
		t.Fatalf("Attempt = %d, want 1", first.Attempt)
	}
	if first.LatestFailReason == "" {
		t.Fatal("fail reason not recorded")
	}
	if first.State() != job.StateFailed {
		t.Fatalf("state = %q", first.State())
	}

	got, err := s.GetJob(context.Background(), j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Completed {
		t.Fatal("job with failed request marked completed")
	}
}

func TestPassRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	s := memory.New()
	var calls int
	pool := handler.NewPool()
	err := pool.Register("flaky", func() handler.Handler {
		return &funcHandler{execute: func(_ context.Context, _ *handler.Exec) (any, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("transient")
			}
			return "ok", nil
		}}
	})
	if err != nil {
		t.Fatal(err)
	}
	j := createJob(t, s, "", "flaky")

	d := digest.New(s, pool)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := d.Pass(ctx, digest.PassOpts{}); err != nil {
			t.Fatal(err)
		}
	}

	r := requestsOf(t, s, j)[0]
	if !r.IsSynced {
		t.Fatal("request not synced after handler recovered")
	}
	if r.Attempt != 2 {
		t.Fatalf("Attempt = %d, want 2 recorded failures", r.Attempt)
	}
	if r.LatestFailReason != "" {
		t.Fatalf("fail reason not cleared on success: %q", r.LatestFailReason)
	}
}

func TestPassDedupSkipsDuplicateHash(t *testing.T) {
	t.Parallel()

	s := memory.New()
	index := dedup.NewMemory()
	var applied []string
	failAfterApply := true
	pool := handler.NewPool()
	err := pool.Register("transaction", func() handler.Handler {
		return &ledgerHandler{index: index, applied: &applied, failAfterApply: &failAfterApply}
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	j, err := job.NewBuilder(s).StoreID("shop-1").
		AddRequest("transaction", job.Payload{"contact": "c-1", "credits": 25.0}).
		Create(ctx, true)
	if err != nil {
		t.Fatal(err)
	}

	// First pass: the remote write lands, then the handler dies before
	// the request is marked synced.
	d := digest.New(s, pool)
	stats, err := d.Pass(ctx, digest.PassOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Failed != 1 {
		t.Fatalf("first pass stats = %+v, want 1 failed", stats)
	}

	// Second pass: the recorded hash turns the retry into a skip.
	stats, err = d.Pass(ctx, digest.PassOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Skipped != 1 {
		t.Fatalf("second pass stats = %+v, want 1 skipped", stats)
	}
	if len(applied) != 1 {
		t.Fatalf("remote transactions = %d, want exactly 1", len(applied))
	}

	r := requestsOf(t, s, j)[0]
	if r.State() != job.StateSkipped {
		t.Fatalf("state = %q, want skipped", r.State())
	}
	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Completed {
		t.Fatal("a skip is terminal, job must complete")
	}
}

func TestPassSkippedStateDerivation(t *testing.T) {
	t.Parallel()

	s := memory.New()
	pool := handler.NewPool()
	err := pool.Register("dup", func() handler.Handler {
		return &funcHandler{execute: func(_ context.Context, _ *handler.Exec) (any, error) {
			return nil, handler.SkipDuplicate("abc123", nil)
		}}
	})
	if err != nil {
		t.Fatal(err)
	}
	j := createJob(t, s, "", "dup")

	d := digest.New(s, pool)
	if _, err := d.Pass(context.Background(), digest.PassOpts{}); err != nil {
		t.Fatal(err)
	}

	r := requestsOf(t, s, j)[0]
	if r.State() != job.StateSkipped {
		t.Fatalf("state = %q, want skipped", r.State())
	}
	if !r.Terminal() {
		t.Fatal("skipped request not terminal")
	}
	if r.LatestFailReason == "" {
		t.Fatal("skip reason not recorded")
	}
}

func TestPassRelationOrdering(t *testing.T) {
	t.Parallel()

	s := memory.New()
	pool := poolWith(t, map[string]func() handler.Handler{
		"boom": func() handler.Handler { return &failingHandler{} },
		"ok":   func() handler.Handler { return &echoHandler{result: "ok"} },
	})

	// Older job in the relation keeps failing; the newer one must wait.
	parent := createJob(t, s, "customer-42", "boom")
	child := createJob(t, s, "customer-42", "ok")

	d := digest.New(s, pool)
	ctx := context.Background()
	if _, err := d.Pass(ctx, digest.PassOpts{}); err != nil {
		t.Fatal(err)
	}

	childReq := requestsOf(t, s, child)[0]
	if childReq.IsSynced {
		t.Fatal("child job ran while parent was open")
	}

	// Parent completes; the child is released on the next pass.
	parentReq := requestsOf(t, s, parent)[0]
	parentReq.IsSynced = true
	if err := s.UpdateRequest(ctx, parentReq); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Pass(ctx, digest.PassOpts{}); err != nil {
		t.Fatal(err)
	}

	childReq = requestsOf(t, s, child)[0]
	if !childReq.IsSynced {
		t.Fatal("child job not released after parent completed")
	}
}

func TestPassSkipsLeasedJobs(t *testing.T) {
	t.Parallel()

	s := memory.New()
	pool := poolWith(t, map[string]func() handler.Handler{
		"ok": func() handler.Handler { return &echoHandler{result: "ok"} },
	})
	j := createJob(t, s, "", "ok")

	ctx := context.Background()
	other := id.NewWorkerID()
	if err := s.ClaimJob(ctx, j.ID, other, time.Minute); err != nil {
		t.Fatal(err)
	}

	d := digest.New(s, pool)
	stats, err := d.Pass(ctx, digest.PassOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Jobs != 0 {
		t.Fatalf("picked up %d leased jobs", stats.Jobs)
	}
	if requestsOf(t, s, j)[0].IsSynced {
		t.Fatal("leased job was executed")
	}
}

func TestPassParksUnknownType(t *testing.T) {
	t.Parallel()

	s := memory.New()
	pool := poolWith(t, map[string]func() handler.Handler{
		"ok": func() handler.Handler { return &echoHandler{result: "ok"} },
	})
	j := createJob(t, s, "", "mystery", "ok")

	d := digest.New(s, pool)
	stats, err := d.Pass(context.Background(), digest.PassOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Parked != 1 {
		t.Fatalf("stats = %+v, want 1 parked", stats)
	}

	reqs := requestsOf(t, s, j)
	if !reqs[0].Parked {
		t.Fatal("unknown-type request not parked")
	}
	if reqs[0].IsSynced {
		t.Fatal("parked request marked terminal")
	}
	if reqs[1].IsSynced {
		t.Fatal("request after a parked request was executed")
	}

	got, err := s.GetJob(context.Background(), j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Completed {
		t.Fatal("job with parked request marked completed")
	}
}

func TestPassParksOnExhaustedBudget(t *testing.T) {
	t.Parallel()

	s := memory.New()
	pool := poolWith(t, map[string]func() handler.Handler{
		"boom": func() handler.Handler { return &failingHandler{} },
	})
	j := createJob(t, s, "", "boom")

	d := digest.New(s, pool, digest.WithRetryPolicy(retry.Policy{MaxAttempts: 2}))
	ctx := context.Background()
	if _, err := d.Pass(ctx, digest.PassOpts{}); err != nil {
		t.Fatal(err)
	}
	stats, err := d.Pass(ctx, digest.PassOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Parked != 1 {
		t.Fatalf("stats = %+v, want 1 parked on second failure", stats)
	}

	r := requestsOf(t, s, j)[0]
	if !r.Parked {
		t.Fatal("request not parked after budget spent")
	}
	if r.Attempt != 2 {
		t.Fatalf("Attempt = %d, want 2", r.Attempt)
	}
}

func TestPassHonorsRetryDeferral(t *testing.T) {
	t.Parallel()

	s := memory.New()
	pool := poolWith(t, map[string]func() handler.Handler{
		"boom": func() handler.Handler { return &failingHandler{} },
	})
	j := createJob(t, s, "", "boom")

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	d := digest.New(s, pool,
		digest.WithRetryPolicy(retry.Policy{Backoff: retry.NewConstant(time.Hour)}),
		digest.WithNow(func() time.Time { return now }))

	ctx := context.Background()
	if _, err := d.Pass(ctx, digest.PassOpts{}); err != nil {
		t.Fatal(err)
	}
	r := requestsOf(t, s, j)[0]
	if r.NextAttemptAt == nil {
		t.Fatal("retry not deferred")
	}

	// Within the deferral window: no new attempt.
	now = now.Add(30 * time.Minute)
	if _, err := d.Pass(ctx, digest.PassOpts{}); err != nil {
		t.Fatal(err)
	}
	if got := requestsOf(t, s, j)[0].Attempt; got != 1 {
		t.Fatalf("Attempt = %d within deferral, want 1", got)
	}

	// Past the window: retried.
	now = now.Add(31 * time.Minute)
	if _, err := d.Pass(ctx, digest.PassOpts{}); err != nil {
		t.Fatal(err)
	}
	if got := requestsOf(t, s, j)[0].Attempt; got != 2 {
		t.Fatalf("Attempt = %d after deferral, want 2", got)
	}
}

func TestPassValidateFalseLeavesPending(t *testing.T) {
	t.Parallel()

	s := memory.New()
	pool := poolWith(t, map[string]func() handler.Handler{
		"wait": func() handler.Handler { return &notReadyHandler{} },
	})
	j := createJob(t, s, "", "wait")

	d := digest.New(s, pool)
	stats, err := d.Pass(context.Background(), digest.PassOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Failed != 0 || stats.Parked != 0 {
		t.Fatalf("stats = %+v, validate=false is not a failure", stats)
	}

	r := requestsOf(t, s, j)[0]
	if r.State() != job.StatePending {
		t.Fatalf("state = %q, want pending", r.State())
	}
	if r.Attempt != 0 {
		t.Fatalf("Attempt = %d, want 0", r.Attempt)
	}
}

func TestPassStoreScope(t *testing.T) {
	t.Parallel()

	s := memory.New()
	pool := poolWith(t, map[string]func() handler.Handler{
		"ok": func() handler.Handler { return &echoHandler{result: "ok"} },
	})

	ctx := context.Background()
	inScope, err := job.NewBuilder(s).StoreID("shop-1").AddRequest("ok", job.Payload{}).Create(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	outOfScope, err := job.NewBuilder(s).StoreID("shop-2").AddRequest("ok", job.Payload{}).Create(ctx, true)
	if err != nil {
		t.Fatal(err)
	}

	d := digest.New(s, pool)
	if _, err := d.Pass(ctx, digest.PassOpts{StoreID: "shop-1"}); err != nil {
		t.Fatal(err)
	}

	if !requestsOf(t, s, inScope)[0].IsSynced {
		t.Fatal("in-scope job not processed")
	}
	if requestsOf(t, s, outOfScope)[0].IsSynced {
		t.Fatal("out-of-scope job processed")
	}
}

// funcHandler adapts a function into a Handler that always validates.
type funcHandler struct {
	execute func(ctx context.Context, ex *handler.Exec) (any, error)
}

func (h *funcHandler) Validate(_ context.Context, _ *job.Job, _ *job.Request) (bool, error) {
	return true, nil
}

func (h *funcHandler) Execute(ctx context.Context, ex *handler.Exec) (any, error) {
	return h.execute(ctx, ex)
}

func TestPassRecoversFromPanickingHandler(t *testing.T) {
	t.Parallel()

	s := memory.New()
	pool := poolWith(t, map[string]func() handler.Handler{
		"explode": func() handler.Handler {
			return &funcHandler{execute: func(_ context.Context, _ *handler.Exec) (any, error) {
				panic("handler went sideways")
			}}
		},
	})
	j := createJob(t, s, "", "explode")

	d := digest.New(s, pool)
	stats, err := d.Pass(context.Background(), digest.PassOpts{})
	if err != nil {
		t.Fatalf("Pass: %v", err)
	}
	if stats.Failed != 1 {
		t.Fatalf("stats = %+v, want 1 failed", stats)
	}

	r := requestsOf(t, s, j)[0]
	if r.IsSynced {
		t.Fatal("panicking request marked synced")
	}
	if r.Attempt != 1 {
		t.Fatalf("Attempt = %d, want 1", r.Attempt)
	}
	if !strings.Contains(r.LatestFailReason, "panic") {
		t.Fatalf("fail reason = %q, want a panic record", r.LatestFailReason)
	}
}

// leaseStealingStore hands the lease to another worker mid-pass, after
// the digest has claimed the job but before it walks the requests. This
// models a lease that expired and was reclaimed while the pass ran long.
type leaseStealingStore struct {
	*memory.Store
	jobID  id.JobID
	from   id.WorkerID
	to     id.WorkerID
	stolen bool
}

func (s *leaseStealingStore) ListRequests(ctx context.Context, jobID id.JobID) ([]*job.Request, error) {
	if !s.stolen && jobID.String() == s.jobID.String() {
		s.stolen = true
		if err := s.Store.ReleaseJob(ctx, jobID, s.from); err != nil {
			return nil, err
		}
		if err := s.Store.ClaimJob(ctx, jobID, s.to, time.Minute); err != nil {
			return nil, err
		}
	}
	return s.Store.ListRequests(ctx, jobID)
}

func TestPassCompletionPreservesReclaimedLease(t *testing.T) {
	t.Parallel()

	mem := memory.New()
	pool := poolWith(t, map[string]func() handler.Handler{
		"ok": func() handler.Handler { return &echoHandler{result: "ok"} },
	})
	j := createJob(t, mem, "", "ok")

	worker := id.NewWorkerID()
	thief := id.NewWorkerID()
	s := &leaseStealingStore{Store: mem, jobID: j.ID, from: worker, to: thief}

	d := digest.New(s, pool, digest.WithWorkerID(worker))
	stats, err := d.Pass(context.Background(), digest.PassOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Completed != 1 {
		t.Fatalf("stats = %+v, want 1 completed", stats)
	}

	got, err := mem.GetJob(context.Background(), j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Completed {
		t.Fatal("job not completed")
	}
	// Completing the job must not overwrite the lease the other worker
	// now holds; the original worker's deferred release is a no-op.
	if got.LeasedBy.String() != thief.String() {
		t.Fatalf("LeasedBy = %q, want the reclaiming worker %q", got.LeasedBy, thief)
	}
}
