package trigger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/the-line/loyaltysync/digest"
	"github.com/the-line/loyaltysync/store/memory"
	"github.com/the-line/loyaltysync/trigger"
)

type passRecorder struct {
	mu    sync.Mutex
	calls []digest.PassOpts
	block chan struct{}
}

func (p *passRecorder) pass(_ context.Context, opts digest.PassOpts) (digest.Stats, error) {
	p.mu.Lock()
	p.calls = append(p.calls, opts)
	p.mu.Unlock()
	if p.block != nil {
		<-p.block
	}
	return digest.Stats{}, nil
}

func (p *passRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func TestRegisterRejectsBadTriggers(t *testing.T) {
	t.Parallel()

	s := trigger.NewScheduler(memory.New(), (&passRecorder{}).pass)

	if err := s.Register(trigger.Trigger{Name: "", Schedule: "* * * * *"}); err == nil {
		t.Fatal("empty name accepted")
	}
	if err := s.Register(trigger.Trigger{Name: "bad", Schedule: "not-cron"}); err == nil {
		t.Fatal("unparsable schedule accepted")
	}
	if err := s.Register(trigger.Trigger{Name: "order-export", Schedule: "*/5 * * * *"}); err != nil {
		t.Fatalf("valid trigger rejected: %v", err)
	}
	if err := s.Register(trigger.Trigger{Name: "order-export", Schedule: "* * * * *"}); err == nil {
		t.Fatal("duplicate name accepted")
	}
}

func TestFirstRunAnchorsWithoutFiring(t *testing.T) {
	t.Parallel()

	store := memory.New()
	rec := &passRecorder{}
	s := trigger.NewScheduler(store, rec.pass)
	s.MustRegister(trigger.Trigger{Name: "order-export", Schedule: "@every 5m"})

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := s.RunDue(context.Background(), now); err != nil {
		t.Fatal(err)
	}
	if rec.count() != 0 {
		t.Fatal("first tick fired a catch-up pass")
	}

	last, err := store.LastRun(context.Background(), "order-export")
	if err != nil {
		t.Fatal(err)
	}
	if !last.Equal(now) {
		t.Fatalf("anchor = %v, want %v", last, now)
	}
}

func TestRunDueFiresOnSchedule(t *testing.T) {
	t.Parallel()

	store := memory.New()
	rec := &passRecorder{}
	s := trigger.NewScheduler(store, rec.pass)
	s.MustRegister(trigger.Trigger{
		Name:         "order-export",
		Schedule:     "@every 5m",
		StoreID:      "shop-1",
		CutoffWindow: time.Minute,
	})

	ctx := context.Background()
	anchor := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := s.RunDue(ctx, anchor); err != nil {
		t.Fatal(err)
	}

	// Not due yet.
	if err := s.RunDue(ctx, anchor.Add(2*time.Minute)); err != nil {
		t.Fatal(err)
	}
	if rec.count() != 0 {
		t.Fatal("trigger fired before its schedule elapsed")
	}

	// Due.
	fireAt := anchor.Add(5 * time.Minute)
	if err := s.RunDue(ctx, fireAt); err != nil {
		t.Fatal(err)
	}
	if rec.count() != 1 {
		t.Fatalf("passes = %d, want 1", rec.count())
	}

	opts := rec.calls[0]
	if opts.Trigger != "order-export" || opts.StoreID != "shop-1" {
		t.Fatalf("pass opts = %+v", opts)
	}
	if want := fireAt.Add(-time.Minute); !opts.CreatedBefore.Equal(want) {
		t.Fatalf("CreatedBefore = %v, want %v", opts.CreatedBefore, want)
	}

	// Last run advanced; immediately after, not due again.
	if err := s.RunDue(ctx, fireAt.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	if rec.count() != 1 {
		t.Fatal("trigger re-fired before its schedule elapsed again")
	}
}

func TestDistinctTriggersFireTogether(t *testing.T) {
	t.Parallel()

	store := memory.New()
	rec := &passRecorder{}
	s := trigger.NewScheduler(store, rec.pass)
	s.MustRegister(trigger.Trigger{Name: "order-export", Schedule: "@every 5m"})
	s.MustRegister(trigger.Trigger{Name: "contact-sync", Schedule: "@every 5m"})

	ctx := context.Background()
	anchor := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := s.RunDue(ctx, anchor); err != nil {
		t.Fatal(err)
	}
	if err := s.RunDue(ctx, anchor.Add(5*time.Minute)); err != nil {
		t.Fatal(err)
	}
	if rec.count() != 2 {
		t.Fatalf("passes = %d, want both triggers fired", rec.count())
	}
}

func TestTriggerDoesNotOverlapItself(t *testing.T) {
	t.Parallel()

	store := memory.New()
	rec := &passRecorder{block: make(chan struct{})}
	s := trigger.NewScheduler(store, rec.pass)
	s.MustRegister(trigger.Trigger{Name: "order-export", Schedule: "@every 1m"})

	ctx := context.Background()
	anchor := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := s.RunDue(ctx, anchor); err != nil {
		t.Fatal(err)
	}

	// First firing blocks inside the pass.
	done := make(chan error, 1)
	go func() {
		done <- s.RunDue(ctx, anchor.Add(time.Minute))
	}()

	// Wait until the blocked pass has started.
	for rec.count() == 0 {
		time.Sleep(time.Millisecond)
	}

	// A second due tick while still running must skip, not stack.
	if err := s.RunDue(ctx, anchor.Add(2*time.Minute)); err != nil {
		t.Fatal(err)
	}
	if rec.count() != 1 {
		t.Fatalf("passes = %d, overlapping trigger fired twice", rec.count())
	}

	close(rec.block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestStartContextReachesInFlightPasses(t *testing.T) {
	t.Parallel()

	st := memory.New()

	passCtxCh := make(chan context.Context, 1)
	release := make(chan struct{})
	pass := func(ctx context.Context, _ digest.PassOpts) (digest.Stats, error) {
		passCtxCh <- ctx
		<-release
		return digest.Stats{}, nil
	}

	s := trigger.NewScheduler(st, pass, trigger.WithTickInterval(5*time.Millisecond))
	s.MustRegister(trigger.Trigger{Name: "order-export", Schedule: "@every 1s"})

	// Anchor in the past so the first tick fires.
	if err := st.SetLastRun(context.Background(), "order-export", time.Now().Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}

	var passCtx context.Context
	select {
	case passCtx = <-passCtxCh:
	case <-time.After(2 * time.Second):
		t.Fatal("pass never fired")
	}

	// Cancelling the start context must propagate into the running pass.
	cancel()
	select {
	case <-passCtx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("cancellation did not reach the in-flight pass")
	}

	close(release)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}
