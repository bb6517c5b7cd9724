package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/the-line/loyaltysync/digest"
)

// PassFunc executes one digest pass. digest.Digest.Pass satisfies it.
type PassFunc func(ctx context.Context, opts digest.PassOpts) (digest.Stats, error)

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTickInterval sets how often the scheduler checks for due triggers.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.tickInterval = d }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// entry pairs a registered trigger with its parsed schedule and an
// in-flight guard so one trigger never overlaps itself.
type entry struct {
	trigger  Trigger
	schedule cronlib.Schedule
	running  atomic.Bool
}

// Scheduler fires digest passes for registered triggers on a tick loop.
type Scheduler struct {
	store Store
	pass  PassFunc

	mu      sync.RWMutex
	entries map[string]*entry

	tickInterval time.Duration
	logger       *slog.Logger
	now          func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewScheduler creates a Scheduler dispatching passes through pass and
// persisting last-run times in store.
func NewScheduler(store Store, pass PassFunc, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		store:        store,
		pass:         pass,
		entries:      make(map[string]*entry),
		tickInterval: time.Second,
		logger:       slog.Default(),
		now:          time.Now,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a trigger. Fails fast on an empty name, an unparsable
// schedule, or a duplicate name.
func (s *Scheduler) Register(t Trigger) error {
	sched, err := t.validate()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[t.Name]; exists {
		return fmt.Errorf("trigger %q: already registered", t.Name)
	}
	s.entries[t.Name] = &entry{trigger: t, schedule: sched}
	return nil
}

// MustRegister is like Register but panics on error. Use at startup for
// hardcoded triggers.
func (s *Scheduler) MustRegister(t Trigger) {
	if err := s.Register(t); err != nil {
		panic(err)
	}
}

// Triggers returns the names of all registered triggers.
func (s *Scheduler) Triggers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// Start launches the tick loop. Cancelling ctx stops the loop and
// propagates into in-flight passes.
func (s *Scheduler) Start(ctx context.Context) error {
	s.wg.Add(1)
	go s.tickLoop(ctx)
	s.logger.Info("trigger scheduler started",
		slog.Int("triggers", len(s.Triggers())),
		slog.Duration("tick_interval", s.tickInterval),
	)
	return nil
}

// Stop signals the scheduler to stop and waits for in-flight passes.
func (s *Scheduler) Stop(_ context.Context) error {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("trigger scheduler stopped")
	return nil
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.RunDue(ctx, s.now().UTC()); err != nil {
				s.logger.Error("trigger tick error", slog.String("error", err.Error()))
			}
		}
	}
}

// RunDue fires every trigger whose schedule has elapsed since its last
// recorded run. Due triggers run concurrently; RunDue returns after all
// of them finish, with the first pass error if any.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) error {
	s.mu.RLock()
	due := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		due = append(due, e)
	}
	s.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, e := range due {
		g.Go(func() error {
			return s.runIfDue(ctx, e, now)
		})
	}
	return g.Wait()
}

func (s *Scheduler) runIfDue(ctx context.Context, e *entry, now time.Time) error {
	last, err := s.store.LastRun(ctx, e.trigger.Name)
	if err != nil {
		return fmt.Errorf("trigger %q: last run: %w", e.trigger.Name, err)
	}
	if last.IsZero() {
		// Never ran: anchor the schedule at now instead of firing a
		// catch-up pass for all of history.
		if err := s.store.SetLastRun(ctx, e.trigger.Name, now); err != nil {
			return fmt.Errorf("trigger %q: anchor: %w", e.trigger.Name, err)
		}
		return nil
	}
	if e.schedule.Next(last).After(now) {
		return nil
	}

	if !e.running.CompareAndSwap(false, true) {
		s.logger.Debug("trigger still running, skipping", slog.String("trigger", e.trigger.Name))
		return nil
	}
	defer e.running.Store(false)

	opts := digest.PassOpts{
		Trigger: e.trigger.Name,
		StoreID: e.trigger.StoreID,
		Limit:   e.trigger.Limit,
	}
	if e.trigger.CutoffWindow > 0 {
		opts.CreatedBefore = now.Add(-e.trigger.CutoffWindow)
	}

	if _, err := s.pass(ctx, opts); err != nil {
		s.logger.Error("trigger pass failed",
			slog.String("trigger", e.trigger.Name),
			slog.String("error", err.Error()),
		)
		return err
	}
	if err := s.store.SetLastRun(ctx, e.trigger.Name, now); err != nil {
		return fmt.Errorf("trigger %q: record run: %w", e.trigger.Name, err)
	}
	return nil
}
