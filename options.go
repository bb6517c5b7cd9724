package loyaltysync

import (
	"context"
	"log/slog"
)

// Option configures a Syncer.
type Option func(*Syncer) error

// Storer is the minimal store interface held by the Syncer. It covers
// lifecycle operations only. The full composite interface (store.Store)
// is used by subsystem layers that don't create import cycles.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// triggerRunner is an internal interface for the pass scheduler lifecycle.
type triggerRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// hookEmitter is an internal interface for lifecycle hook shutdown events.
type hookEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Syncer is the central coordinator for loyalty synchronization. It holds
// the store, configuration, and logger, and owns the lifecycle of the
// trigger scheduler. Use the digest package to wire the runner onto it.
type Syncer struct {
	config Config
	logger *slog.Logger
	store  Storer
	hooks  hookEmitter
	sched  triggerRunner

	started bool
}

// New creates a Syncer with the given options.
func New(opts ...Option) (*Syncer, error) {
	s := &Syncer{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Logger returns the syncer's logger.
func (s *Syncer) Logger() *slog.Logger { return s.logger }

// Store returns the syncer's store.
func (s *Syncer) Store() Storer { return s.store }

// Config returns a copy of the syncer's configuration.
func (s *Syncer) Config() Config { return s.config }

// SetScheduler sets the trigger scheduler (called by the digest wiring).
func (s *Syncer) SetScheduler(r triggerRunner) { s.sched = r }

// SetHooks sets the hook emitter (called by the digest wiring).
func (s *Syncer) SetHooks(h hookEmitter) { s.hooks = h }

// Start begins scheduled pass processing.
func (s *Syncer) Start(ctx context.Context) error {
	if s.sched == nil {
		return ErrNoStore
	}
	if err := s.sched.Start(ctx); err != nil {
		return err
	}
	s.started = true
	return nil
}

// Stop gracefully shuts down the syncer.
func (s *Syncer) Stop(ctx context.Context) error {
	if s.sched != nil && s.started {
		if err := s.sched.Stop(ctx); err != nil {
			s.logger.Error("scheduler stop error", "error", err)
		}
	}
	if s.hooks != nil {
		s.hooks.EmitShutdown(ctx)
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// WithStore sets the persistence backend for the syncer. The store must
// implement Storer at minimum; typically it will be a store.Store which
// embeds all subsystem store interfaces.
func WithStore(st Storer) Option {
	return func(s *Syncer) error {
		s.store = st
		return nil
	}
}

// WithLogger sets the structured logger for the syncer.
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) error {
		s.logger = l
		return nil
	}
}

// WithConfig replaces the entire configuration.
func WithConfig(c Config) Option {
	return func(s *Syncer) error {
		s.config = c
		return nil
	}
}

// WithCallsPerSecond sets the outbound API call rate per store connection.
func WithCallsPerSecond(n int) Option {
	return func(s *Syncer) error {
		s.config.CallsPerSecond = n
		return nil
	}
}

// WithBatchSize sets the maximum number of jobs per digest pass.
func WithBatchSize(n int) Option {
	return func(s *Syncer) error {
		s.config.BatchSize = n
		return nil
	}
}

// WithAlertRecipients sets the operator alert recipient list.
func WithAlertRecipients(recipients ...string) Option {
	return func(s *Syncer) error {
		s.config.AlertRecipients = recipients
		return nil
	}
}
