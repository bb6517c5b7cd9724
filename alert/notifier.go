package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/the-line/loyaltysync/hook"
)

// MarkerStore persists the last-sent timestamp per failure class so the
// cooldown throttle holds across process restarts.
type MarkerStore interface {
	// LastAlert returns the time the class was last alerted on, or the
	// zero time when it never has been.
	LastAlert(ctx context.Context, class string) (time.Time, error)

	// SetLastAlert records the time the class was alerted on.
	SetLastAlert(ctx context.Context, class string, at time.Time) error
}

// Notifier sends at most one alert per failure class per cooldown window.
type Notifier struct {
	mailer     Mailer
	markers    MarkerStore
	recipients []string
	cooldown   time.Duration
	hooks      *hook.Registry
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

// WithHooks sets the lifecycle hook registry. Registered AlertSent hooks
// fire after every delivered (not suppressed) alert.
func WithHooks(r *hook.Registry) Option {
	return func(n *Notifier) { n.hooks = r }
}

// NewNotifier creates a throttled notifier. A zero cooldown disables
// throttling entirely.
func NewNotifier(mailer Mailer, markers MarkerStore, recipients []string, cooldown time.Duration, opts ...Option) *Notifier {
	n := &Notifier{
		mailer:     mailer,
		markers:    markers,
		recipients: recipients,
		cooldown:   cooldown,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify sends an alert for the given failure class unless one was
// already sent within the cooldown window. Returns true when a message
// was actually delivered.
func (n *Notifier) Notify(ctx context.Context, class, subject, body string) (bool, error) {
	now := n.now().UTC()

	if n.cooldown > 0 {
		last, err := n.markers.LastAlert(ctx, class)
		if err != nil {
			return false, fmt.Errorf("alert: last marker for %q: %w", class, err)
		}
		if !last.IsZero() && now.Sub(last) < n.cooldown {
			n.logger.Debug("alert suppressed by cooldown",
				"class", class,
				"last_sent", last,
				"cooldown", n.cooldown)
			return false, nil
		}
	}

	if err := n.mailer.Send(ctx, n.recipients, subject, body); err != nil {
		return false, err
	}
	if err := n.markers.SetLastAlert(ctx, class, now); err != nil {
		return true, fmt.Errorf("alert: record marker for %q: %w", class, err)
	}

	n.logger.Info("alert sent", "class", class, "subject", subject, "recipients", len(n.recipients))
	if n.hooks != nil {
		n.hooks.EmitAlertSent(ctx, class, subject)
	}
	return true, nil
}
