package ratelimit

import (
	"sync"
	"time"
)

// Clock abstracts time for the Limiter so tests can measure spacing
// without real sleeps.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Limiter enforces a minimum spacing between consecutive calls: Limit
// blocks until at least one interval (1s / callsPerSecond) has elapsed
// since the previous call returned. It tracks only the last-call
// timestamp (no token bucket, no burst allowance) and throttles a
// single process only; it is shared per store connection.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	clock    Clock
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithClock injects a clock. Intended for tests.
func WithClock(c Clock) LimiterOption {
	return func(l *Limiter) { l.clock = c }
}

// NewLimiter creates a Limiter allowing callsPerSecond sustained calls.
// A non-positive rate disables throttling.
func NewLimiter(callsPerSecond int, opts ...LimiterOption) *Limiter {
	l := &Limiter{clock: realClock{}}
	if callsPerSecond > 0 {
		l.interval = time.Second / time.Duration(callsPerSecond)
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit blocks the caller until the spacing interval has elapsed since
// the previous call returned. The first call never blocks, and a call
// after an idle period longer than the interval proceeds immediately.
func (l *Limiter) Limit() {
	if l.interval <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if !l.last.IsZero() {
		if wait := l.interval - now.Sub(l.last); wait > 0 {
			l.clock.Sleep(wait)
		}
	}
	l.last = l.clock.Now()
}
