// Package retry defines the policy governing failed request re-attempts:
// an optional attempt budget and a pluggable delay strategy deciding when
// a failed request becomes eligible again. All strategies are stateless
// and safe for concurrent use.
package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	// Attempt 1 is the first retry after the initial failure.
	Delay(attempt int) time.Duration
}

// Policy decides whether and when a failed request is retried.
type Policy struct {
	// MaxAttempts parks a request after this many failed executions.
	// Zero means unbounded: the request is retried every pass until it
	// succeeds or an operator intervenes.
	MaxAttempts int

	// Backoff computes the eligibility delay after each failure.
	// Nil means no delay: the request is eligible on the next pass.
	Backoff Strategy
}

// Exhausted reports whether the attempt count has consumed the budget.
func (p Policy) Exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt >= p.MaxAttempts
}

// NextAttemptAt returns when the request becomes eligible again, or nil
// for immediately.
func (p Policy) NextAttemptAt(now time.Time, attempt int) *time.Time {
	if p.Backoff == nil {
		return nil
	}
	d := p.Backoff.Delay(attempt)
	if d <= 0 {
		return nil
	}
	at := now.Add(d)
	return &at
}

// DefaultPolicy matches the queue's historical behavior: unbounded
// attempts, retried on every pass with no deferral.
func DefaultPolicy() Policy {
	return Policy{}
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same delay regardless of attempt number.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant delay strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the delay each attempt.
// Delay = min(Initial * 2^(attempt-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential delay strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	d := time.Duration(float64(e.Initial) * math.Pow(2, float64(attempt-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// ExponentialWithJitter (full jitter)
// ──────────────────────────────────────────────────

// ExponentialWithJitter applies full jitter to an exponential base.
// Delay = random value in [0, min(Initial * 2^(attempt-1), Max)].
// This prevents synchronized retry bursts when many requests fail at
// once (a remote outage fails whole passes at a time).
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter creates an exponential strategy with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

// Delay returns a random duration in [0, min(Initial * 2^(attempt-1), Max)].
func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	base := float64(e.Initial) * math.Pow(2, float64(attempt-1))
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	return time.Duration(rand.Float64() * base) //nolint:gosec // jitter intentionally uses non-crypto rand
}
