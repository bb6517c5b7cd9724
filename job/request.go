package job

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/the-line/loyaltysync"
	"github.com/the-line/loyaltysync/id"
)

// State is the derived lifecycle state of a Request.
type State string

const (
	// StatePending means the request has never been attempted.
	StatePending State = "pending"
	// StateFailed means the request failed at least once and is
	// eligible for retry on a later pass.
	StateFailed State = "failed"
	// StateSkipped means the request is terminal without a remote
	// effect (dedup hit); LatestFailReason explains why.
	StateSkipped State = "skipped"
	// StateSynced means the request completed successfully.
	StateSynced State = "synced"
)

// Request is one remote operation within a Job, identified by a type code
// and payload, tracked to terminal success/skip or retryable failure.
type Request struct {
	loyaltysync.Entity

	ID    id.RequestID `json:"id"`
	JobID id.JobID     `json:"job_id"`

	// TypeCode selects the handler variant executing this request.
	TypeCode string `json:"type_code"`

	// Payload is the handler input, stored losslessly as JSON.
	Payload Payload `json:"payload"`

	// Result is the raw JSON value produced by a successful execution,
	// or a pass-through value recorded on a skip. Nil until then.
	Result json.RawMessage `json:"result,omitempty"`

	// IsSynced flips false→true exactly once; the request is immutable
	// afterwards except for timestamps.
	IsSynced bool `json:"is_synced"`

	// Attempt counts failed executions. Incremented on every failure,
	// never reset, never decremented.
	Attempt int `json:"attempt"`

	// LatestFailReason holds the last failure or skip explanation,
	// overwritten on each failed or skipped attempt.
	LatestFailReason string `json:"latest_fail_reason,omitempty"`

	// NextAttemptAt defers retry eligibility per the configured retry
	// policy. Nil means eligible immediately.
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`

	// Parked marks the request non-retryable without operator
	// intervention (unknown type code, exhausted attempt budget).
	Parked bool `json:"parked"`
}

// State derives the request's lifecycle state from its fields.
func (r *Request) State() State {
	switch {
	case r.IsSynced && r.LatestFailReason != "":
		return StateSkipped
	case r.IsSynced:
		return StateSynced
	case r.Attempt > 0:
		return StateFailed
	default:
		return StatePending
	}
}

// Terminal reports whether the request reached a terminal state
// (synced or skipped).
func (r *Request) Terminal() bool { return r.IsSynced }

// Eligible reports whether the digest may attempt the request at now.
func (r *Request) Eligible(now time.Time) bool {
	if r.IsSynced || r.Parked {
		return false
	}
	return r.NextAttemptAt == nil || !r.NextAttemptAt.After(now)
}

// SetResult marshals v and records it as the request's result.
func (r *Request) SetResult(v any) error {
	if v == nil {
		r.Result = nil
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("job: marshal result for request %s: %w", r.ID, err)
	}
	r.Result = data
	return nil
}

// ResultValue unmarshals the recorded result. Returns nil when no result
// has been recorded.
func (r *Request) ResultValue() (any, error) {
	if len(r.Result) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(r.Result, &v); err != nil {
		return nil, fmt.Errorf("job: unmarshal result for request %s: %w", r.ID, err)
	}
	return v, nil
}
