package handler

import (
	"context"
	"encoding/json"

	"github.com/the-line/loyaltysync/job"
)

// Handler executes a single remote operation for one request type code.
// The Pool constructs a fresh instance per request, so implementations
// may keep per-execution state but must not share state across requests.
type Handler interface {
	// Validate is the business-rule gate. Returning false means the
	// request is not executed this pass, is not counted as a failure,
	// and stays pending for re-evaluation on a later pass.
	Validate(ctx context.Context, j *job.Job, r *job.Request) (bool, error)

	// Execute performs the remote call and/or local side effects.
	// Returning a *Skip error marks the request skipped (terminal, no
	// remote effect); any other error records a retryable failure.
	// The returned value becomes the request's result and the next
	// request's PreviousResult.
	Execute(ctx context.Context, ex *Exec) (any, error)
}

// Bag is the mutable key→value data bag handlers read their input from.
// It is seeded from the request payload.
type Bag map[string]any

// Set stores a value under key.
func (b Bag) Set(key string, value any) { b[key] = value }

// Get returns the value for key, or nil when absent.
func (b Bag) Get(key string) any { return b[key] }

// String returns the string value for key, or "" when absent or not a
// string.
func (b Bag) String(key string) string {
	s, _ := b[key].(string)
	return s
}

// Float returns the numeric value for key, or 0 when absent.
func (b Bag) Float(key string) float64 {
	f, _ := b[key].(float64)
	return f
}

// Exec is the execution context passed to Handler.Execute. The previous
// request's result travels here explicitly rather than through a
// reserved bag key, so payload keys can never collide with it.
type Exec struct {
	// Job and Request identify the work being executed.
	Job     *job.Job
	Request *job.Request

	// Data is the mutable bag seeded from the request payload.
	Data Bag

	// PreviousResult is the raw JSON result of the immediately
	// preceding request in the same job, nil for the first request or
	// when the predecessor was skipped without a pass-through value.
	PreviousResult json.RawMessage
}

// NewExec builds an execution context for the request, seeding the data
// bag from a deep copy of the payload.
func NewExec(j *job.Job, r *job.Request, previous json.RawMessage) *Exec {
	bag := Bag{}
	for k, v := range r.Payload.Clone() {
		bag[k] = v
	}
	return &Exec{
		Job:            j,
		Request:        r,
		Data:           bag,
		PreviousResult: previous,
	}
}

// Previous unmarshals PreviousResult. Returns nil when there is none.
func (e *Exec) Previous() (any, error) {
	if len(e.PreviousResult) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(e.PreviousResult, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// PreviousString returns PreviousResult decoded as a string, or "" when
// there is none or it is not a string.
func (e *Exec) PreviousString() string {
	v, err := e.Previous()
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
