package handler_test

import (
	"context"
	"errors"
	"testing"

	"github.com/the-line/loyaltysync"
	"github.com/the-line/loyaltysync/handler"
	"github.com/the-line/loyaltysync/id"
	"github.com/the-line/loyaltysync/job"
)

// countingHandler tracks construction so tests can assert the pool hands
// out fresh instances.
type countingHandler struct {
	instance int
}

func (h *countingHandler) Validate(context.Context, *job.Job, *job.Request) (bool, error) {
	return true, nil
}

func (h *countingHandler) Execute(context.Context, *handler.Exec) (any, error) {
	return nil, nil
}

func TestPoolRegisterAndResolve(t *testing.T) {
	t.Parallel()

	p := handler.NewPool()
	built := 0
	if err := p.Register("contact_create", func() handler.Handler {
		built++
		return &countingHandler{instance: built}
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	a, err := p.Resolve("contact_create")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	b, err := p.Resolve("contact_create")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if a.(*countingHandler).instance == b.(*countingHandler).instance {
		t.Fatal("Resolve returned a shared handler instance")
	}
}

func TestPoolRejectsBadRegistrations(t *testing.T) {
	t.Parallel()

	p := handler.NewPool()
	factory := func() handler.Handler { return &countingHandler{} }

	if err := p.Register("", factory); err == nil {
		t.Fatal("expected error for empty type code")
	}
	if err := p.Register("x", nil); err == nil {
		t.Fatal("expected error for nil factory")
	}

	if err := p.Register("order_export", factory); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := p.Register("order_export", factory)
	if !errors.Is(err, loyaltysync.ErrDuplicateType) {
		t.Fatalf("duplicate registration error = %v, want ErrDuplicateType", err)
	}
}

func TestPoolResolveUnknown(t *testing.T) {
	t.Parallel()

	p := handler.NewPool()
	_, err := p.Resolve("nope")
	if !errors.Is(err, loyaltysync.ErrUnknownRequestType) {
		t.Fatalf("error = %v, want ErrUnknownRequestType", err)
	}
}

func TestExecSeedsBagFromPayload(t *testing.T) {
	t.Parallel()

	r := &job.Request{
		ID:      id.NewRequestID(),
		Payload: job.Payload{"email": "a@x.com", "amount": 3.5},
	}
	ex := handler.NewExec(&job.Job{}, r, nil)

	if got := ex.Data.String("email"); got != "a@x.com" {
		t.Fatalf("bag email = %q", got)
	}

	// Bag mutations must not leak back into the stored payload.
	ex.Data.Set("email", "mutated")
	if r.Payload.String("email") != "a@x.com" {
		t.Fatal("bag mutation leaked into request payload")
	}
}

func TestExecPreviousResult(t *testing.T) {
	t.Parallel()

	ex := handler.NewExec(&job.Job{}, &job.Request{}, []byte(`"C1"`))
	if got := ex.PreviousString(); got != "C1" {
		t.Fatalf("PreviousString = %q, want C1", got)
	}

	empty := handler.NewExec(&job.Job{}, &job.Request{}, nil)
	v, err := empty.Previous()
	if err != nil || v != nil {
		t.Fatalf("empty previous = %v, %v", v, err)
	}
}

func TestSkipIsAnError(t *testing.T) {
	t.Parallel()

	var err error = handler.SkipDuplicate("abc123", "pass-through")

	var skip *handler.Skip
	if !errors.As(err, &skip) {
		t.Fatal("errors.As failed to unwrap *Skip")
	}
	if skip.Result != "pass-through" {
		t.Fatalf("pass-through = %v", skip.Result)
	}
	if skip.Reason == "" {
		t.Fatal("skip reason empty")
	}
}
