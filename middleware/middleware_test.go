package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/the-line/loyaltysync/id"
	"github.com/the-line/loyaltysync/job"
	"github.com/the-line/loyaltysync/middleware"
)

func testRequest() *job.Request {
	return &job.Request{
		ID:       id.NewRequestID(),
		JobID:    id.NewJobID(),
		TypeCode: "order",
		Attempt:  1,
	}
}

func TestChain_ExecutionOrder(t *testing.T) {
	var order []string

	mw1 := func(ctx context.Context, _ *job.Request, next middleware.Handler) error {
		order = append(order, "mw1-before")
		err := next(ctx)
		order = append(order, "mw1-after")
		return err
	}

	mw2 := func(ctx context.Context, _ *job.Request, next middleware.Handler) error {
		order = append(order, "mw2-before")
		err := next(ctx)
		order = append(order, "mw2-after")
		return err
	}

	chain := middleware.Chain(mw1, mw2)
	handler := func(_ context.Context) error {
		order = append(order, "handler")
		return nil
	}

	if err := chain(context.Background(), testRequest(), handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(order), order)
	}
	for i, want := range expected {
		if order[i] != want {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want)
		}
	}
}

func TestChain_Empty(t *testing.T) {
	chain := middleware.Chain()
	called := false
	handler := func(_ context.Context) error {
		called = true
		return nil
	}

	if err := chain(context.Background(), testRequest(), handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called through empty chain")
	}
}

func TestChain_ErrorShortCircuits(t *testing.T) {
	sentinel := errors.New("handler broke")
	var afterRan bool

	observer := func(ctx context.Context, _ *job.Request, next middleware.Handler) error {
		err := next(ctx)
		afterRan = true
		return err
	}

	chain := middleware.Chain(observer)
	err := chain(context.Background(), testRequest(), func(_ context.Context) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("error = %v, want sentinel", err)
	}
	if !afterRan {
		t.Fatal("middleware post-processing skipped on error")
	}
}

func TestRecover_ConvertsPanicToError(t *testing.T) {
	mw := middleware.Recover(slog.Default())

	err := mw(context.Background(), testRequest(), func(_ context.Context) error {
		panic("boom")
	})
	if err == nil {
		t.Fatal("panic not converted to error")
	}
}

func TestRecover_PassesThroughNormalErrors(t *testing.T) {
	mw := middleware.Recover(slog.Default())
	sentinel := errors.New("plain failure")

	err := mw(context.Background(), testRequest(), func(_ context.Context) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("error = %v, want sentinel", err)
	}
}

func TestTimeout_CancelsContext(t *testing.T) {
	mw := middleware.Timeout(10 * time.Millisecond)

	err := mw(context.Background(), testRequest(), func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want DeadlineExceeded", err)
	}
}

func TestTimeout_ZeroIsDisabled(t *testing.T) {
	mw := middleware.Timeout(0)

	err := mw(context.Background(), testRequest(), func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			t.Error("deadline set with zero timeout")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
