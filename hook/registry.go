package hook

import (
	"context"
	"log/slog"

	"github.com/the-line/loyaltysync/job"
)

// Named entry types pair a hook implementation with the name captured at
// registration time. This avoids type-asserting back to Hook inside the
// emit methods.
type requestSyncedEntry struct {
	name string
	hook RequestSynced
}

type requestSkippedEntry struct {
	name string
	hook RequestSkipped
}

type requestFailedEntry struct {
	name string
	hook RequestFailed
}

type requestParkedEntry struct {
	name string
	hook RequestParked
}

type jobCompletedEntry struct {
	name string
	hook JobCompleted
}

type passCompletedEntry struct {
	name string
	hook PassCompleted
}

type alertSentEntry struct {
	name string
	hook AlertSent
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered hooks and dispatches lifecycle events to
// them. It type-caches hooks at registration time so emit calls iterate
// only over hooks that implement the relevant event.
type Registry struct {
	hooks  []Hook
	logger *slog.Logger

	// Type-cached slices for each lifecycle event.
	requestSynced  []requestSyncedEntry
	requestSkipped []requestSkippedEntry
	requestFailed  []requestFailedEntry
	requestParked  []requestParkedEntry
	jobCompleted   []jobCompletedEntry
	passCompleted  []passCompletedEntry
	alertSent      []alertSentEntry
	shutdown       []shutdownEntry
}

// NewRegistry creates a hook registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a hook and type-asserts it into all applicable event
// caches. Hooks are notified in registration order.
func (r *Registry) Register(h Hook) {
	r.hooks = append(r.hooks, h)
	name := h.Name()

	if e, ok := h.(RequestSynced); ok {
		r.requestSynced = append(r.requestSynced, requestSyncedEntry{name, e})
	}
	if e, ok := h.(RequestSkipped); ok {
		r.requestSkipped = append(r.requestSkipped, requestSkippedEntry{name, e})
	}
	if e, ok := h.(RequestFailed); ok {
		r.requestFailed = append(r.requestFailed, requestFailedEntry{name, e})
	}
	if e, ok := h.(RequestParked); ok {
		r.requestParked = append(r.requestParked, requestParkedEntry{name, e})
	}
	if e, ok := h.(JobCompleted); ok {
		r.jobCompleted = append(r.jobCompleted, jobCompletedEntry{name, e})
	}
	if e, ok := h.(PassCompleted); ok {
		r.passCompleted = append(r.passCompleted, passCompletedEntry{name, e})
	}
	if e, ok := h.(AlertSent); ok {
		r.alertSent = append(r.alertSent, alertSentEntry{name, e})
	}
	if e, ok := h.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, e})
	}
}

// Hooks returns all registered hooks.
func (r *Registry) Hooks() []Hook { return r.hooks }

// EmitRequestSynced notifies all hooks that implement RequestSynced.
func (r *Registry) EmitRequestSynced(ctx context.Context, req *job.Request) {
	for _, e := range r.requestSynced {
		if err := e.hook.OnRequestSynced(ctx, req); err != nil {
			r.logHookError("OnRequestSynced", e.name, err)
		}
	}
}

// EmitRequestSkipped notifies all hooks that implement RequestSkipped.
func (r *Registry) EmitRequestSkipped(ctx context.Context, req *job.Request, reason string) {
	for _, e := range r.requestSkipped {
		if err := e.hook.OnRequestSkipped(ctx, req, reason); err != nil {
			r.logHookError("OnRequestSkipped", e.name, err)
		}
	}
}

// EmitRequestFailed notifies all hooks that implement RequestFailed.
func (r *Registry) EmitRequestFailed(ctx context.Context, req *job.Request, reqErr error) {
	for _, e := range r.requestFailed {
		if err := e.hook.OnRequestFailed(ctx, req, reqErr); err != nil {
			r.logHookError("OnRequestFailed", e.name, err)
		}
	}
}

// EmitRequestParked notifies all hooks that implement RequestParked.
func (r *Registry) EmitRequestParked(ctx context.Context, req *job.Request, reason string) {
	for _, e := range r.requestParked {
		if err := e.hook.OnRequestParked(ctx, req, reason); err != nil {
			r.logHookError("OnRequestParked", e.name, err)
		}
	}
}

// EmitJobCompleted notifies all hooks that implement JobCompleted.
func (r *Registry) EmitJobCompleted(ctx context.Context, j *job.Job) {
	for _, e := range r.jobCompleted {
		if err := e.hook.OnJobCompleted(ctx, j); err != nil {
			r.logHookError("OnJobCompleted", e.name, err)
		}
	}
}

// EmitPassCompleted notifies all hooks that implement PassCompleted.
func (r *Registry) EmitPassCompleted(ctx context.Context, stats PassStats) {
	for _, e := range r.passCompleted {
		if err := e.hook.OnPassCompleted(ctx, stats); err != nil {
			r.logHookError("OnPassCompleted", e.name, err)
		}
	}
}

// EmitAlertSent notifies all hooks that implement AlertSent.
func (r *Registry) EmitAlertSent(ctx context.Context, class, subject string) {
	for _, e := range r.alertSent {
		if err := e.hook.OnAlertSent(ctx, class, subject); err != nil {
			r.logHookError("OnAlertSent", e.name, err)
		}
	}
}

// EmitShutdown notifies all hooks that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a hook failure. Hook errors never propagate to the
// digest.
func (r *Registry) logHookError(event, name string, err error) {
	r.logger.Error("hook error",
		"event", event,
		"hook", name,
		"error", err)
}
