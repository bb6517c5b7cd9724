package alert_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/the-line/loyaltysync/alert"
	"github.com/the-line/loyaltysync/hook"
)

type recordingMailer struct {
	mu    sync.Mutex
	sent  []string
	calls int
}

func (m *recordingMailer) Send(_ context.Context, _ []string, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, subject)
	m.calls++
	return nil
}

type memMarkers struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func newMemMarkers() *memMarkers {
	return &memMarkers{last: make(map[string]time.Time)}
}

func (s *memMarkers) LastAlert(_ context.Context, class string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[class], nil
}

func (s *memMarkers) SetLastAlert(_ context.Context, class string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[class] = at
	return nil
}

func TestNotifyCooldownSuppressesRepeat(t *testing.T) {
	t.Parallel()

	mailer := &recordingMailer{}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	n := alert.NewNotifier(mailer, newMemMarkers(), []string{"ops@example.com"}, time.Hour,
		alert.WithNow(func() time.Time { return now }))

	ctx := context.Background()

	sent, err := n.Notify(ctx, "auth-failure", "credentials revoked", "store shop-1")
	if err != nil {
		t.Fatalf("first Notify: %v", err)
	}
	if !sent {
		t.Fatal("first alert not sent")
	}

	// Within the window: suppressed, no error.
	now = now.Add(30 * time.Minute)
	sent, err = n.Notify(ctx, "auth-failure", "credentials revoked", "store shop-1")
	if err != nil {
		t.Fatalf("second Notify: %v", err)
	}
	if sent {
		t.Fatal("alert within cooldown was delivered")
	}
	if mailer.calls != 1 {
		t.Fatalf("mailer calls = %d, want 1", mailer.calls)
	}

	// Past the window: sent again.
	now = now.Add(31 * time.Minute)
	sent, err = n.Notify(ctx, "auth-failure", "credentials revoked", "store shop-1")
	if err != nil {
		t.Fatalf("third Notify: %v", err)
	}
	if !sent {
		t.Fatal("alert after cooldown not sent")
	}
}

func TestNotifyClassesThrottleIndependently(t *testing.T) {
	t.Parallel()

	mailer := &recordingMailer{}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	n := alert.NewNotifier(mailer, newMemMarkers(), []string{"ops@example.com"}, time.Hour,
		alert.WithNow(func() time.Time { return now }))

	ctx := context.Background()
	if _, err := n.Notify(ctx, "auth-failure", "a", ""); err != nil {
		t.Fatal(err)
	}
	sent, err := n.Notify(ctx, "export-stalled", "b", "")
	if err != nil {
		t.Fatal(err)
	}
	if !sent {
		t.Fatal("distinct class was throttled by another class's marker")
	}
	if mailer.calls != 2 {
		t.Fatalf("mailer calls = %d, want 2", mailer.calls)
	}
}

func TestNotifyZeroCooldownAlwaysSends(t *testing.T) {
	t.Parallel()

	mailer := &recordingMailer{}
	n := alert.NewNotifier(mailer, newMemMarkers(), []string{"ops@example.com"}, 0)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		sent, err := n.Notify(ctx, "auth-failure", "s", "")
		if err != nil {
			t.Fatal(err)
		}
		if !sent {
			t.Fatalf("send %d suppressed with zero cooldown", i)
		}
	}
	if mailer.calls != 3 {
		t.Fatalf("mailer calls = %d, want 3", mailer.calls)
	}
}

type alertSentHook struct {
	mu       sync.Mutex
	classes  []string
	subjects []string
}

func (h *alertSentHook) Name() string { return "alert-sent-recorder" }

func (h *alertSentHook) OnAlertSent(_ context.Context, class, subject string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.classes = append(h.classes, class)
	h.subjects = append(h.subjects, subject)
	return nil
}

func TestNotifyEmitsAlertSentHook(t *testing.T) {
	t.Parallel()

	mailer := &recordingMailer{}
	recorder := &alertSentHook{}
	hooks := hook.NewRegistry(slog.Default())
	hooks.Register(recorder)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	n := alert.NewNotifier(mailer, newMemMarkers(), []string{"ops@example.com"}, time.Hour,
		alert.WithNow(func() time.Time { return now }),
		alert.WithHooks(hooks))

	ctx := context.Background()

	sent, err := n.Notify(ctx, "auth-failure", "credentials revoked", "store shop-1")
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if !sent {
		t.Fatal("first alert not delivered")
	}
	if len(recorder.classes) != 1 || recorder.classes[0] != "auth-failure" {
		t.Fatalf("hook classes = %v, want one auth-failure", recorder.classes)
	}
	if recorder.subjects[0] != "credentials revoked" {
		t.Fatalf("hook subject = %q", recorder.subjects[0])
	}

	// A suppressed alert must not reach the hook.
	sent, err = n.Notify(ctx, "auth-failure", "credentials revoked", "store shop-1")
	if err != nil {
		t.Fatalf("second Notify: %v", err)
	}
	if sent {
		t.Fatal("alert inside cooldown was delivered")
	}
	if len(recorder.classes) != 1 {
		t.Fatalf("suppressed alert reached the hook: %v", recorder.classes)
	}
}
