package stageexec_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"

	"orbix/internal/logging"
	"orbix/internal/notifications"
	"orbix/internal/services"
	"orbix/internal/settings"
	"orbix/internal/stage"
	"orbix/internal/stageexec"
	"orbix/internal/testsupport"
)

type fakeHandler struct {
	calls    int
	snapshot settings.Settings
	stage    string
	request  string
	result   stage.Result
	err      error
}

func (f *fakeHandler) Name() string { return "classification" }

func (f *fakeHandler) Run(ctx context.Context, s settings.Settings) (stage.Result, error) {
	f.calls++
	f.snapshot = s
	f.stage, _ = services.StageFromContext(ctx)
	f.request, _ = services.RequestIDFromContext(ctx)
	return f.result, f.err
}

func (f *fakeHandler) HealthCheck(context.Context) stage.Health { return stage.Healthy(f.Name()) }

type recordingNotifier struct {
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.events = append(r.events, event)
	return nil
}

func TestRunPassesFreshSettingsAndContext(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	if err := settings.Set(ctx, st, settings.KeyThreshold, "72"); err != nil {
		t.Fatalf("set threshold: %v", err)
	}

	handler := &fakeHandler{result: stage.Result{Considered: 1, Succeeded: 1}}
	opts := stageexec.Options{Logger: logging.NewNop(), Settings: st, LockDir: cfg.LockDir()}
	result, err := stageexec.Run(ctx, opts, handler)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Succeeded != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if handler.snapshot.Threshold != 72 {
		t.Fatalf("expected threshold 72, got %d", handler.snapshot.Threshold)
	}
	if handler.stage != "classification" || handler.request == "" {
		t.Fatalf("expected stage and request id in context, got %q %q", handler.stage, handler.request)
	}

	if err := settings.Set(ctx, st, settings.KeyThreshold, "40"); err != nil {
		t.Fatalf("set threshold: %v", err)
	}
	firstRequest := handler.request
	if _, err := stageexec.Run(ctx, opts, handler); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if handler.snapshot.Threshold != 40 {
		t.Fatalf("expected settings re-read, got %d", handler.snapshot.Threshold)
	}
	if handler.request == firstRequest {
		t.Fatal("expected a new request id per run")
	}
}

func TestRunSkipsWhenLockHeld(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	held := flock.New(filepath.Join(cfg.LockDir(), "classification.lock"))
	testsupport.WriteBytes(t, held.Path(), nil)
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("hold lock: ok=%v err=%v", ok, err)
	}
	defer held.Unlock()

	handler := &fakeHandler{}
	result, err := stageexec.Run(context.Background(), stageexec.Options{Logger: logging.NewNop(), Settings: st, LockDir: cfg.LockDir()}, handler)
	if err != nil {
		t.Fatalf("expected skip without error, got %v", err)
	}
	if handler.calls != 0 {
		t.Fatalf("handler should not run while lock held")
	}
	if result.Halted != stageexec.HaltLocked {
		t.Fatalf("expected locked halt, got %+v", result)
	}
}

func TestRunNotifiesOnFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	notifier := &recordingNotifier{}
	boom := services.Wrap(services.ErrTransient, "classification", "batch", "store unavailable", nil)

	handler := &fakeHandler{err: boom}
	_, err := stageexec.Run(context.Background(), stageexec.Options{Logger: logging.NewNop(), Settings: st, Notifier: notifier}, handler)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventError {
		t.Fatalf("expected one error notification, got %v", notifier.events)
	}
}
