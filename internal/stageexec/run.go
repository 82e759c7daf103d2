package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"orbix/internal/logging"
	"orbix/internal/notifications"
	"orbix/internal/services"
	"orbix/internal/settings"
	"orbix/internal/stage"
)

// HaltLocked is the Result.Halted value reported when another process holds
// the stage lock.
const HaltLocked = "locked"

// Options controls stage execution.
type Options struct {
	Logger   *slog.Logger
	Settings settings.Reader
	Notifier notifications.Service
	// LockDir holds one lock file per stage. Empty disables cross-process
	// locking.
	LockDir string
}

// Run executes one invocation of handler: it tags the context with a fresh
// run identifier, takes the per-stage file lock, loads a settings snapshot,
// and logs the outcome. A lock held by another process is not an error; the
// run is skipped.
func Run(ctx context.Context, opts Options, handler stage.Handler) (stage.Result, error) {
	if handler == nil {
		return stage.Result{}, errors.New("stage handler unavailable")
	}
	if opts.Settings == nil {
		return stage.Result{}, errors.New("settings reader is required")
	}
	name := handler.Name()

	stageCtx := services.WithStage(services.WithRequestID(ctx, uuid.NewString()), name)
	logger := logging.WithContext(stageCtx, opts.Logger)

	unlock, locked, err := acquire(opts.LockDir, name)
	if err != nil {
		return stage.Result{}, services.Wrap(services.ErrTransient, name, "lock", "acquire stage lock", err)
	}
	if !locked {
		logger.Info("stage skipped; another run holds the lock",
			logging.String(logging.FieldEventType, "stage_locked"),
		)
		return stage.Result{Halted: HaltLocked}, nil
	}
	defer unlock()

	snapshot, warnings, err := settings.Load(stageCtx, opts.Settings)
	if err != nil {
		return stage.Result{}, handleFailure(stageCtx, logger, opts.Notifier, name, err)
	}
	for _, w := range warnings {
		logging.WarnWithContext(logger, "invalid setting ignored", "settings_invalid",
			logging.String("detail", w),
			logging.String(logging.FieldErrorHint, "fix the value with `orbix settings set`"),
			logging.String(logging.FieldImpact, "default value used"),
		)
	}

	logger.Debug("stage started", logging.String(logging.FieldEventType, "stage_start"))
	started := time.Now()

	result, err := handler.Run(stageCtx, snapshot)
	if err != nil {
		return result, handleFailure(stageCtx, logger, opts.Notifier, name, err)
	}

	level := slog.LevelDebug
	if !result.Empty() {
		level = slog.LevelInfo
	}
	logger.Log(stageCtx, level, "stage completed", logging.Args(
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("considered", result.Considered),
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", result.Failed),
		logging.Int("skipped", result.Skipped),
		logging.String("halted", result.Halted),
		logging.Duration("elapsed", time.Since(started)),
	)...)
	return result, nil
}

func acquire(dir, name string) (func(), bool, error) {
	if dir == "" {
		return func() {}, true, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, false, fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(filepath.Join(dir, name+".lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return func() { _ = lock.Unlock() }, true, nil
}

func handleFailure(ctx context.Context, logger *slog.Logger, notifier notifications.Service, stageName string, stageErr error) error {
	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.String(logging.FieldErrorKind, services.Kind(stageErr)),
		logging.String("error_message", services.Reason(stageErr)),
		logging.Error(stageErr),
	)
	if notifier != nil {
		if err := notifier.Publish(ctx, notifications.EventError, notifications.Payload{
			"error":   stageErr,
			"context": stageName,
		}); err != nil {
			logger.Debug("stage error notification failed", logging.Error(err))
		}
	}
	return stageErr
}
