package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orbix/internal/logging"
	"orbix/internal/stage"
	"orbix/internal/stageexec"
)

// ErrUnknownStage is returned by RunNow for an unregistered name.
var ErrUnknownStage = errors.New("unknown stage")

// ErrBusy is returned by RunNow when the job is already running.
var ErrBusy = errors.New("stage already running")

// Start runs recovery and preflight, then launches one goroutine per job.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.jobs) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}
	jobs := append([]*job(nil), m.jobs...)
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.started = m.clock()
	m.mu.Unlock()

	m.recover(runCtx)
	if m.preflight {
		m.runPreflightChecks(runCtx)
	}

	m.wg.Add(len(jobs))
	for _, j := range jobs {
		go m.runJob(runCtx, j)
	}
	m.logger.Info("workflow started",
		logging.Int("jobs", len(jobs)),
		logging.String(logging.FieldEventType, "workflow_started"),
	)
	return nil
}

// Stop cancels every job and waits for in-flight invocations to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stopped"))
}

// RunNow invokes a registered stage immediately and waits for the result.
func (m *Manager) RunNow(ctx context.Context, name string) (stage.Result, error) {
	m.mu.RLock()
	j := m.byName[name]
	m.mu.RUnlock()
	if j == nil {
		return stage.Result{}, fmt.Errorf("%w: %s", ErrUnknownStage, name)
	}
	if !j.guard.TryLock() {
		return stage.Result{}, fmt.Errorf("%w: %s", ErrBusy, name)
	}
	defer j.guard.Unlock()
	return m.invoke(ctx, j)
}

func (m *Manager) runJob(ctx context.Context, j *job) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String(logging.FieldStage, j.handler.Name()))

	next := m.firstRun(j)
	for {
		j.setNext(next)
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		// Failures are logged and notified by stageexec; the schedule goes on.
		if j.guard.TryLock() {
			_, _ = m.invoke(ctx, j)
			j.guard.Unlock()
		} else {
			logger.Debug("scheduled run skipped; manual run in progress")
		}
		next = m.nextRun(j, m.clock())
	}
}

// invoke runs j once through stageexec. The caller holds j.guard.
func (m *Manager) invoke(ctx context.Context, j *job) (stage.Result, error) {
	j.begin(m.clock())
	result, err := stageexec.Run(ctx, stageexec.Options{
		Logger:   m.logger,
		Settings: m.settings,
		Notifier: m.notifier,
		LockDir:  m.lockDir,
	}, j.handler)
	j.finish(m.clock(), result, err)
	return result, err
}

func (m *Manager) firstRun(j *job) time.Time {
	now := m.clock()
	if j.schedule.DailyAt != "" {
		return m.nextRun(j, now)
	}
	return now
}

func (m *Manager) nextRun(j *job, now time.Time) time.Time {
	if j.schedule.DailyAt != "" {
		next, err := nextDaily(now, j.schedule.DailyAt, m.cfg.Location())
		if err == nil {
			return next
		}
		m.logger.Warn("invalid daily schedule; retrying in 24h", logging.Error(err))
		return now.Add(24 * time.Hour)
	}
	return now.Add(j.schedule.Every)
}
