package workflow

import (
	"context"
	"sync"
	"time"

	"orbix/internal/stage"
)

// StageSet bundles the concrete stage handlers the manager schedules. Nil
// handlers are not scheduled.
type StageSet struct {
	Ingestion       stage.Handler
	Classification  stage.Handler
	Scripting       stage.Handler
	Review          stage.Handler
	RenderAdmission stage.Handler
	Render          stage.Handler
	Publish         stage.Handler
	Analytics       stage.Handler
}

// Lookup returns the handler registered under name.
func (s StageSet) Lookup(name string) (stage.Handler, bool) {
	for _, h := range []stage.Handler{
		s.Ingestion, s.Classification, s.Scripting, s.Review,
		s.RenderAdmission, s.Render, s.Publish, s.Analytics,
	} {
		if h != nil && h.Name() == name {
			return h, true
		}
	}
	return nil, false
}

// Schedule describes when a job runs. Exactly one of Every and DailyAt is
// set; DailyAt is "HH:MM" in the configured time zone.
type Schedule struct {
	Every   time.Duration
	DailyAt string
}

// Recoverer repairs state left behind by an earlier process before the
// first job runs.
type Recoverer interface {
	Recover(ctx context.Context) (int64, error)
}

// JobStatus is the externally visible state of one job.
type JobStatus struct {
	Name       string
	Schedule   Schedule
	Running    bool
	Runs       int
	LastStart  time.Time
	LastFinish time.Time
	LastResult stage.Result
	LastError  string
	NextRun    time.Time
}

type job struct {
	handler  stage.Handler
	schedule Schedule

	// guard serializes invocations inside this process.
	guard sync.Mutex

	mu     sync.Mutex
	status JobStatus
}

func (j *job) snapshot() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *job) begin(at time.Time) {
	j.mu.Lock()
	j.status.Running = true
	j.status.LastStart = at
	j.mu.Unlock()
}

func (j *job) finish(at time.Time, result stage.Result, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status.Running = false
	j.status.Runs++
	j.status.LastFinish = at
	j.status.LastResult = result
	j.status.LastError = ""
	if err != nil {
		j.status.LastError = err.Error()
	}
}

func (j *job) setNext(at time.Time) {
	j.mu.Lock()
	j.status.NextRun = at
	j.mu.Unlock()
}
