package workflow

import (
	"fmt"
	"time"

	"orbix/internal/logging"
	"orbix/internal/stage"
)

// ConfigureStages registers every non-nil handler with the cadence from the
// [schedule] config section.
func (m *Manager) ConfigureStages(set StageSet) {
	sched := m.cfg.Schedule
	every := func(minutes int) Schedule {
		return Schedule{Every: time.Duration(minutes) * time.Minute}
	}
	entries := []struct {
		handler  stage.Handler
		schedule Schedule
	}{
		{set.Ingestion, every(sched.ScrapeMinutes)},
		{set.Classification, every(sched.ClassifyMinutes)},
		{set.Scripting, every(sched.ScriptMinutes)},
		{set.Review, every(sched.ReviewMinutes)},
		{set.RenderAdmission, every(sched.RenderAdmissionMinutes)},
		{set.Render, every(sched.RenderMinutes)},
		{set.Publish, every(sched.PublishMinutes)},
		{set.Analytics, Schedule{DailyAt: sched.AnalyticsAt}},
	}
	for _, e := range entries {
		if e.handler == nil {
			continue
		}
		if err := m.Register(e.handler, e.schedule); err != nil {
			m.logger.Warn("stage not scheduled", logging.String(logging.FieldStage, e.handler.Name()), logging.Error(err))
		}
	}
}

// Register adds a job. Registering after Start or twice under one name is
// an error.
func (m *Manager) Register(handler stage.Handler, schedule Schedule) error {
	if handler == nil {
		return fmt.Errorf("nil handler")
	}
	if schedule.Every <= 0 && schedule.DailyAt == "" {
		return fmt.Errorf("%s: schedule requires an interval or a daily time", handler.Name())
	}
	if schedule.DailyAt != "" {
		if _, _, err := parseClock(schedule.DailyAt); err != nil {
			return fmt.Errorf("%s: %w", handler.Name(), err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("%s: manager already running", handler.Name())
	}
	name := handler.Name()
	if _, exists := m.byName[name]; exists {
		return fmt.Errorf("%s: already registered", name)
	}
	j := &job{handler: handler, schedule: schedule}
	j.status.Name = name
	j.status.Schedule = schedule
	m.jobs = append(m.jobs, j)
	m.byName[name] = j
	return nil
}
