package workflow

import (
	"context"
	"time"

	"orbix/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	StartedAt   time.Time
	Jobs        []JobStatus
	StageHealth map[string]stage.Health
}

// Status returns the latest per-job state in registration order.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	jobs := append([]*job(nil), m.jobs...)
	summary := StatusSummary{Running: m.running, StartedAt: m.started}
	m.mu.RUnlock()

	summary.Jobs = make([]JobStatus, 0, len(jobs))
	summary.StageHealth = make(map[string]stage.Health, len(jobs))
	for _, j := range jobs {
		summary.Jobs = append(summary.Jobs, j.snapshot())
		summary.StageHealth[j.handler.Name()] = j.handler.HealthCheck(ctx)
	}
	return summary
}

// Stages returns the registered stage names in registration order.
func (m *Manager) Stages() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.jobs))
	for _, j := range m.jobs {
		names = append(names, j.handler.Name())
	}
	return names
}
