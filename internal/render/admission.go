package render

import (
	"context"
	"log/slog"

	"orbix/internal/logging"
	"orbix/internal/services"
	"orbix/internal/settings"
	"orbix/internal/stage"
	"orbix/internal/store"
)

// AdmissionStore is the persistence surface used by render admission.
type AdmissionStore interface {
	RenderCandidates(ctx context.Context) ([]store.RenderCandidate, error)
	AdmitRender(ctx context.Context, storyID, scriptID string) (*store.Render, bool, error)
}

// Admission queues renders for approved scripts.
type Admission struct {
	store  AdmissionStore
	logger *slog.Logger
}

// NewAdmission builds the render admission stage.
func NewAdmission(st AdmissionStore, logger *slog.Logger) *Admission {
	return &Admission{
		store:  st,
		logger: logging.NewComponentLogger(logger, stage.NameRenderAdmission),
	}
}

func (a *Admission) Name() string { return stage.NameRenderAdmission }

func (a *Admission) HealthCheck(context.Context) stage.Health { return stage.Healthy(a.Name()) }

// Run admits every candidate once. A candidate that gained a render since the
// candidate query ran is counted as skipped.
func (a *Admission) Run(ctx context.Context, _ settings.Settings) (stage.Result, error) {
	var result stage.Result
	candidates, err := a.store.RenderCandidates(ctx)
	if err != nil {
		return result, services.Wrap(services.ErrTransient, stage.NameRenderAdmission, "list candidates", "", err)
	}
	for _, c := range candidates {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		itemCtx := services.WithItemID(ctx, c.StoryID)
		logger := logging.WithContext(itemCtx, a.logger)
		render, created, err := a.store.AdmitRender(itemCtx, c.StoryID, c.ScriptID)
		switch {
		case err != nil:
			result.Fail()
			logging.WarnWithContext(logger, "render admission failed", "render_admit_failed",
				logging.String("script_id", c.ScriptID),
				logging.Error(err),
			)
		case !created:
			result.Skip()
			logger.Debug("render already exists", logging.String("script_id", c.ScriptID))
		default:
			result.Succeed()
			logger.Info("render admitted",
				logging.String("render_id", render.ID),
				logging.String("script_id", c.ScriptID),
			)
		}
	}
	return result, nil
}
