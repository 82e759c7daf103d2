package stage

import (
	"context"

	"orbix/internal/settings"
)

// Handler describes the contract the scheduler needs from each pipeline stage.
// Run processes one batch of eligible items using the settings snapshot taken
// for this invocation. Item-level failures are counted in the Result; only
// failures that abort the whole batch are returned as errors.
type Handler interface {
	Name() string
	Run(ctx context.Context, snapshot settings.Settings) (Result, error)
	HealthCheck(ctx context.Context) Health
}

// Stage names, also used as lock file names and CLI arguments.
const (
	NameIngestion       = "ingestion"
	NameClassification  = "classification"
	NameScripting       = "scripting"
	NameReview          = "review"
	NameRenderAdmission = "render_admission"
	NameRender          = "render"
	NamePublish         = "publish"
	NameAnalytics       = "analytics"
)

// Names lists every stage in pipeline order.
var Names = []string{
	NameIngestion,
	NameClassification,
	NameScripting,
	NameReview,
	NameRenderAdmission,
	NameRender,
	NamePublish,
	NameAnalytics,
}
