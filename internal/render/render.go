package render

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"orbix/internal/config"
	"orbix/internal/logging"
	"orbix/internal/notifications"
	"orbix/internal/objectstore"
	"orbix/internal/services"
	"orbix/internal/services/ffmpeg"
	"orbix/internal/settings"
	"orbix/internal/stage"
	"orbix/internal/store"
)

// Store is the persistence surface used by the render stage.
type Store interface {
	RenderJobs(ctx context.Context, status store.RenderStatus, limit int) ([]store.RenderJob, error)
	ClaimRender(ctx context.Context, id, template, backgroundType, backgroundID string) (bool, error)
	CompleteRender(ctx context.Context, id, outputURL, log string, at time.Time) error
	FailRender(ctx context.Context, id, log string) error
	ResetStuckRenders(ctx context.Context, cutoff time.Time) (int64, error)
}

// Renderer composes one video.
type Renderer interface {
	Render(ctx context.Context, comp ffmpeg.Composition, output string) (ffmpeg.Output, error)
}

// Artifacts persists finished videos.
type Artifacts interface {
	PutFile(ctx context.Context, bucket, key, src string) (objectstore.Object, error)
}

// Option configures the render stage.
type Option func(*Stage)

// WithRand injects the random source used for background and template
// selection.
func WithRand(rng *rand.Rand) Option {
	return func(s *Stage) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Stage) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithBatch bounds the renders handled per run; 0 means all.
func WithBatch(n int) Option {
	return func(s *Stage) { s.batch = n }
}

// Stage renders PENDING renders one at a time.
type Stage struct {
	store     Store
	renderer  Renderer
	artifacts Artifacts
	notifier  notifications.Service
	logger    *slog.Logger

	bucket    string
	workDir   string
	assetsDir string

	rng   *rand.Rand
	clock func() time.Time
	batch int
}

// New builds the render stage.
func New(cfg *config.Config, st Store, renderer Renderer, artifacts Artifacts, notifier notifications.Service, logger *slog.Logger, opts ...Option) *Stage {
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	s := &Stage{
		store:     st,
		renderer:  renderer,
		artifacts: artifacts,
		notifier:  notifier,
		logger:    logging.NewComponentLogger(logger, stage.NameRender),
		bucket:    cfg.Storage.Bucket,
		workDir:   cfg.Paths.WorkDir,
		assetsDir: cfg.Paths.AssetsDir,
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Stage) Name() string { return stage.NameRender }

type binaryProvider interface {
	Binary() string
}

func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s.renderer == nil {
		return stage.Unhealthy(s.Name(), "renderer not configured")
	}
	if s.artifacts == nil {
		return stage.Unhealthy(s.Name(), "object store not configured")
	}
	if bp, ok := s.renderer.(binaryProvider); ok {
		if _, err := exec.LookPath(bp.Binary()); err != nil {
			return stage.Unhealthy(s.Name(), "ffmpeg not found: "+bp.Binary())
		}
	}
	return stage.Healthy(s.Name())
}

// Recover returns renders left PROCESSING by an earlier process to PENDING.
// Call it before the first run.
func (s *Stage) Recover(ctx context.Context) (int64, error) {
	n, err := s.store.ResetStuckRenders(ctx, s.clock().UTC())
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, stage.NameRender, "recover", "reset stuck renders", err)
	}
	if n > 0 {
		s.logger.Info("reset interrupted renders", logging.Int("count", int(n)))
	}
	return n, nil
}

// Run renders every PENDING render once.
func (s *Stage) Run(ctx context.Context, _ settings.Settings) (stage.Result, error) {
	var result stage.Result
	if s.renderer == nil || s.artifacts == nil {
		logging.WarnWithContext(s.logger, "renderer not configured; stage skipped", "stage_unconfigured",
			logging.String(logging.FieldImpact, "renders stay PENDING"),
		)
		return result, nil
	}

	jobs, err := s.store.RenderJobs(ctx, store.RenderPending, s.batch)
	if err != nil {
		return result, services.Wrap(services.ErrTransient, stage.NameRender, "list renders", "", err)
	}
	for _, job := range jobs {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		s.process(services.WithItemID(ctx, job.Render.ID), job, &result)
	}
	return result, nil
}

func (s *Stage) process(ctx context.Context, job store.RenderJob, result *stage.Result) {
	logger := logging.WithContext(ctx, s.logger)
	id := job.Render.ID

	sel := Pick(s.rng)
	claimed, err := s.store.ClaimRender(ctx, id, sel.Template, sel.BackgroundType, sel.BackgroundID)
	if err != nil {
		result.Fail()
		logging.WarnWithContext(logger, "claim render failed", "render_claim_failed", logging.Error(err))
		return
	}
	if !claimed {
		result.Skip()
		logger.Debug("render claimed elsewhere")
		return
	}

	output := filepath.Join(s.workDir, "renders", id+".mp4")
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		s.fail(ctx, job, services.Wrap(services.ErrConfiguration, stage.NameRender, "prepare", "create work directory", err), "", result)
		return
	}
	defer os.Remove(output)

	out, err := s.renderer.Render(ctx, composition(job, sel, s.assetsDir), output)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown; Recover puts the render back to PENDING on the next start.
			result.Fail()
			return
		}
		s.fail(ctx, job, err, out.Log, result)
		return
	}
	if out.Fallback {
		logger.Warn("background asset missing; used solid colour",
			logging.String("background_id", sel.BackgroundID),
			logging.String(logging.FieldErrorHint, "add backgrounds under "+filepath.Join(s.assetsDir, "backgrounds")),
		)
	}

	obj, err := s.artifacts.PutFile(ctx, s.bucket, "renders/"+id+".mp4", output)
	if err != nil {
		s.fail(ctx, job, err, out.Log, result)
		return
	}

	if err := s.store.CompleteRender(ctx, id, obj.URL, out.Log, s.clock().UTC()); err != nil {
		if errors.Is(err, store.ErrStaleStatus) {
			result.Skip()
			logger.Warn("render changed status while rendering", logging.Error(err))
			return
		}
		s.fail(ctx, job, err, out.Log, result)
		return
	}

	result.Succeed()
	logger.Info("render completed",
		logging.String("story_id", job.Render.StoryID),
		logging.String("template", sel.Template),
		logging.String("background", sel.BackgroundID),
		logging.String("output_url", obj.URL),
		logging.Duration("elapsed", out.Elapsed),
	)
}

func (s *Stage) fail(ctx context.Context, job store.RenderJob, cause error, log string, result *stage.Result) {
	result.Fail()
	logger := logging.WithContext(ctx, s.logger)
	reason := services.Reason(cause)
	diagnostic := reason
	if log = strings.TrimSpace(log); log != "" {
		diagnostic += "\n" + log
	}

	if err := s.store.FailRender(ctx, job.Render.ID, diagnostic); err != nil {
		logging.ErrorWithContext(logger, "mark render failed", "render_update_failed", logging.Error(err))
	}
	logging.WarnWithContext(logger, "render failed", "render_failed",
		logging.String(logging.FieldErrorKind, services.Kind(cause)),
		logging.String(logging.FieldImpact, "render marked FAILED; reset it to PENDING to retry"),
		logging.Error(cause),
	)
	if err := s.notifier.Publish(ctx, notifications.EventRenderFailed, notifications.Payload{
		"render_id": job.Render.ID,
		"error":     reason,
	}); err != nil {
		logger.Debug("render failure notification failed", logging.Error(err))
	}
}

func composition(job store.RenderJob, sel Selection, assetsDir string) ffmpeg.Composition {
	return ffmpeg.Composition{
		Template:        sel.Template,
		BackgroundType:  sel.BackgroundType,
		BackgroundPath:  sel.AssetPath(assetsDir),
		Hook:            job.Script.Hook,
		WhatHappened:    job.Script.WhatHappened,
		WhyItMatters:    job.Script.WhyItMatters,
		WhatHappensNext: job.Script.WhatHappensNext,
		CTALine:         job.Script.CTALine,
		Category:        job.Category,
		DurationSeconds: job.Script.DurationTargetSeconds,
	}
}
