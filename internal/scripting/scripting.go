// Package scripting writes narration scripts for QUEUED stories and moves
// them to APPROVED, opening a review gate when review mode is on.
package scripting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"orbix/internal/logging"
	"orbix/internal/services"
	"orbix/internal/settings"
	"orbix/internal/stage"
	"orbix/internal/store"
)

// Store is the persistence surface used by script generation.
type Store interface {
	StoriesByStatus(ctx context.Context, status store.StoryStatus, limit int) ([]store.Story, error)
	GetRawItem(ctx context.Context, id string) (*store.RawItem, error)
	CreateScript(ctx context.Context, script *store.Script, reviewMode bool) (*store.ReviewItem, error)
	SetStoryStatus(ctx context.Context, id string, from, to store.StoryStatus, reason string) (bool, error)
}

// Stage generates scripts for QUEUED stories.
type Stage struct {
	store  Store
	writer Writer
	logger *slog.Logger
	batch  int
}

// New builds the script stage. batch bounds stories per run; 0 means all.
func New(st Store, writer Writer, logger *slog.Logger, batch int) *Stage {
	return &Stage{
		store:  st,
		writer: writer,
		logger: logging.NewComponentLogger(logger, stage.NameScripting),
		batch:  batch,
	}
}

func (s *Stage) Name() string { return stage.NameScripting }

type configurable interface {
	Configured() bool
}

func (s *Stage) configured() bool {
	if s.writer == nil {
		return false
	}
	if c, ok := s.writer.(configurable); ok {
		return c.Configured()
	}
	return true
}

func (s *Stage) HealthCheck(context.Context) stage.Health {
	if !s.configured() {
		return stage.Unhealthy(s.Name(), "script writer not configured (llm.api_key)")
	}
	return stage.Healthy(s.Name())
}

// Run writes one script per QUEUED story. Writer failures and incomplete
// scripts reject the story; store failures leave it QUEUED.
func (s *Stage) Run(ctx context.Context, snapshot settings.Settings) (stage.Result, error) {
	var result stage.Result
	logger := logging.WithContext(ctx, s.logger)
	if !s.configured() {
		logging.WarnWithContext(logger, "script writer not configured; stage skipped", "stage_unconfigured",
			logging.String(logging.FieldErrorHint, "set llm.api_key or OPENROUTER_API_KEY"),
			logging.String(logging.FieldImpact, "stories stay QUEUED"),
		)
		return result, nil
	}

	stories, err := s.store.StoriesByStatus(ctx, store.StoryQueued, s.batch)
	if err != nil {
		return result, services.Wrap(services.ErrTransient, stage.NameScripting, "list stories", "", err)
	}
	for _, story := range stories {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		s.process(services.WithItemID(ctx, story.ID), story, snapshot.ReviewMode, &result)
	}
	return result, nil
}

func (s *Stage) process(ctx context.Context, story store.Story, reviewMode bool, result *stage.Result) {
	logger := logging.WithContext(ctx, s.logger)

	raw, err := s.store.GetRawItem(ctx, story.RawItemID)
	if err != nil {
		result.Fail()
		logging.WarnWithContext(logger, "load raw item failed", "raw_item_lookup_failed", logging.Error(err))
		return
	}
	if raw == nil {
		s.reject(ctx, story, "source raw item missing", result)
		return
	}

	draft, err := s.writer.Write(ctx, Brief{
		Title:      raw.Title,
		Snippet:    raw.Snippet,
		Category:   story.Category,
		ShockScore: story.ShockScore,
	})
	if err != nil {
		logger.Warn("script writer failed",
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Error(err),
		)
		s.reject(ctx, story, "script generation failed: "+services.Reason(err), result)
		return
	}

	script := draft.Script(story.ID)
	if missing := script.MissingFields(); len(missing) > 0 {
		s.reject(ctx, story, fmt.Sprintf("script missing fields: %s", strings.Join(missing, ", ")), result)
		return
	}

	review, err := s.store.CreateScript(ctx, script, reviewMode)
	if err != nil {
		if errors.Is(err, store.ErrStaleStatus) {
			result.Skip()
			logger.Debug("story already handled by another run")
			return
		}
		result.Fail()
		logging.WarnWithContext(logger, "persist script failed", "script_create_failed", logging.Error(err))
		return
	}
	result.Succeed()
	attrs := append(logging.DecisionAttrs("script", "accept", "script generated"),
		logging.String("script_id", script.ID),
		logging.Bool("review_mode", reviewMode),
		logging.Int("duration_seconds", script.DurationTargetSeconds),
	)
	if review != nil {
		attrs = append(attrs, logging.String("review_id", review.ID))
	}
	logger.Info("script generated", logging.Args(attrs...)...)
}

func (s *Stage) reject(ctx context.Context, story store.Story, reason string, result *stage.Result) {
	logger := logging.WithContext(ctx, s.logger)
	if _, err := s.store.SetStoryStatus(ctx, story.ID, store.StoryQueued, store.StoryRejected, reason); err != nil {
		result.Fail()
		logging.WarnWithContext(logger, "reject story failed", "story_update_failed", logging.Error(err))
		return
	}
	result.Skip()
	logger.Info("story rejected", logging.Args(logging.DecisionAttrs("script", "reject", reason)...)...)
}
