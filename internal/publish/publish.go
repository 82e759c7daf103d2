// Package publish uploads completed renders to the primary platform within
// the daily cap and mirrors them to the secondary platform when enabled.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"orbix/internal/config"
	"orbix/internal/logging"
	"orbix/internal/notifications"
	"orbix/internal/services"
	"orbix/internal/settings"
	"orbix/internal/stage"
	"orbix/internal/store"
)

// HaltDailyCap marks a run that stopped because the day's quota is used up.
const HaltDailyCap = "daily_cap"

// Store is the persistence surface used by publishing.
type Store interface {
	PublishCandidates(ctx context.Context, platform store.Platform) ([]store.PublishCandidate, error)
	CountPublishedBetween(ctx context.Context, platform store.Platform, start, end time.Time) (int, error)
	RecordPublish(ctx context.Context, pub *store.Publish, markStory bool) error
}

// Media opens rendered artifacts by their public URL.
type Media interface {
	OpenURL(raw string) (*os.File, error)
}

// Option configures the stage.
type Option func(*Stage)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Stage) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithSecondary sets the platform mirrored to when rumble_enabled is on.
func WithSecondary(p Publisher) Option {
	return func(s *Stage) { s.secondary = p }
}

// Stage publishes COMPLETED renders.
type Stage struct {
	store     Store
	media     Media
	primary   Publisher
	secondary Publisher
	notifier  notifications.Service
	logger    *slog.Logger
	brand     config.Brand
	loc       *time.Location
	clock     func() time.Time
}

// New builds the publish stage.
func New(cfg *config.Config, st Store, media Media, primary Publisher, notifier notifications.Service, logger *slog.Logger, opts ...Option) *Stage {
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	s := &Stage{
		store:    st,
		media:    media,
		primary:  primary,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, stage.NamePublish),
		brand:    cfg.Brand,
		loc:      cfg.Location(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Stage) Name() string { return stage.NamePublish }

func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s.primary == nil || !s.primary.Configured() {
		return stage.Unhealthy(s.Name(), "youtube credentials not configured")
	}
	return stage.Healthy(s.Name())
}

// DayBounds returns local midnight of t's day and the following midnight.
func DayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// Run publishes at most daily_cap minus today's count, in candidate order.
// Failed uploads leave the render eligible for the next run.
func (s *Stage) Run(ctx context.Context, snapshot settings.Settings) (stage.Result, error) {
	var result stage.Result
	logger := logging.WithContext(ctx, s.logger)
	if s.primary == nil || !s.primary.Configured() {
		logging.WarnWithContext(logger, "publisher not configured; stage skipped", "stage_unconfigured",
			logging.String(logging.FieldErrorHint, "set youtube.client_id, client_secret and refresh_token"),
			logging.String(logging.FieldImpact, "completed renders wait unpublished"),
		)
		return result, nil
	}
	platform := s.primary.Platform()

	start, end := DayBounds(s.clock().In(s.loc))
	published, err := s.store.CountPublishedBetween(ctx, platform, start, end)
	if err != nil {
		return result, services.Wrap(services.ErrTransient, stage.NamePublish, "count today", "", err)
	}
	remaining := snapshot.DailyCap - published
	if remaining <= 0 {
		result.Halted = HaltDailyCap
		logger.Info("daily cap reached; nothing published",
			logging.Int("published_today", published),
			logging.Int("daily_cap", snapshot.DailyCap),
		)
		return result, nil
	}

	candidates, err := s.store.PublishCandidates(ctx, platform)
	if err != nil {
		return result, services.Wrap(services.ErrTransient, stage.NamePublish, "list candidates", "", err)
	}
	backlog := len(candidates) > remaining
	if backlog {
		candidates = candidates[:remaining]
	}
	for _, c := range candidates {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if s.process(services.WithItemID(ctx, c.Render.ID), c, snapshot, &result) {
			published++
		}
	}

	if backlog && published >= snapshot.DailyCap {
		result.Halted = HaltDailyCap
		logger.Info("daily cap reached; remaining renders wait for tomorrow", logging.Int("daily_cap", snapshot.DailyCap))
		if err := s.notifier.Publish(ctx, notifications.EventDailyCapReached, notifications.Payload{"cap": snapshot.DailyCap}); err != nil {
			logger.Debug("daily cap notification failed", logging.Error(err))
		}
	}
	return result, nil
}

func (s *Stage) process(ctx context.Context, c store.PublishCandidate, snapshot settings.Settings, result *stage.Result) bool {
	logger := logging.WithContext(ctx, s.logger)
	meta := BuildMetadata(c, s.brand, snapshot.YouTubeVisibility)

	upload, closeMedia, err := s.open(c, meta)
	if err != nil {
		result.Fail()
		logging.WarnWithContext(logger, "render artifact unavailable", "publish_media_missing",
			logging.String("output_url", c.Render.OutputURL),
			logging.Error(err),
		)
		return false
	}
	defer closeMedia()

	platform := s.primary.Platform()
	videoID, err := s.primary.Publish(ctx, upload)
	if err != nil {
		result.Fail()
		logging.WarnWithContext(logger, "upload failed", "publish_failed",
			logging.String("platform", string(platform)),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldImpact, "render stays eligible for the next run"),
			logging.Error(err),
		)
		return false
	}

	pub := &store.Publish{
		RenderID:        c.Render.ID,
		Platform:        platform,
		PlatformVideoID: videoID,
		Title:           meta.Title,
		Description:     meta.Description,
		PostedAt:        s.clock().UTC(),
	}
	if err := s.store.RecordPublish(ctx, pub, true); err != nil {
		if errors.Is(err, store.ErrDuplicatePublish) {
			result.Skip()
			logger.Warn("render already recorded as published", logging.String("video_id", videoID))
			return false
		}
		result.Fail()
		logging.ErrorWithContext(logger, "uploaded video could not be recorded", "publish_record_failed",
			logging.String("video_id", videoID),
			logging.String(logging.FieldImpact, "the render may be uploaded again on the next run"),
			logging.Alert("publish_record"),
			logging.Error(err),
		)
		return false
	}

	result.Succeed()
	watch := s.primary.WatchURL(videoID)
	logger.Info("video published",
		logging.String("platform", string(platform)),
		logging.String("video_id", videoID),
		logging.String("title", meta.Title),
		logging.String("url", watch),
	)
	if err := s.notifier.Publish(ctx, notifications.EventPublished, notifications.Payload{
		"platform": string(platform),
		"title":    meta.Title,
		"url":      watch,
	}); err != nil {
		logger.Debug("publish notification failed", logging.Error(err))
	}

	if snapshot.RumbleEnabled {
		s.mirror(ctx, c, upload)
	}
	return true
}

// mirror uploads to the secondary platform. Its outcome never affects the
// primary publish.
func (s *Stage) mirror(ctx context.Context, c store.PublishCandidate, upload Upload) {
	logger := logging.WithContext(ctx, s.logger)
	if s.secondary == nil || !s.secondary.Configured() {
		logger.Warn("secondary platform enabled but not configured",
			logging.String(logging.FieldErrorHint, "set rumble.access_token or disable rumble_enabled"),
		)
		return
	}
	platform := s.secondary.Platform()
	videoID, err := s.secondary.Publish(ctx, upload)
	if err != nil {
		logging.WarnWithContext(logger, "secondary upload failed", "publish_secondary_failed",
			logging.String("platform", string(platform)),
			logging.String(logging.FieldImpact, "primary publish unaffected"),
			logging.Error(err),
		)
		return
	}
	pub := &store.Publish{
		RenderID:        c.Render.ID,
		Platform:        platform,
		PlatformVideoID: videoID,
		Title:           upload.Title,
		Description:     upload.Description,
		PostedAt:        s.clock().UTC(),
	}
	if err := s.store.RecordPublish(ctx, pub, false); err != nil {
		logger.Warn("secondary publish not recorded", logging.String("platform", string(platform)), logging.Error(err))
		return
	}
	logger.Info("video mirrored", logging.String("platform", string(platform)), logging.String("video_id", videoID))
}

func (s *Stage) open(c store.PublishCandidate, meta Metadata) (Upload, func(), error) {
	if s.media == nil {
		return Upload{}, nil, services.Wrap(services.ErrConfiguration, stage.NamePublish, "open media", "object store not configured", nil)
	}
	file, err := s.media.OpenURL(c.Render.OutputURL)
	if err != nil {
		return Upload{}, nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return Upload{}, nil, fmt.Errorf("stat artifact: %w", err)
	}
	return Upload{
		Metadata: meta,
		Filename: c.Render.ID + ".mp4",
		Media:    file,
		Size:     info.Size(),
	}, func() { file.Close() }, nil
}
