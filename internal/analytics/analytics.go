// Package analytics snapshots platform metrics for every published video
// once a day, always for the previous calendar day.
package analytics

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"orbix/internal/config"
	"orbix/internal/logging"
	"orbix/internal/services"
	"orbix/internal/services/youtube"
	"orbix/internal/settings"
	"orbix/internal/stage"
	"orbix/internal/store"
)

// Metrics are the counters collected for one video and day. Watch metrics
// are optional.
type Metrics struct {
	Views          int64
	Likes          int64
	Comments       int64
	AvgWatchTime   *float64
	CompletionRate *float64
}

// Provider reads metrics for videos on one platform.
type Provider interface {
	Platform() store.Platform
	Configured() bool
	Metrics(ctx context.Context, videoID, date string) (Metrics, error)
}

// YouTube adapts the YouTube client as a metrics provider.
func YouTube(client *youtube.Client) Provider {
	return youtubeProvider{client: client}
}

type youtubeProvider struct {
	client *youtube.Client
}

func (youtubeProvider) Platform() store.Platform { return store.PlatformYouTube }

func (p youtubeProvider) Configured() bool { return p.client.Configured() }

func (p youtubeProvider) Metrics(ctx context.Context, videoID, _ string) (Metrics, error) {
	stats, err := p.client.Statistics(ctx, videoID)
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{Views: stats.Views, Likes: stats.Likes, Comments: stats.Comments}, nil
}

// Store is the persistence surface used by analytics.
type Store interface {
	PublishesByStatus(ctx context.Context, status store.PublishStatus) ([]store.Publish, error)
	UpsertAnalytics(ctx context.Context, rec store.AnalyticsRecord) error
}

// Stage collects daily metrics.
type Stage struct {
	store    Store
	provider Provider
	logger   *slog.Logger
	loc      *time.Location
	clock    func() time.Time
}

// New builds the analytics stage. A nil clock uses time.Now.
func New(cfg *config.Config, st Store, provider Provider, logger *slog.Logger, clock func() time.Time) *Stage {
	if clock == nil {
		clock = time.Now
	}
	return &Stage{
		store:    st,
		provider: provider,
		logger:   logging.NewComponentLogger(logger, stage.NameAnalytics),
		loc:      cfg.Location(),
		clock:    clock,
	}
}

func (s *Stage) Name() string { return stage.NameAnalytics }

func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s.provider == nil || !s.provider.Configured() {
		return stage.Unhealthy(s.Name(), "metrics provider not configured")
	}
	return stage.Healthy(s.Name())
}

// TargetDate is the calendar day before now in loc.
func TargetDate(now time.Time, loc *time.Location) string {
	return now.In(loc).AddDate(0, 0, -1).Format(store.DateLayout)
}

// Run upserts one record per published video for yesterday. Missing provider
// configuration makes the run a no-op.
func (s *Stage) Run(ctx context.Context, _ settings.Settings) (stage.Result, error) {
	var result stage.Result
	logger := logging.WithContext(ctx, s.logger)
	if s.provider == nil || !s.provider.Configured() {
		logging.WarnWithContext(logger, "metrics provider not configured; stage skipped", "stage_unconfigured",
			logging.String(logging.FieldErrorHint, "set youtube credentials to collect analytics"),
		)
		return result, nil
	}

	publishes, err := s.store.PublishesByStatus(ctx, store.PublishPublished)
	if err != nil {
		return result, services.Wrap(services.ErrTransient, stage.NameAnalytics, "list publishes", "", err)
	}
	date := TargetDate(s.clock(), s.loc)
	platform := s.provider.Platform()
	for _, pub := range publishes {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if pub.Platform != platform || strings.TrimSpace(pub.PlatformVideoID) == "" {
			continue
		}
		s.collect(services.WithItemID(ctx, pub.ID), pub.PlatformVideoID, date, &result)
	}
	if !result.Empty() {
		logger.Info("analytics collected", logging.String("date", date), logging.Int("videos", result.Succeeded))
	}
	return result, nil
}

func (s *Stage) collect(ctx context.Context, videoID, date string, result *stage.Result) {
	logger := logging.WithContext(ctx, s.logger)
	m, err := s.provider.Metrics(ctx, videoID, date)
	if err != nil {
		result.Fail()
		logging.WarnWithContext(logger, "metrics fetch failed", "analytics_fetch_failed",
			logging.String("video_id", videoID),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Error(err),
		)
		return
	}
	rec := store.AnalyticsRecord{
		PlatformVideoID: videoID,
		Date:            date,
		Views:           m.Views,
		Likes:           m.Likes,
		Comments:        m.Comments,
		AvgWatchTime:    m.AvgWatchTime,
		CompletionRate:  m.CompletionRate,
		UpdatedAt:       s.clock().UTC(),
	}
	if err := s.store.UpsertAnalytics(ctx, rec); err != nil {
		result.Fail()
		logging.WarnWithContext(logger, "store analytics failed", "analytics_store_failed", logging.Error(err))
		return
	}
	result.Succeed()
	logger.Debug("metrics stored", logging.String("video_id", videoID), logging.Int64("views", m.Views))
}
