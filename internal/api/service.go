package api

import (
	"context"
	"log/slog"
	"time"

	"orbix/internal/publish"
	"orbix/internal/review"
	"orbix/internal/services"
	"orbix/internal/settings"
	"orbix/internal/store"
)

// Service exposes operator actions over the store, returning DTOs.
type Service struct {
	store   *store.Store
	reviews *review.Manager
	loc     *time.Location
	clock   func() time.Time
}

// NewService builds a Service. loc decides the calendar day of the
// dashboard's publish count.
func NewService(st *store.Store, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		store:   st,
		reviews: review.NewManager(st, logger, nil),
		loc:     loc,
		clock:   time.Now,
	}
}

// Dashboard returns status counts and today's publish progress.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	snapshot, _, err := settings.Load(ctx, s.store)
	if err != nil {
		return Dashboard{}, err
	}
	start, end := publish.DayBounds(s.clock().In(s.loc))
	today, err := s.store.CountPublishedBetween(ctx, store.PlatformYouTube, start, end)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		Counts:         stats,
		PublishedToday: today,
		DailyCap:       snapshot.DailyCap,
		ReviewMode:     snapshot.ReviewMode,
	}, nil
}

// Sources lists every source.
func (s *Service) Sources(ctx context.Context) ([]Source, error) {
	rows, err := s.store.ListSources(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make([]Source, 0, len(rows))
	for _, src := range rows {
		out = append(out, FromSource(src))
	}
	return out, nil
}

// AddSource creates an enabled source.
func (s *Service) AddSource(ctx context.Context, req AddSourceRequest) (Source, error) {
	typ, err := store.ParseSourceType(req.Type)
	if err != nil {
		return Source{}, services.Wrap(services.ErrValidation, "sources", "add", "", err)
	}
	src, err := s.store.CreateSource(ctx, req.Name, req.URL, typ)
	if err != nil {
		return Source{}, services.Wrap(services.ErrValidation, "sources", "add", req.URL, err)
	}
	return FromSource(*src), nil
}

// SetSourceEnabled toggles a source.
func (s *Service) SetSourceEnabled(ctx context.Context, id string, enabled bool) (Source, error) {
	changed, err := s.store.SetSourceEnabled(ctx, id, enabled)
	if err != nil {
		return Source{}, err
	}
	if !changed {
		return Source{}, services.Wrap(services.ErrNotFound, "sources", "toggle", "source "+id, nil)
	}
	src, err := s.store.GetSource(ctx, id)
	if err != nil || src == nil {
		return Source{}, services.Wrap(services.ErrNotFound, "sources", "toggle", "source "+id, err)
	}
	return FromSource(*src), nil
}

// Stories lists stories.
func (s *Service) Stories(ctx context.Context, f store.ListFilter) ([]Story, error) {
	rows, err := s.store.ListStories(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]Story, 0, len(rows))
	for _, st := range rows {
		out = append(out, FromStory(st))
	}
	return out, nil
}

// Reviews lists review items with their story and script.
func (s *Service) Reviews(ctx context.Context, f store.ListFilter) ([]Review, error) {
	rows, err := s.store.ListReviews(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]Review, 0, len(rows))
	for _, r := range rows {
		view, err := s.review(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *Service) review(ctx context.Context, r store.ReviewItem) (Review, error) {
	story, err := s.store.GetStory(ctx, r.StoryID)
	if err != nil {
		return Review{}, err
	}
	script, err := s.store.GetScript(ctx, r.ScriptID)
	if err != nil {
		return Review{}, err
	}
	return FromReview(r, story, script), nil
}

// ApproveReview releases a pending review.
func (s *Service) ApproveReview(ctx context.Context, id string) (Review, error) {
	if err := s.reviews.Approve(ctx, id); err != nil {
		return Review{}, err
	}
	return s.describeReview(ctx, id)
}

// RejectReview rejects a pending review and its story.
func (s *Service) RejectReview(ctx context.Context, id string) (Review, error) {
	if err := s.reviews.Reject(ctx, id); err != nil {
		return Review{}, err
	}
	return s.describeReview(ctx, id)
}

// EditReviewHook replaces the hook of a pending review.
func (s *Service) EditReviewHook(ctx context.Context, id, hook string) (Review, error) {
	if err := s.reviews.EditHook(ctx, id, hook); err != nil {
		return Review{}, err
	}
	return s.describeReview(ctx, id)
}

func (s *Service) describeReview(ctx context.Context, id string) (Review, error) {
	item, err := s.store.GetReview(ctx, id)
	if err != nil {
		return Review{}, err
	}
	if item == nil {
		return Review{}, services.Wrap(services.ErrNotFound, "review", "describe", "review item "+id, nil)
	}
	return s.review(ctx, *item)
}

// Renders lists renders.
func (s *Service) Renders(ctx context.Context, f store.ListFilter) ([]Render, error) {
	rows, err := s.store.ListRenders(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]Render, 0, len(rows))
	for _, r := range rows {
		out = append(out, FromRender(r, false))
	}
	return out, nil
}

// Render describes one render including its ffmpeg log.
func (s *Service) Render(ctx context.Context, id string) (Render, error) {
	r, err := s.store.GetRender(ctx, id)
	if err != nil {
		return Render{}, err
	}
	if r == nil {
		return Render{}, services.Wrap(services.ErrNotFound, "renders", "describe", "render "+id, nil)
	}
	return FromRender(*r, true), nil
}

// RetryRender returns a FAILED render to PENDING.
func (s *Service) RetryRender(ctx context.Context, id string) (Render, error) {
	changed, err := s.store.ResetRender(ctx, id)
	if err != nil {
		return Render{}, err
	}
	if !changed {
		current, err := s.Render(ctx, id)
		if err != nil {
			return Render{}, err
		}
		return Render{}, services.Wrap(services.ErrValidation, "renders", "retry", "render "+id+" is "+current.Status+", not FAILED", nil)
	}
	return s.Render(ctx, id)
}

// Publishes lists publishes. f.Status may name a platform.
func (s *Service) Publishes(ctx context.Context, f store.ListFilter) ([]Publish, error) {
	rows, err := s.store.ListPublishes(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]Publish, 0, len(rows))
	for _, p := range rows {
		out = append(out, FromPublish(p))
	}
	return out, nil
}

// Analytics returns the snapshots of a video, newest first.
func (s *Service) Analytics(ctx context.Context, videoID string) ([]AnalyticsPoint, error) {
	rows, err := s.store.AnalyticsFor(ctx, videoID)
	if err != nil {
		return nil, err
	}
	out := make([]AnalyticsPoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, FromAnalytics(r))
	}
	return out, nil
}

// Settings lists every known key with its stored or default value.
func (s *Service) Settings(ctx context.Context) ([]Setting, error) {
	defs := settings.Definitions()
	out := make([]Setting, 0, len(defs))
	for _, def := range defs {
		view, err := s.setting(ctx, def)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}

// Setting describes one key.
func (s *Service) Setting(ctx context.Context, key string) (Setting, error) {
	def, ok := settings.Lookup(key)
	if !ok {
		return Setting{}, services.Wrap(services.ErrNotFound, "settings", "get", "unknown setting "+key, nil)
	}
	return s.setting(ctx, def)
}

// UpdateSetting validates and stores a value. It takes effect on the next
// stage invocation.
func (s *Service) UpdateSetting(ctx context.Context, key, value string) (Setting, error) {
	if err := settings.Set(ctx, s.store, key, value); err != nil {
		return Setting{}, err
	}
	return s.Setting(ctx, key)
}

func (s *Service) setting(ctx context.Context, def settings.Definition) (Setting, error) {
	view := Setting{Key: def.Key, Kind: string(def.Kind), Value: def.Default, Default: def.Default}
	row, err := s.store.GetSetting(ctx, def.Key)
	if err != nil {
		return Setting{}, err
	}
	if row != nil {
		view.Value = row.Value
		view.Stored = true
		view.UpdatedAt = formatTime(row.UpdatedAt)
	}
	return view, nil
}
