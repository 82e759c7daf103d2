package analytics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"orbix/internal/analytics"
	"orbix/internal/logging"
	"orbix/internal/settings"
	"orbix/internal/store"
	"orbix/internal/testsupport"
)

type fakeProvider struct {
	off     bool
	metrics map[string]analytics.Metrics
	failing map[string]bool
	dates   []string
}

func (f *fakeProvider) Platform() store.Platform { return store.PlatformYouTube }
func (f *fakeProvider) Configured() bool         { return !f.off }

func (f *fakeProvider) Metrics(_ context.Context, videoID, date string) (analytics.Metrics, error) {
	f.dates = append(f.dates, date)
	if f.failing[videoID] {
		return analytics.Metrics{}, errors.New("quota exceeded")
	}
	return f.metrics[videoID], nil
}

func publishVideo(t *testing.T, st *store.Store, title, videoID string, platform store.Platform) {
	t.Helper()
	rnd, _ := testsupport.SeedCompletedRender(t, st, title, time.Now().Add(-time.Hour))
	if err := st.RecordPublish(context.Background(), &store.Publish{
		RenderID: rnd.ID, Platform: platform, PlatformVideoID: videoID,
	}, platform == store.PlatformYouTube); err != nil {
		t.Fatalf("RecordPublish: %v", err)
	}
}

func TestCollectsYesterdayAndIsolatesFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	publishVideo(t, st, "First", "yt-1", store.PlatformYouTube)
	publishVideo(t, st, "Second", "yt-2", store.PlatformYouTube)
	publishVideo(t, st, "Third", "yt-3", store.PlatformYouTube)

	watch := 12.5
	provider := &fakeProvider{
		metrics: map[string]analytics.Metrics{
			"yt-1": {Views: 100, Likes: 10, Comments: 1, AvgWatchTime: &watch},
			"yt-3": {Views: 300},
		},
		failing: map[string]bool{"yt-2": true},
	}
	now := func() time.Time { return time.Date(2026, 5, 2, 1, 0, 0, 0, time.UTC) }
	stg := analytics.New(cfg, st, provider, logging.NewNop(), now)

	result, err := stg.Run(ctx, settings.Defaults())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Succeeded != 2 || result.Failed != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	for _, d := range provider.dates {
		if d != "2026-05-01" {
			t.Fatalf("expected yesterday, got %s", d)
		}
	}
	recs, err := st.AnalyticsFor(ctx, "yt-1")
	if err != nil || len(recs) != 1 {
		t.Fatalf("AnalyticsFor: %v %+v", err, recs)
	}
	if recs[0].Views != 100 || recs[0].AvgWatchTime == nil || *recs[0].AvgWatchTime != 12.5 || recs[0].CompletionRate != nil {
		t.Fatalf("unexpected record %+v", recs[0])
	}

	provider.metrics["yt-1"] = analytics.Metrics{Views: 150}
	if _, err := stg.Run(ctx, settings.Defaults()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	recs, _ = st.AnalyticsFor(ctx, "yt-1")
	if len(recs) != 1 || recs[0].Views != 150 {
		t.Fatalf("expected upsert on (video, date), got %+v", recs)
	}
}

func TestSkipsOtherPlatforms(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	publishVideo(t, st, "Mirror only", "rmb-1", store.PlatformRumble)

	provider := &fakeProvider{}
	result, err := analytics.New(cfg, st, provider, logging.NewNop(), nil).Run(context.Background(), settings.Defaults())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Empty() || len(provider.dates) != 0 {
		t.Fatalf("rumble publishes must not be queried: %+v", result)
	}
}

func TestMissingProviderIsNoop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	publishVideo(t, st, "Published", "yt-1", store.PlatformYouTube)

	for _, provider := range []analytics.Provider{nil, &fakeProvider{off: true}} {
		result, err := analytics.New(cfg, st, provider, logging.NewNop(), nil).Run(context.Background(), settings.Defaults())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if !result.Empty() {
			t.Fatalf("expected no-op, got %+v", result)
		}
	}
}

func TestTargetDateUsesZone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 20:00 UTC on the 1st is already the 2nd in Tokyo.
	now := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)
	if got := analytics.TargetDate(now, loc); got != "2026-05-01" {
		t.Fatalf("TargetDate = %s", got)
	}
	if got := analytics.TargetDate(now, time.UTC); got != "2026-04-30" {
		t.Fatalf("TargetDate UTC = %s", got)
	}
}
