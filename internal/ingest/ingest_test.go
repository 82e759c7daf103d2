package ingest_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"orbix/internal/feeds"
	"orbix/internal/ingest"
	"orbix/internal/logging"
	"orbix/internal/settings"
	"orbix/internal/store"
	"orbix/internal/testsupport"
)

type staticReader struct {
	entries map[string][]feeds.Entry
	fail    map[string]error
}

func (r staticReader) Read(_ context.Context, src store.Source) ([]feeds.Entry, error) {
	if err := r.fail[src.URL]; err != nil {
		return nil, err
	}
	return r.entries[src.URL], nil
}

func newStage(t *testing.T, reader feeds.Reader) (*ingest.Stage, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	registry := feeds.NewRegistry(nil)
	registry.Register(store.SourceRSS, reader)
	registry.Register(store.SourceHTML, reader)
	return ingest.New(st, registry, logging.NewNop()), st
}

func TestIngestDeduplicatesByURLAndTitle(t *testing.T) {
	reader := staticReader{entries: map[string][]feeds.Entry{
		"https://feeds.test/a": {
			{Title: "A", URL: "http://x/1"},
			{Title: "A", URL: "http://x/1"},
			{Title: "", URL: "http://x/2"},
			{Title: "No url"},
		},
	}}
	s, st := newStage(t, reader)
	src := testsupport.SeedSource(t, st, "https://feeds.test/a", store.SourceRSS)
	ctx := context.Background()

	result, err := s.Run(ctx, settings.Defaults())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Succeeded != 1 || result.Skipped != 1 {
		t.Fatalf("unexpected result %+v", result)
	}

	if _, err := s.Run(ctx, settings.Defaults()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	items, err := st.RawItemsByStatus(ctx, store.RawItemNew, 0)
	if err != nil {
		t.Fatalf("RawItemsByStatus: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one raw item, got %d", len(items))
	}
	if items[0].Hash != ingest.Hash("http://x/1", "A") || items[0].Status != store.RawItemNew {
		t.Fatalf("unexpected item %+v", items[0])
	}

	refreshed, err := st.GetSource(ctx, src.ID)
	if err != nil || refreshed.LastFetchedAt == nil {
		t.Fatalf("expected last_fetched_at stamped, got %+v err=%v", refreshed, err)
	}
}

func TestIngestIsolatesSourceFailures(t *testing.T) {
	reader := staticReader{
		entries: map[string][]feeds.Entry{"https://feeds.test/good": {{Title: "Ok", URL: "http://x/ok"}}},
		fail:    map[string]error{"https://feeds.test/bad": errors.New("connection refused")},
	}
	s, st := newStage(t, reader)
	ctx := context.Background()
	bad := testsupport.SeedSource(t, st, "https://feeds.test/bad", store.SourceRSS)
	testsupport.SeedSource(t, st, "https://feeds.test/good", store.SourceHTML)

	result, err := s.Run(ctx, settings.Defaults())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Failed != 1 || result.Succeeded != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	refreshed, err := st.GetSource(ctx, bad.ID)
	if err != nil {
		t.Fatalf("GetSource: %v", err)
	}
	if refreshed.LastFetchedAt != nil {
		t.Fatal("failed source should not be marked fetched")
	}
}

func TestIngestSkipsDisabledSources(t *testing.T) {
	reader := staticReader{entries: map[string][]feeds.Entry{"https://feeds.test/off": {{Title: "T", URL: "http://x/t"}}}}
	s, st := newStage(t, reader)
	ctx := context.Background()
	src := testsupport.SeedSource(t, st, "https://feeds.test/off", store.SourceRSS)
	if _, err := st.SetSourceEnabled(ctx, src.ID, false); err != nil {
		t.Fatalf("SetSourceEnabled: %v", err)
	}
	result, err := s.Run(ctx, settings.Defaults())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Empty() {
		t.Fatalf("expected nothing ingested, got %+v", result)
	}
}

func TestNewRawItemNormalizesEntry(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	item, ok := ingest.NewRawItem("src", feeds.Entry{
		Title:   "  Title  ",
		URL:     " https://x.test/1 ",
		Snippet: strings.Repeat("é", 1500),
	}, now)
	if !ok {
		t.Fatal("expected entry accepted")
	}
	if item.Title != "Title" || item.URL != "https://x.test/1" {
		t.Fatalf("expected trimmed fields, got %+v", item)
	}
	if n := len([]rune(item.Snippet)); n != 1000 {
		t.Fatalf("expected 1000-rune snippet, got %d", n)
	}
	if !item.PublishedAt.Equal(now) {
		t.Fatalf("expected published_at defaulted to now, got %v", item.PublishedAt)
	}
	if _, ok := ingest.NewRawItem("src", feeds.Entry{Title: "t"}, now); ok {
		t.Fatal("expected entry without url rejected")
	}
}
