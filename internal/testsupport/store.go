package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"orbix/internal/config"
	"orbix/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...store.Option) *store.Store {
	t.Helper()

	st, err := store.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedSource inserts an enabled source.
func SeedSource(t testing.TB, st *store.Store, url string, typ store.SourceType) *store.Source {
	t.Helper()
	src, err := st.CreateSource(context.Background(), "", url, typ)
	if err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	return src
}

// SeedRawItem inserts a NEW raw item for the source.
func SeedRawItem(t testing.TB, st *store.Store, sourceID, title string) *store.RawItem {
	t.Helper()
	item := &store.RawItem{
		SourceID: sourceID,
		URL:      "https://news.test/" + title,
		Title:    title,
		Snippet:  "snippet for " + title,
		Hash:     fmt.Sprintf("hash-%s-%d", title, time.Now().UnixNano()),
	}
	inserted, err := st.InsertRawItem(context.Background(), item)
	if err != nil || !inserted {
		t.Fatalf("InsertRawItem: inserted=%v err=%v", inserted, err)
	}
	return item
}

// SeedStory creates a source, raw item and QUEUED story.
func SeedStory(t testing.TB, st *store.Store, title string) *store.Story {
	t.Helper()
	src := SeedSource(t, st, "https://feeds.test/"+title+fmt.Sprint(time.Now().UnixNano()), store.SourceRSS)
	raw := SeedRawItem(t, st, src.ID, title)
	story := &store.Story{
		RawItemID:  raw.ID,
		Category:   store.Categories[0],
		ShockScore: 80,
		Factors:    store.Factors{Scale: 25, Speed: 15, PowerShift: 20, Permanence: 12, Explainability: 8},
	}
	if err := st.CreateStoryFromRawItem(context.Background(), story); err != nil {
		t.Fatalf("CreateStoryFromRawItem: %v", err)
	}
	return story
}

// NewScript returns a fully populated script for storyID.
func NewScript(storyID string) *store.Script {
	return &store.Script{
		StoryID:               storyID,
		Hook:                  "A giant just blinked",
		WhatHappened:          "The company reversed course overnight.",
		WhyItMatters:          "Millions of users are affected.",
		WhatHappensNext:       "Regulators are watching.",
		CTALine:               "Follow for the next shift.",
		DurationTargetSeconds: 35,
	}
}

// SeedApprovedStory creates a story with a script, optionally behind a
// PENDING review item.
func SeedApprovedStory(t testing.TB, st *store.Store, title string, reviewMode bool) (*store.Story, *store.Script, *store.ReviewItem) {
	t.Helper()
	story := SeedStory(t, st, title)
	script := NewScript(story.ID)
	review, err := st.CreateScript(context.Background(), script, reviewMode)
	if err != nil {
		t.Fatalf("CreateScript: %v", err)
	}
	return story, script, review
}

// SeedCompletedRender drives a story through admission and rendering.
func SeedCompletedRender(t testing.TB, st *store.Store, title string, completedAt time.Time) (*store.Render, *store.Script) {
	t.Helper()
	ctx := context.Background()
	story, script, _ := SeedApprovedStory(t, st, title, false)
	render, created, err := st.AdmitRender(ctx, story.ID, script.ID)
	if err != nil || !created {
		t.Fatalf("AdmitRender: created=%v err=%v", created, err)
	}
	if ok, err := st.ClaimRender(ctx, render.ID, "A", store.BackgroundStill, "bg_still_1.jpg"); err != nil || !ok {
		t.Fatalf("ClaimRender: ok=%v err=%v", ok, err)
	}
	if err := st.CompleteRender(ctx, render.ID, "https://cdn.test/renders/"+render.ID+".mp4", "", completedAt); err != nil {
		t.Fatalf("CompleteRender: %v", err)
	}
	return render, script
}
