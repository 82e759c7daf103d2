package api

import (
	"sort"
	"time"

	"orbix/internal/preflight"
	"orbix/internal/services/youtube"
	"orbix/internal/stage"
	"orbix/internal/store"
	"orbix/internal/workflow"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// FromSource converts a store source.
func FromSource(src store.Source) Source {
	return Source{
		ID:            src.ID,
		Name:          src.Name,
		URL:           src.URL,
		Type:          string(src.Type),
		Enabled:       src.Enabled,
		LastFetchedAt: formatTimePtr(src.LastFetchedAt),
		CreatedAt:     formatTime(src.CreatedAt),
	}
}

// FromStory converts a store story.
func FromStory(s store.Story) Story {
	return Story{
		ID:         s.ID,
		RawItemID:  s.RawItemID,
		Category:   s.Category,
		ShockScore: s.ShockScore,
		Factors: Factors{
			Scale:          s.Factors.Scale,
			Speed:          s.Factors.Speed,
			PowerShift:     s.Factors.PowerShift,
			Permanence:     s.Factors.Permanence,
			Explainability: s.Factors.Explainability,
		},
		Status:         string(s.Status),
		DecisionReason: s.DecisionReason,
		CreatedAt:      formatTime(s.CreatedAt),
		UpdatedAt:      formatTime(s.UpdatedAt),
	}
}

// FromScript converts a store script.
func FromScript(s *store.Script) *Script {
	if s == nil {
		return nil
	}
	return &Script{
		ID:              s.ID,
		Hook:            s.Hook,
		WhatHappened:    s.WhatHappened,
		WhyItMatters:    s.WhyItMatters,
		WhatHappensNext: s.WhatHappensNext,
		CTALine:         s.CTALine,
	}
}

// FromReview converts a review item. Story and script are optional.
func FromReview(r store.ReviewItem, story *store.Story, script *store.Script) Review {
	out := Review{
		ID:         r.ID,
		StoryID:    r.StoryID,
		Status:     string(r.Status),
		EditedHook: r.EditedHook,
		CreatedAt:  formatTime(r.CreatedAt),
		ReviewedAt: formatTimePtr(r.ReviewedAt),
		Script:     FromScript(script),
	}
	if story != nil {
		out.Category = story.Category
		out.ShockScore = story.ShockScore
	}
	return out
}

// FromRender converts a render. The ffmpeg log is only included when
// withLog is set.
func FromRender(r store.Render, withLog bool) Render {
	out := Render{
		ID:             r.ID,
		StoryID:        r.StoryID,
		ScriptID:       r.ScriptID,
		Template:       r.Template,
		BackgroundType: r.BackgroundType,
		BackgroundID:   r.BackgroundID,
		Status:         string(r.Status),
		OutputURL:      r.OutputURL,
		CreatedAt:      formatTime(r.CreatedAt),
		StartedAt:      formatTimePtr(r.StartedAt),
		CompletedAt:    formatTimePtr(r.CompletedAt),
	}
	if withLog {
		out.Log = r.FFmpegLog
	}
	return out
}

// FromPublish converts a publish record.
func FromPublish(p store.Publish) Publish {
	out := Publish{
		ID:              p.ID,
		RenderID:        p.RenderID,
		Platform:        string(p.Platform),
		PlatformVideoID: p.PlatformVideoID,
		Title:           p.Title,
		Status:          string(p.Status),
		PostedAt:        formatTime(p.PostedAt),
	}
	if p.Platform == store.PlatformYouTube {
		out.URL = youtube.WatchURL(p.PlatformVideoID)
	}
	return out
}

// FromAnalytics converts an analytics snapshot.
func FromAnalytics(r store.AnalyticsRecord) AnalyticsPoint {
	return AnalyticsPoint{
		Date:           r.Date,
		Views:          r.Views,
		Likes:          r.Likes,
		Comments:       r.Comments,
		AvgWatchTime:   r.AvgWatchTime,
		CompletionRate: r.CompletionRate,
	}
}

// FromResult converts a stage result.
func FromResult(r stage.Result) StageResult {
	return StageResult{
		Considered: r.Considered,
		Succeeded:  r.Succeeded,
		Failed:     r.Failed,
		Skipped:    r.Skipped,
		Halted:     r.Halted,
	}
}

// FromStatusSummary converts the scheduler status.
func FromStatusSummary(s workflow.StatusSummary) WorkflowStatus {
	out := WorkflowStatus{
		Running:     s.Running,
		StartedAt:   formatTime(s.StartedAt),
		Jobs:        make([]JobStatus, 0, len(s.Jobs)),
		StageHealth: StageHealthSlice(s.StageHealth),
	}
	for _, j := range s.Jobs {
		job := JobStatus{
			Name:       j.Name,
			DailyAt:    j.Schedule.DailyAt,
			Running:    j.Running,
			Runs:       j.Runs,
			LastStart:  formatTime(j.LastStart),
			LastFinish: formatTime(j.LastFinish),
			LastResult: FromResult(j.LastResult),
			LastError:  j.LastError,
			NextRun:    formatTime(j.NextRun),
		}
		if j.Schedule.Every > 0 {
			job.Every = j.Schedule.Every.String()
		}
		out.Jobs = append(out.Jobs, job)
	}
	return out
}

// StageHealthSlice orders stage health by pipeline position.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	order := make(map[string]int, len(stage.Names))
	for i, name := range stage.Names {
		order[name] = i
	}
	out := make([]StageHealth, 0, len(health))
	for name, h := range health {
		out = append(out, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	sort.Slice(out, func(i, j int) bool {
		oi, iok := order[out[i].Name]
		oj, jok := order[out[j].Name]
		if iok != jok {
			return iok
		}
		if oi != oj {
			return oi < oj
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// FromChecks converts preflight results.
func FromChecks(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, 0, len(results))
	for _, r := range results {
		out = append(out, CheckResult{Name: r.Name, Passed: r.Passed, Optional: r.Optional, Detail: r.Detail})
	}
	return out
}
