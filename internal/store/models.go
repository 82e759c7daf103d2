package store

import "time"

// SourceType selects the feed reader for a Source.
type SourceType string

const (
	SourceRSS  SourceType = "RSS"
	SourceHTML SourceType = "HTML"
)

// Source is a configured news feed or listing page.
type Source struct {
	ID            string
	Name          string
	URL           string
	Type          SourceType
	Enabled       bool
	LastFetchedAt *time.Time
	CreatedAt     time.Time
}

// RawItemStatus is the lifecycle of an ingested entry.
type RawItemStatus string

const (
	RawItemNew       RawItemStatus = "NEW"
	RawItemProcessed RawItemStatus = "PROCESSED"
	RawItemDiscarded RawItemStatus = "DISCARDED"
)

// RawItem is one deduplicated feed entry.
type RawItem struct {
	ID            string
	SourceID      string
	URL           string
	Title         string
	Snippet       string
	PublishedAt   time.Time
	Hash          string
	Status        RawItemStatus
	DiscardReason string
	CreatedAt     time.Time
}

// StoryStatus is the lifecycle of a classified story.
type StoryStatus string

const (
	StoryQueued    StoryStatus = "QUEUED"
	StoryApproved  StoryStatus = "APPROVED"
	StoryRejected  StoryStatus = "REJECTED"
	StoryRendered  StoryStatus = "RENDERED"
	StoryPublished StoryStatus = "PUBLISHED"
)

// Categories is the fixed set of story categories, in display order.
var Categories = []string{
	"AI & Automation Takeovers",
	"Corporate Collapses & Reversals",
	"Tech Decisions With Massive Fallout",
	"Laws & Rules That Quietly Changed Everything",
	"Money & Market Shock",
}

// Factors is the shock score breakdown returned by the classifier.
type Factors struct {
	Scale          int `json:"scale"`
	Speed          int `json:"speed"`
	PowerShift     int `json:"power_shift"`
	Permanence     int `json:"permanence"`
	Explainability int `json:"explainability"`
}

// Total sums the factor sub-scores.
func (f Factors) Total() int {
	return f.Scale + f.Speed + f.PowerShift + f.Permanence + f.Explainability
}

// Story is a raw item that passed classification.
type Story struct {
	ID             string
	RawItemID      string
	Category       string
	ShockScore     int
	Factors        Factors
	Status         StoryStatus
	DecisionReason string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Script holds the narration for one story.
type Script struct {
	ID                    string
	StoryID               string
	Hook                  string
	WhatHappened          string
	WhyItMatters          string
	WhatHappensNext       string
	CTALine               string
	DurationTargetSeconds int
	CreatedAt             time.Time
}

// ReviewStatus is the lifecycle of a review gate.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "PENDING"
	ReviewApproved ReviewStatus = "APPROVED"
	ReviewRejected ReviewStatus = "REJECTED"
)

// ReviewItem gates rendering of a script while review mode is on.
type ReviewItem struct {
	ID         string
	StoryID    string
	ScriptID   string
	Status     ReviewStatus
	EditedHook string
	CreatedAt  time.Time
	ReviewedAt *time.Time
}

// RenderStatus is the lifecycle of a render job.
type RenderStatus string

const (
	RenderPending    RenderStatus = "PENDING"
	RenderProcessing RenderStatus = "PROCESSING"
	RenderCompleted  RenderStatus = "COMPLETED"
	RenderFailed     RenderStatus = "FAILED"
)

// Background types.
const (
	BackgroundStill  = "STILL"
	BackgroundMotion = "MOTION"
)

// Render is one video composition job.
type Render struct {
	ID             string
	StoryID        string
	ScriptID       string
	Template       string
	BackgroundType string
	BackgroundID   string
	Status         RenderStatus
	OutputURL      string
	FFmpegLog      string
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// Platform identifies a publishing destination.
type Platform string

const (
	PlatformYouTube Platform = "YOUTUBE"
	PlatformRumble  Platform = "RUMBLE"
)

// PublishStatus is the state of a publish record.
type PublishStatus string

const PublishPublished PublishStatus = "PUBLISHED"

// Publish records one successful upload.
type Publish struct {
	ID              string
	RenderID        string
	Platform        Platform
	PlatformVideoID string
	Title           string
	Description     string
	Status          PublishStatus
	PostedAt        time.Time
}

// AnalyticsRecord is one daily metrics snapshot for a video.
type AnalyticsRecord struct {
	PlatformVideoID string
	Date            string
	Views           int64
	Likes           int64
	Comments        int64
	AvgWatchTime    *float64
	CompletionRate  *float64
	UpdatedAt       time.Time
}

// SettingKind tags the type of a stored setting value.
type SettingKind string

const (
	KindInt    SettingKind = "int"
	KindBool   SettingKind = "bool"
	KindString SettingKind = "string"
)

// Setting is one typed key/value row.
type Setting struct {
	Key       string
	Kind      SettingKind
	Value     string
	UpdatedAt time.Time
}

// RenderCandidate is an approved story whose script has no render yet.
type RenderCandidate struct {
	StoryID  string
	ScriptID string
}

// RenderJob joins a pending render with the text it composes.
type RenderJob struct {
	Render   Render
	Script   Script
	Category string
}

// PublishCandidate joins a completed render with the metadata needed to
// build its title and description.
type PublishCandidate struct {
	Render     Render
	Script     Script
	StoryID    string
	Category   string
	EditedHook string
}

// DateLayout is the calendar-day format of AnalyticsRecord.Date.
const DateLayout = "2006-01-02"
