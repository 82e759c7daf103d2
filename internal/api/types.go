package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Source is a configured feed.
type Source struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	URL           string `json:"url"`
	Type          string `json:"type"`
	Enabled       bool   `json:"enabled"`
	LastFetchedAt string `json:"lastFetchedAt,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

// Factors is the shock score breakdown.
type Factors struct {
	Scale          int `json:"scale"`
	Speed          int `json:"speed"`
	PowerShift     int `json:"powerShift"`
	Permanence     int `json:"permanence"`
	Explainability int `json:"explainability"`
}

// Story is a classified story.
type Story struct {
	ID             string  `json:"id"`
	RawItemID      string  `json:"rawItemId"`
	Category       string  `json:"category"`
	ShockScore     int     `json:"shockScore"`
	Factors        Factors `json:"factors"`
	Status         string  `json:"status"`
	DecisionReason string  `json:"decisionReason,omitempty"`
	CreatedAt      string  `json:"createdAt"`
	UpdatedAt      string  `json:"updatedAt"`
}

// Script is the narration of a story.
type Script struct {
	ID              string `json:"id"`
	Hook            string `json:"hook"`
	WhatHappened    string `json:"whatHappened"`
	WhyItMatters    string `json:"whyItMatters"`
	WhatHappensNext string `json:"whatHappensNext"`
	CTALine         string `json:"ctaLine"`
}

// Review is a review gate with the script it guards.
type Review struct {
	ID         string  `json:"id"`
	StoryID    string  `json:"storyId"`
	Status     string  `json:"status"`
	EditedHook string  `json:"editedHook,omitempty"`
	CreatedAt  string  `json:"createdAt"`
	ReviewedAt string  `json:"reviewedAt,omitempty"`
	Category   string  `json:"category,omitempty"`
	ShockScore int     `json:"shockScore,omitempty"`
	Script     *Script `json:"script,omitempty"`
}

// Render is one composition job.
type Render struct {
	ID             string `json:"id"`
	StoryID        string `json:"storyId"`
	ScriptID       string `json:"scriptId"`
	Template       string `json:"template,omitempty"`
	BackgroundType string `json:"backgroundType,omitempty"`
	BackgroundID   string `json:"backgroundId,omitempty"`
	Status         string `json:"status"`
	OutputURL      string `json:"outputUrl,omitempty"`
	Log            string `json:"log,omitempty"`
	CreatedAt      string `json:"createdAt"`
	StartedAt      string `json:"startedAt,omitempty"`
	CompletedAt    string `json:"completedAt,omitempty"`
}

// Publish is one upload.
type Publish struct {
	ID              string `json:"id"`
	RenderID        string `json:"renderId"`
	Platform        string `json:"platform"`
	PlatformVideoID string `json:"platformVideoId"`
	URL             string `json:"url,omitempty"`
	Title           string `json:"title"`
	Status          string `json:"status"`
	PostedAt        string `json:"postedAt"`
}

// AnalyticsPoint is one daily snapshot.
type AnalyticsPoint struct {
	Date           string   `json:"date"`
	Views          int64    `json:"views"`
	Likes          int64    `json:"likes"`
	Comments       int64    `json:"comments"`
	AvgWatchTime   *float64 `json:"avgWatchTime,omitempty"`
	CompletionRate *float64 `json:"completionRate,omitempty"`
}

// Setting is one runtime knob with its effective value.
type Setting struct {
	Key       string `json:"key"`
	Kind      string `json:"kind"`
	Value     string `json:"value"`
	Default   string `json:"default"`
	Stored    bool   `json:"stored"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Dashboard summarizes the pipeline.
type Dashboard struct {
	Counts         map[string]map[string]int `json:"counts"`
	PublishedToday int                       `json:"publishedToday"`
	DailyCap       int                       `json:"dailyCap"`
	ReviewMode     bool                      `json:"reviewMode"`
}

// StageResult is the tally of one stage invocation.
type StageResult struct {
	Considered int    `json:"considered"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	Halted     string `json:"halted,omitempty"`
}

// JobStatus describes one scheduled job.
type JobStatus struct {
	Name       string      `json:"name"`
	Every      string      `json:"every,omitempty"`
	DailyAt    string      `json:"dailyAt,omitempty"`
	Running    bool        `json:"running"`
	Runs       int         `json:"runs"`
	LastStart  string      `json:"lastStart,omitempty"`
	LastFinish string      `json:"lastFinish,omitempty"`
	LastResult StageResult `json:"lastResult"`
	LastError  string      `json:"lastError,omitempty"`
	NextRun    string      `json:"nextRun,omitempty"`
}

// StageHealth mirrors readiness reporting for stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// WorkflowStatus summarizes the scheduler.
type WorkflowStatus struct {
	Running     bool          `json:"running"`
	StartedAt   string        `json:"startedAt,omitempty"`
	Jobs        []JobStatus   `json:"jobs"`
	StageHealth []StageHealth `json:"stageHealth"`
}

// CheckResult is one preflight check.
type CheckResult struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Optional bool   `json:"optional,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"databasePath"`
	LockFilePath string         `json:"lockFilePath"`
	Workflow     WorkflowStatus `json:"workflow"`
	Checks       []CheckResult  `json:"checks"`
}

// ListResponse wraps a collection.
type ListResponse[T any] struct {
	Items []T `json:"items"`
}

// SetEnabledRequest toggles a source.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// EditHookRequest replaces a review's hook.
type EditHookRequest struct {
	Hook string `json:"hook"`
}

// SetSettingRequest updates a setting.
type SetSettingRequest struct {
	Value string `json:"value"`
}

// AddSourceRequest creates a source.
type AddSourceRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
