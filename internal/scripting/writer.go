package scripting

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"orbix/internal/services"
	"orbix/internal/services/llm"
	"orbix/internal/store"
)

const (
	systemPrompt = "You are a script writer for Orbix Network. Return only valid JSON. Follow the exact structure."
	temperature  = 0.7
)

// Brief is what the writer knows about a story.
type Brief struct {
	Title      string
	Snippet    string
	Category   string
	ShockScore int
}

// Draft is a generated script before persistence.
type Draft struct {
	Hook            string
	WhatHappened    string
	WhyItMatters    string
	WhatHappensNext string
	CTALine         string
	DurationSeconds int
}

// Script converts the draft into a store record for storyID.
func (d Draft) Script(storyID string) *store.Script {
	return &store.Script{
		StoryID:               storyID,
		Hook:                  strings.TrimSpace(d.Hook),
		WhatHappened:          strings.TrimSpace(d.WhatHappened),
		WhyItMatters:          strings.TrimSpace(d.WhyItMatters),
		WhatHappensNext:       strings.TrimSpace(d.WhatHappensNext),
		CTALine:               strings.TrimSpace(d.CTALine),
		DurationTargetSeconds: d.DurationSeconds,
	}
}

// Writer produces a narration script for a story.
type Writer interface {
	Write(ctx context.Context, brief Brief) (Draft, error)
}

// Completer is the LLM surface used by LLMWriter.
type Completer interface {
	Configured() bool
	CompleteJSON(ctx context.Context, prompt llm.Prompt) (string, error)
}

// LLMWriter asks a chat model for the script.
type LLMWriter struct {
	client Completer
}

// NewLLMWriter wraps client.
func NewLLMWriter(client Completer) *LLMWriter {
	return &LLMWriter{client: client}
}

// Configured reports whether the underlying client has credentials.
func (w *LLMWriter) Configured() bool {
	return w != nil && w.client != nil && w.client.Configured()
}

type draftPayload struct {
	Hook            string          `json:"hook"`
	WhatHappened    string          `json:"what_happened"`
	WhyItMatters    string          `json:"why_it_matters"`
	WhatHappensNext string          `json:"what_happens_next"`
	CTALine         string          `json:"cta_line"`
	Duration        json.RawMessage `json:"duration_target_seconds"`
}

// Write sends the script prompt and parses the reply. Field presence is
// checked by the stage, not here.
func (w *LLMWriter) Write(ctx context.Context, brief Brief) (Draft, error) {
	content, err := w.client.CompleteJSON(ctx, llm.Prompt{
		System:      systemPrompt,
		User:        buildPrompt(brief),
		Temperature: temperature,
	})
	if err != nil {
		return Draft{}, err
	}
	var payload draftPayload
	if err := llm.DecodeJSON(content, &payload); err != nil {
		return Draft{}, services.Wrap(services.ErrValidation, "scripting", "parse reply", "", err)
	}
	return Draft{
		Hook:            payload.Hook,
		WhatHappened:    payload.WhatHappened,
		WhyItMatters:    payload.WhyItMatters,
		WhatHappensNext: payload.WhatHappensNext,
		CTALine:         payload.CTALine,
		DurationSeconds: parseDuration(payload.Duration),
	}, nil
}

// parseDuration accepts a JSON number or numeric string; anything else, or a
// non-positive value, yields the default.
func parseDuration(raw json.RawMessage) int {
	if len(raw) == 0 {
		return store.DefaultDurationSeconds
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return store.DefaultDurationSeconds
		}
		if _, err := fmt.Sscan(strings.TrimSpace(s), &n); err != nil {
			return store.DefaultDurationSeconds
		}
	}
	if math.IsNaN(n) || n < 1 || n > 600 {
		return store.DefaultDurationSeconds
	}
	return int(math.Round(n))
}

func buildPrompt(b Brief) string {
	return fmt.Sprintf(`Generate a short-form video script (30-45 seconds) for this news story.

Story:
Title: %s
Snippet: %s
Category: %s
Shock Score: %d

Script Structure (REQUIRED):
1. Hook (1-2 sentences, statement not question, attention-grabbing)
2. What Happened (2-3 sentences, factual)
3. Why It Matters (2-3 sentences, impact)
4. What Happens Next (1-2 sentences, implications)
5. CTA Line (soft utility, never "please subscribe")

Tone Requirements:
- Calm and observational
- Authoritative but not preachy
- No speculation language ("might", "could", "probably")
- No political rage framing
- No graphic descriptions

Return JSON format:
{
    "hook": "hook text",
    "what_happened": "what happened text",
    "why_it_matters": "why it matters text",
    "what_happens_next": "what happens next text",
    "cta_line": "cta text",
    "duration_target_seconds": %d
}`, strings.TrimSpace(b.Title), strings.TrimSpace(b.Snippet), b.Category, b.ShockScore, store.DefaultDurationSeconds)
}
