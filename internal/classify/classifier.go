package classify

import (
	"context"
	"fmt"
	"math"
	"strings"

	"orbix/internal/services"
	"orbix/internal/services/llm"
	"orbix/internal/store"
)

// DiscardLabel is the category value a classifier returns to reject a story.
const DiscardLabel = "DISCARD"

const (
	systemPrompt       = "You are a news classifier for Orbix Network. Return only valid JSON."
	temperature        = 0.3
	promptSnippetRunes = 500
)

// Input is what the classifier sees of a raw item.
type Input struct {
	Title   string
	Snippet string
}

// Verdict is the raw classifier answer before validation.
type Verdict struct {
	Category   string
	ShockScore float64
	Factors    store.Factors
	Reasoning  string
}

// Classifier assigns a category and shock score to a raw item.
type Classifier interface {
	Classify(ctx context.Context, in Input) (Verdict, error)
}

// Completer is the LLM surface used by LLMClassifier.
type Completer interface {
	Configured() bool
	CompleteJSON(ctx context.Context, prompt llm.Prompt) (string, error)
}

// LLMClassifier asks a chat model for the verdict.
type LLMClassifier struct {
	client Completer
}

// NewLLMClassifier wraps client.
func NewLLMClassifier(client Completer) *LLMClassifier {
	return &LLMClassifier{client: client}
}

// Configured reports whether the underlying client has credentials.
func (c *LLMClassifier) Configured() bool {
	return c != nil && c.client != nil && c.client.Configured()
}

type verdictPayload struct {
	Category   string         `json:"category"`
	ShockScore *float64       `json:"shock_score"`
	Factors    factorsPayload `json:"factors"`
	Reasoning  string         `json:"reasoning"`
}

// factorsPayload accepts fractional sub-scores; they are rounded.
type factorsPayload struct {
	Scale          float64 `json:"scale"`
	Speed          float64 `json:"speed"`
	PowerShift     float64 `json:"power_shift"`
	Permanence     float64 `json:"permanence"`
	Explainability float64 `json:"explainability"`
}

func (f factorsPayload) factors() store.Factors {
	return store.Factors{
		Scale:          int(math.Round(f.Scale)),
		Speed:          int(math.Round(f.Speed)),
		PowerShift:     int(math.Round(f.PowerShift)),
		Permanence:     int(math.Round(f.Permanence)),
		Explainability: int(math.Round(f.Explainability)),
	}
}

// Classify sends the scoring prompt and parses the JSON reply.
func (c *LLMClassifier) Classify(ctx context.Context, in Input) (Verdict, error) {
	content, err := c.client.CompleteJSON(ctx, llm.Prompt{
		System:      systemPrompt,
		User:        buildPrompt(in),
		Temperature: temperature,
	})
	if err != nil {
		return Verdict{}, err
	}
	var payload verdictPayload
	if err := llm.DecodeJSON(content, &payload); err != nil {
		return Verdict{}, services.Wrap(services.ErrValidation, "classification", "parse reply", "", err)
	}
	category := strings.TrimSpace(payload.Category)
	if category == "" {
		return Verdict{}, services.Wrap(services.ErrValidation, "classification", "parse reply", "missing category", nil)
	}
	v := Verdict{
		Category:  category,
		Factors:   payload.Factors.factors(),
		Reasoning: strings.TrimSpace(payload.Reasoning),
	}
	if payload.ShockScore != nil {
		v.ShockScore = *payload.ShockScore
	} else if !strings.EqualFold(category, DiscardLabel) {
		return Verdict{}, services.Wrap(services.ErrValidation, "classification", "parse reply", "missing shock_score", nil)
	}
	return v, nil
}

func buildPrompt(in Input) string {
	snippet := []rune(strings.TrimSpace(in.Snippet))
	if len(snippet) > promptSnippetRunes {
		snippet = snippet[:promptSnippetRunes]
	}
	var b strings.Builder
	b.WriteString("Analyze this news story and classify it into exactly ONE category, then score its \"shock value\" (0-100).\n\n")
	fmt.Fprintf(&b, "Story:\nTitle: %s\nSnippet: %s\n\n", strings.TrimSpace(in.Title), string(snippet))
	b.WriteString("Categories (choose exactly ONE):\n")
	for i, name := range store.Categories {
		fmt.Fprintf(&b, "%d. %s\n", i+1, name)
	}
	b.WriteString(`
Shock Score Components (total 0-100):
- Scale (0-30): How many people/companies affected?
- Speed (0-20): How quickly did this happen?
- Power shift (0-25): How much did power/control change?
- Permanence (0-15): How permanent is this change?
- Explainability (0-10): How hard is this to explain to average person?

Rules:
- If story is unclear, political rage, graphic violence, or speculation-heavy, return "DISCARD"
- Only return a valid category if the story clearly fits

Return JSON format:
{
    "category": "category name or DISCARD",
    "shock_score": 0-100,
    "factors": {
        "scale": 0-30,
        "speed": 0-20,
        "power_shift": 0-25,
        "permanence": 0-15,
        "explainability": 0-10
    },
    "reasoning": "brief explanation"
}`)
	return b.String()
}
