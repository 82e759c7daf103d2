// Package classify scores NEW raw items and turns the keepers into QUEUED
// stories. Every other outcome discards the raw item with a reason.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"golang.org/x/text/cases"

	"orbix/internal/logging"
	"orbix/internal/services"
	"orbix/internal/settings"
	"orbix/internal/stage"
	"orbix/internal/store"
)

// Store is the persistence surface used by classification.
type Store interface {
	RawItemsByStatus(ctx context.Context, status store.RawItemStatus, limit int) ([]store.RawItem, error)
	CreateStoryFromRawItem(ctx context.Context, story *store.Story) error
	DiscardRawItem(ctx context.Context, id, reason string) (bool, error)
}

// Factor ranges.
var factorLimits = store.Factors{Scale: 30, Speed: 20, PowerShift: 25, Permanence: 15, Explainability: 10}

var folder = cases.Fold()

// Decision is the validated outcome for one raw item.
type Decision struct {
	Keep       bool
	Category   string
	ShockScore int
	Factors    store.Factors
	Reason     string
}

// Evaluate validates a verdict against the category set and threshold.
func Evaluate(v Verdict, threshold int) Decision {
	raw := strings.TrimSpace(v.Category)
	if strings.EqualFold(raw, DiscardLabel) {
		return Decision{Reason: withReasoning("classifier discarded story", v.Reasoning)}
	}
	category, ok := CanonicalCategory(raw)
	if !ok {
		return Decision{Reason: fmt.Sprintf("invalid category %q", raw)}
	}
	if math.IsNaN(v.ShockScore) || v.ShockScore < 0 || v.ShockScore > 100 {
		return Decision{Reason: fmt.Sprintf("shock score %v outside 0-100", v.ShockScore)}
	}
	score := int(math.Round(v.ShockScore))
	if score < threshold {
		return Decision{Reason: fmt.Sprintf("shock score %d below threshold %d", score, threshold)}
	}
	return Decision{
		Keep:       true,
		Category:   category,
		ShockScore: score,
		Factors:    ClampFactors(v.Factors),
		Reason:     v.Reasoning,
	}
}

// CanonicalCategory matches name case-insensitively against store.Categories.
func CanonicalCategory(name string) (string, bool) {
	want := folder.String(strings.Join(strings.Fields(name), " "))
	for _, c := range store.Categories {
		if folder.String(c) == want {
			return c, true
		}
	}
	return "", false
}

// ClampFactors bounds each sub-score to its documented range.
func ClampFactors(f store.Factors) store.Factors {
	return store.Factors{
		Scale:          clamp(f.Scale, factorLimits.Scale),
		Speed:          clamp(f.Speed, factorLimits.Speed),
		PowerShift:     clamp(f.PowerShift, factorLimits.PowerShift),
		Permanence:     clamp(f.Permanence, factorLimits.Permanence),
		Explainability: clamp(f.Explainability, factorLimits.Explainability),
	}
}

func clamp(v, hi int) int {
	return max(0, min(v, hi))
}

func withReasoning(prefix, reasoning string) string {
	if reasoning = strings.TrimSpace(reasoning); reasoning != "" {
		return prefix + ": " + reasoning
	}
	return prefix
}

// Stage classifies NEW raw items.
type Stage struct {
	store      Store
	classifier Classifier
	logger     *slog.Logger
	batch      int
}

// New builds the classification stage. batch bounds the items handled per
// run; 0 means all.
func New(st Store, classifier Classifier, logger *slog.Logger, batch int) *Stage {
	return &Stage{
		store:      st,
		classifier: classifier,
		logger:     logging.NewComponentLogger(logger, stage.NameClassification),
		batch:      batch,
	}
}

func (s *Stage) Name() string { return stage.NameClassification }

func (s *Stage) HealthCheck(context.Context) stage.Health {
	if !configured(s.classifier) {
		return stage.Unhealthy(s.Name(), "classifier not configured (llm.api_key)")
	}
	return stage.Healthy(s.Name())
}

type configurable interface {
	Configured() bool
}

func configured(c Classifier) bool {
	if c == nil {
		return false
	}
	if cc, ok := c.(configurable); ok {
		return cc.Configured()
	}
	return true
}

// Run classifies each NEW raw item once. A missing classifier configuration
// is a warning and a no-op.
func (s *Stage) Run(ctx context.Context, snapshot settings.Settings) (stage.Result, error) {
	var result stage.Result
	logger := logging.WithContext(ctx, s.logger)
	if !configured(s.classifier) {
		logging.WarnWithContext(logger, "classifier not configured; stage skipped", "stage_unconfigured",
			logging.String(logging.FieldErrorHint, "set llm.api_key or OPENROUTER_API_KEY"),
			logging.String(logging.FieldImpact, "raw items stay NEW"),
		)
		return result, nil
	}

	items, err := s.store.RawItemsByStatus(ctx, store.RawItemNew, s.batch)
	if err != nil {
		return result, services.Wrap(services.ErrTransient, stage.NameClassification, "list raw items", "", err)
	}
	for _, item := range items {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		s.process(services.WithItemID(ctx, item.ID), item, snapshot.Threshold, &result)
	}
	return result, nil
}

func (s *Stage) process(ctx context.Context, item store.RawItem, threshold int, result *stage.Result) {
	logger := logging.WithContext(ctx, s.logger)

	var decision Decision
	verdict, err := s.classifier.Classify(ctx, Input{Title: item.Title, Snippet: item.Snippet})
	if err != nil {
		decision = Decision{Reason: "classification failed: " + services.Reason(err)}
		logger.Warn("classifier call failed",
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Error(err),
		)
	} else {
		decision = Evaluate(verdict, threshold)
	}

	if !decision.Keep {
		if _, err := s.store.DiscardRawItem(ctx, item.ID, decision.Reason); err != nil {
			result.Fail()
			logging.WarnWithContext(logger, "discard raw item failed", "raw_item_update_failed", logging.Error(err))
			return
		}
		result.Skip()
		logger.Info("raw item discarded", logging.Args(logging.DecisionAttrs("classification", "discard", decision.Reason)...)...)
		return
	}

	story := &store.Story{
		RawItemID:      item.ID,
		Category:       decision.Category,
		ShockScore:     decision.ShockScore,
		Factors:        decision.Factors,
		DecisionReason: decision.Reason,
	}
	if err := s.store.CreateStoryFromRawItem(ctx, story); err != nil {
		if errors.Is(err, store.ErrStaleStatus) {
			result.Skip()
			logger.Debug("raw item already handled by another run")
			return
		}
		result.Fail()
		logging.WarnWithContext(logger, "create story failed", "story_create_failed", logging.Error(err))
		return
	}
	result.Succeed()
	attrs := append(logging.DecisionAttrs("classification", "keep", decision.Reason),
		logging.String("story_id", story.ID),
		logging.String("category", story.Category),
		logging.Int("shock_score", story.ShockScore),
	)
	logger.Info("story queued", logging.Args(attrs...)...)
}
