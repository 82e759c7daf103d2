// Package review auto-approves PENDING review items once they have waited
// auto_approve_minutes, and exposes the manual reviewer decisions used by the
// admin API and CLI.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"orbix/internal/logging"
	"orbix/internal/services"
	"orbix/internal/settings"
	"orbix/internal/stage"
	"orbix/internal/store"
)

// Store is the persistence surface used by review.
type Store interface {
	PendingReviewsOlderThan(ctx context.Context, cutoff time.Time) ([]store.ReviewItem, error)
	GetReview(ctx context.Context, id string) (*store.ReviewItem, error)
	ApproveReview(ctx context.Context, id string, at time.Time) (bool, error)
	RejectReview(ctx context.Context, id string, at time.Time) (bool, error)
	EditReviewHook(ctx context.Context, id, hook string) (bool, error)
}

// Stage auto-approves stale review items.
type Stage struct {
	store  Store
	logger *slog.Logger
	clock  func() time.Time
}

// New builds the review stage. A nil clock uses time.Now.
func New(st Store, logger *slog.Logger, clock func() time.Time) *Stage {
	if clock == nil {
		clock = time.Now
	}
	return &Stage{
		store:  st,
		logger: logging.NewComponentLogger(logger, stage.NameReview),
		clock:  clock,
	}
}

func (s *Stage) Name() string { return stage.NameReview }

func (s *Stage) HealthCheck(context.Context) stage.Health { return stage.Healthy(s.Name()) }

// Run approves every PENDING item created before now minus the configured
// wait. Items decided manually in the meantime are left alone.
func (s *Stage) Run(ctx context.Context, snapshot settings.Settings) (stage.Result, error) {
	var result stage.Result
	now := s.clock().UTC()
	cutoff := now.Add(-time.Duration(snapshot.AutoApproveMinutes) * time.Minute)

	items, err := s.store.PendingReviewsOlderThan(ctx, cutoff)
	if err != nil {
		return result, services.Wrap(services.ErrTransient, stage.NameReview, "list pending", "", err)
	}
	for _, item := range items {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		itemCtx := services.WithItemID(ctx, item.ID)
		logger := logging.WithContext(itemCtx, s.logger)
		changed, err := s.store.ApproveReview(itemCtx, item.ID, now)
		switch {
		case err != nil:
			result.Fail()
			logging.WarnWithContext(logger, "auto-approve failed", "review_update_failed", logging.Error(err))
		case !changed:
			result.Skip()
		default:
			result.Succeed()
			attrs := append(logging.DecisionAttrs("review", "auto_approve", fmt.Sprintf("pending longer than %d minutes", snapshot.AutoApproveMinutes)),
				logging.String("story_id", item.StoryID),
			)
			logger.Info("review auto-approved", logging.Args(attrs...)...)
		}
	}
	return result, nil
}

// Manager applies manual reviewer decisions.
type Manager struct {
	store  Store
	logger *slog.Logger
	clock  func() time.Time
}

// NewManager builds a Manager. A nil clock uses time.Now.
func NewManager(st Store, logger *slog.Logger, clock func() time.Time) *Manager {
	if clock == nil {
		clock = time.Now
	}
	return &Manager{store: st, logger: logging.NewComponentLogger(logger, "review"), clock: clock}
}

// Approve releases a PENDING item for rendering.
func (m *Manager) Approve(ctx context.Context, id string) error {
	return m.decide(ctx, id, "approve", m.store.ApproveReview)
}

// Reject rejects a PENDING item and its story.
func (m *Manager) Reject(ctx context.Context, id string) error {
	return m.decide(ctx, id, "reject", m.store.RejectReview)
}

// EditHook replaces the hook used for the published title.
func (m *Manager) EditHook(ctx context.Context, id, hook string) error {
	if strings.TrimSpace(hook) == "" {
		return services.Wrap(services.ErrValidation, "review", "edit hook", "hook must not be blank", nil)
	}
	changed, err := m.store.EditReviewHook(ctx, id, hook)
	if err != nil {
		return services.Wrap(services.ErrTransient, "review", "edit hook", id, err)
	}
	if !changed {
		return m.notPending(ctx, id, "edit hook")
	}
	logging.WithContext(services.WithItemID(ctx, id), m.logger).Info("review hook edited")
	return nil
}

func (m *Manager) decide(ctx context.Context, id, action string, apply func(context.Context, string, time.Time) (bool, error)) error {
	changed, err := apply(ctx, id, m.clock().UTC())
	if err != nil {
		return services.Wrap(services.ErrTransient, "review", action, id, err)
	}
	if !changed {
		return m.notPending(ctx, id, action)
	}
	logging.WithContext(services.WithItemID(ctx, id), m.logger).Info("review decided",
		logging.Args(logging.DecisionAttrs("review", action, "manual decision")...)...)
	return nil
}

func (m *Manager) notPending(ctx context.Context, id, action string) error {
	item, err := m.store.GetReview(ctx, id)
	if err != nil {
		return services.Wrap(services.ErrTransient, "review", action, id, err)
	}
	if item == nil {
		return services.Wrap(services.ErrNotFound, "review", action, "review item "+id, nil)
	}
	return services.Wrap(services.ErrValidation, "review", action, fmt.Sprintf("review item %s is %s, not PENDING", id, item.Status), nil)
}
