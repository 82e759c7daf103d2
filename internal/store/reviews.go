package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const reviewColumns = "id, story_id, script_id, status, edited_hook, created_at, reviewed_at"

func scanReview(scanner rowScanner) (*ReviewItem, error) {
	var (
		item     ReviewItem
		status   string
		edited   sql.NullString
		created  sql.NullString
		reviewed sql.NullString
	)
	if err := scanner.Scan(&item.ID, &item.StoryID, &item.ScriptID, &status, &edited, &created, &reviewed); err != nil {
		return nil, err
	}
	item.Status = ReviewStatus(status)
	item.EditedHook = edited.String
	item.CreatedAt = parseTime(created)
	item.ReviewedAt = parseOptionalTime(reviewed)
	return &item, nil
}

func collectReviews(rows *sql.Rows) ([]ReviewItem, error) {
	var out []ReviewItem
	for rows.Next() {
		item, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

// PendingReviewsOlderThan returns PENDING review items created strictly
// before cutoff, oldest first.
func (s *Store) PendingReviewsOlderThan(ctx context.Context, cutoff time.Time) ([]ReviewItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reviewColumns+` FROM review_items WHERE status = ? AND created_at < ? ORDER BY created_at, id`,
		string(ReviewPending), formatTime(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("pending reviews: %w", err)
	}
	defer rows.Close()
	return collectReviews(rows)
}

// ReviewsByStatus lists review items with the given status, oldest first.
func (s *Store) ReviewsByStatus(ctx context.Context, status ReviewStatus) ([]ReviewItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reviewColumns+` FROM review_items WHERE status = ? ORDER BY created_at, id`, string(status))
	if err != nil {
		return nil, fmt.Errorf("reviews by status: %w", err)
	}
	defer rows.Close()
	return collectReviews(rows)
}

// GetReview fetches a review item by id. A missing row returns nil, nil.
func (s *Store) GetReview(ctx context.Context, id string) (*ReviewItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM review_items WHERE id = ?`, id)
	item, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return item, nil
}

// ApproveReview moves a PENDING review item to APPROVED and its story to
// APPROVED in one transaction. It reports false when the item was no longer
// PENDING, leaving manual decisions untouched.
func (s *Store) ApproveReview(ctx context.Context, id string, at time.Time) (bool, error) {
	return s.decideReview(ctx, id, ReviewApproved, StoryApproved, at)
}

// RejectReview moves a PENDING review item to REJECTED and its story to
// REJECTED in one transaction.
func (s *Store) RejectReview(ctx context.Context, id string, at time.Time) (bool, error) {
	return s.decideReview(ctx, id, ReviewRejected, StoryRejected, at)
}

func (s *Store) decideReview(ctx context.Context, id string, review ReviewStatus, story StoryStatus, at time.Time) (bool, error) {
	changed := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		changed = false
		var storyID string
		err := tx.QueryRowContext(ctx,
			`UPDATE review_items SET status = ?, reviewed_at = ? WHERE id = ? AND status = ? RETURNING story_id`,
			string(review), formatTime(at), id, string(ReviewPending),
		).Scan(&storyID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("update review item: %w", err)
		}
		var reason any
		if story == StoryRejected {
			reason = "rejected in review"
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE stories SET status = ?, decision_reason = COALESCE(?, decision_reason), updated_at = ?
             WHERE id = ? AND status = ?`,
			string(story), reason, formatTime(s.now()), storyID, string(StoryApproved),
		); err != nil {
			return fmt.Errorf("update story: %w", err)
		}
		changed = true
		return nil
	})
	return changed, err
}

// EditReviewHook stores a reviewer's replacement hook on a PENDING item.
func (s *Store) EditReviewHook(ctx context.Context, id, hook string) (bool, error) {
	hook = strings.TrimSpace(hook)
	if hook == "" {
		return false, errors.New("edited hook must not be blank")
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE review_items SET edited_hook = ? WHERE id = ? AND status = ?`,
		hook, id, string(ReviewPending),
	)
	if err != nil {
		return false, fmt.Errorf("edit review hook: %w", err)
	}
	return affected(res)
}
