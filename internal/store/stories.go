package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrStaleStatus reports that a guarded transition found the row in an
// unexpected state.
var ErrStaleStatus = errors.New("status changed concurrently")

const storyColumns = "id, raw_item_id, category, shock_score, factors_json, status, decision_reason, created_at, updated_at"

func scanStory(scanner rowScanner) (*Story, error) {
	var (
		story   Story
		factors sql.NullString
		status  string
		reason  sql.NullString
		created sql.NullString
		updated sql.NullString
	)
	if err := scanner.Scan(&story.ID, &story.RawItemID, &story.Category, &story.ShockScore,
		&factors, &status, &reason, &created, &updated); err != nil {
		return nil, err
	}
	if factors.Valid && factors.String != "" {
		if err := json.Unmarshal([]byte(factors.String), &story.Factors); err != nil {
			return nil, fmt.Errorf("decode factors for story %s: %w", story.ID, err)
		}
	}
	story.Status = StoryStatus(status)
	story.DecisionReason = reason.String
	story.CreatedAt = parseTime(created)
	story.UpdatedAt = parseTime(updated)
	return &story, nil
}

// CreateStoryFromRawItem inserts a QUEUED story and moves its raw item from
// NEW to PROCESSED in one transaction. A raw item that is no longer NEW
// yields ErrStaleStatus and no story.
func (s *Store) CreateStoryFromRawItem(ctx context.Context, story *Story) error {
	if story == nil {
		return errors.New("story is nil")
	}
	factors, err := json.Marshal(story.Factors)
	if err != nil {
		return fmt.Errorf("encode factors: %w", err)
	}
	if story.ID == "" {
		story.ID = newID()
	}
	now := s.now()
	story.Status = StoryQueued
	story.CreatedAt = now
	story.UpdatedAt = now

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE raw_items SET status = ? WHERE id = ? AND status = ?`,
			string(RawItemProcessed), story.RawItemID, string(RawItemNew),
		)
		if err != nil {
			return fmt.Errorf("mark raw item processed: %w", err)
		}
		if ok, err := affected(res); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("raw item %s: %w", story.RawItemID, ErrStaleStatus)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stories (id, raw_item_id, category, shock_score, factors_json, status, decision_reason, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			story.ID, story.RawItemID, story.Category, story.ShockScore, string(factors),
			string(story.Status), nullableString(story.DecisionReason), formatTime(now), formatTime(now),
		); err != nil {
			return fmt.Errorf("insert story: %w", err)
		}
		return nil
	})
}

// StoriesByStatus returns stories in creation order. limit <= 0 means all.
func (s *Store) StoriesByStatus(ctx context.Context, status StoryStatus, limit int) ([]Story, error) {
	query := `SELECT ` + storyColumns + ` FROM stories WHERE status = ? ORDER BY created_at, id`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("stories by status: %w", err)
	}
	defer rows.Close()
	return collectStories(rows)
}

func collectStories(rows *sql.Rows) ([]Story, error) {
	var out []Story
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *story)
	}
	return out, rows.Err()
}

// GetStory fetches a story by id. A missing row returns nil, nil.
func (s *Store) GetStory(ctx context.Context, id string) (*Story, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+storyColumns+` FROM stories WHERE id = ?`, id)
	story, err := scanStory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get story: %w", err)
	}
	return story, nil
}

// SetStoryStatus moves a story from one status to another. It reports false
// when the story was not in the from status.
func (s *Store) SetStoryStatus(ctx context.Context, id string, from, to StoryStatus, reason string) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE stories SET status = ?, decision_reason = COALESCE(?, decision_reason), updated_at = ?
         WHERE id = ? AND status = ?`,
		string(to), nullableString(reason), formatTime(s.now()), id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("set story status: %w", err)
	}
	return affected(res)
}
