package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const scriptColumns = "id, story_id, hook, what_happened, why_it_matters, what_happens_next, cta_line, duration_target_seconds, created_at"

// DefaultDurationSeconds is used when a script has no usable duration target.
const DefaultDurationSeconds = 35

func scanScript(scanner rowScanner) (*Script, error) {
	var (
		script  Script
		created sql.NullString
	)
	if err := scanner.Scan(&script.ID, &script.StoryID, &script.Hook, &script.WhatHappened, &script.WhyItMatters,
		&script.WhatHappensNext, &script.CTALine, &script.DurationTargetSeconds, &created); err != nil {
		return nil, err
	}
	script.CreatedAt = parseTime(created)
	return &script, nil
}

// MissingFields lists the required narration fields that are blank.
func (s Script) MissingFields() []string {
	fields := []struct {
		name  string
		value string
	}{
		{"hook", s.Hook},
		{"what_happened", s.WhatHappened},
		{"why_it_matters", s.WhyItMatters},
		{"what_happens_next", s.WhatHappensNext},
		{"cta_line", s.CTALine},
	}
	var missing []string
	for _, field := range fields {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	return missing
}

// CreateScript inserts the script for a QUEUED story, optionally opens a
// PENDING review item, and moves the story to APPROVED, all in one
// transaction. The returned review item is nil when reviewMode is false.
func (s *Store) CreateScript(ctx context.Context, script *Script, reviewMode bool) (*ReviewItem, error) {
	if script == nil {
		return nil, errors.New("script is nil")
	}
	if missing := script.MissingFields(); len(missing) > 0 {
		return nil, fmt.Errorf("script missing fields: %s", strings.Join(missing, ", "))
	}
	if script.ID == "" {
		script.ID = newID()
	}
	if script.DurationTargetSeconds <= 0 {
		script.DurationTargetSeconds = DefaultDurationSeconds
	}
	now := s.now()
	script.CreatedAt = now

	var review *ReviewItem
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		review = nil
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scripts (id, story_id, hook, what_happened, why_it_matters, what_happens_next, cta_line, duration_target_seconds, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			script.ID, script.StoryID, script.Hook, script.WhatHappened, script.WhyItMatters,
			script.WhatHappensNext, script.CTALine, script.DurationTargetSeconds, formatTime(now),
		); err != nil {
			return fmt.Errorf("insert script: %w", err)
		}
		if reviewMode {
			review = &ReviewItem{
				ID:        newID(),
				StoryID:   script.StoryID,
				ScriptID:  script.ID,
				Status:    ReviewPending,
				CreatedAt: now,
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO review_items (id, story_id, script_id, status, created_at) VALUES (?, ?, ?, ?, ?)`,
				review.ID, review.StoryID, review.ScriptID, string(review.Status), formatTime(now),
			); err != nil {
				return fmt.Errorf("insert review item: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE stories SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(StoryApproved), formatTime(now), script.StoryID, string(StoryQueued),
		)
		if err != nil {
			return fmt.Errorf("approve story: %w", err)
		}
		if ok, err := affected(res); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("story %s: %w", script.StoryID, ErrStaleStatus)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

// GetScript fetches a script by id. A missing row returns nil, nil.
func (s *Store) GetScript(ctx context.Context, id string) (*Script, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scriptColumns+` FROM scripts WHERE id = ?`, id)
	script, err := scanScript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get script: %w", err)
	}
	return script, nil
}

// ScriptForStory fetches the script of a story. A missing row returns nil, nil.
func (s *Store) ScriptForStory(ctx context.Context, storyID string) (*Script, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scriptColumns+` FROM scripts WHERE story_id = ?`, storyID)
	script, err := scanScript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("script for story: %w", err)
	}
	return script, nil
}
