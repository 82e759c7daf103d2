package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const publishColumns = "id, render_id, platform, platform_video_id, title, description, publish_status, posted_at"

func scanPublish(scanner rowScanner) (*Publish, error) {
	var (
		pub      Publish
		platform string
		status   string
		posted   sql.NullString
	)
	if err := scanner.Scan(&pub.ID, &pub.RenderID, &platform, &pub.PlatformVideoID, &pub.Title,
		&pub.Description, &status, &posted); err != nil {
		return nil, err
	}
	pub.Platform = Platform(platform)
	pub.Status = PublishStatus(status)
	pub.PostedAt = parseTime(posted)
	return &pub, nil
}

func collectPublishes(rows *sql.Rows) ([]Publish, error) {
	var out []Publish
	for rows.Next() {
		pub, err := scanPublish(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *pub)
	}
	return out, rows.Err()
}

// PublishCandidates returns COMPLETED renders with no publish on platform,
// joined with script text, story category and any reviewer-edited hook.
// Ordered by completed_at, oldest first.
func (s *Store) PublishCandidates(ctx context.Context, platform Platform) ([]PublishCandidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+prefixed("r", renderColumns)+`, `+prefixed("sc", scriptColumns)+`, st.id, st.category, COALESCE(ri.edited_hook, '')
         FROM renders r
         JOIN scripts sc ON sc.id = r.script_id
         JOIN stories st ON st.id = r.story_id
         LEFT JOIN review_items ri ON ri.script_id = sc.id
         LEFT JOIN publishes p ON p.render_id = r.id AND p.platform = ?
         WHERE r.render_status = ? AND p.id IS NULL
         ORDER BY r.completed_at, r.id`,
		string(platform), string(RenderCompleted),
	)
	if err != nil {
		return nil, fmt.Errorf("publish candidates: %w", err)
	}
	defer rows.Close()

	var out []PublishCandidate
	for rows.Next() {
		var (
			c       PublishCandidate
			created sql.NullString
		)
		render, err := scanRender(rows,
			&c.Script.ID, &c.Script.StoryID, &c.Script.Hook, &c.Script.WhatHappened, &c.Script.WhyItMatters,
			&c.Script.WhatHappensNext, &c.Script.CTALine, &c.Script.DurationTargetSeconds, &created,
			&c.StoryID, &c.Category, &c.EditedHook,
		)
		if err != nil {
			return nil, err
		}
		c.Render = *render
		c.Script.CreatedAt = parseTime(created)
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountPublishedBetween counts publishes on platform with posted_at in
// [start, end).
func (s *Store) CountPublishedBetween(ctx context.Context, platform Platform, start, end time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM publishes WHERE platform = ? AND publish_status = ? AND posted_at >= ? AND posted_at < ?`,
		string(platform), string(PublishPublished), formatTime(start), formatTime(end),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count publishes: %w", err)
	}
	return count, nil
}

// RecordPublish inserts a PUBLISHED record. When markStory is set the linked
// story moves from RENDERED to PUBLISHED in the same transaction. A second
// record for the same render and platform fails with ErrDuplicatePublish.
func (s *Store) RecordPublish(ctx context.Context, pub *Publish, markStory bool) error {
	if pub == nil {
		return errors.New("publish is nil")
	}
	if pub.ID == "" {
		pub.ID = newID()
	}
	if pub.PostedAt.IsZero() {
		pub.PostedAt = s.now()
	}
	pub.Status = PublishPublished

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO publishes (id, render_id, platform, platform_video_id, title, description, publish_status, posted_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)
             ON CONFLICT(render_id, platform) DO NOTHING`,
			pub.ID, pub.RenderID, string(pub.Platform), pub.PlatformVideoID, pub.Title, pub.Description,
			string(pub.Status), formatTime(pub.PostedAt),
		)
		if err != nil {
			return fmt.Errorf("insert publish: %w", err)
		}
		if ok, err := affected(res); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("render %s on %s: %w", pub.RenderID, pub.Platform, ErrDuplicatePublish)
		}
		if !markStory {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE stories SET status = ?, updated_at = ?
             WHERE id = (SELECT story_id FROM renders WHERE id = ?) AND status = ?`,
			string(StoryPublished), formatTime(pub.PostedAt), pub.RenderID, string(StoryRendered),
		); err != nil {
			return fmt.Errorf("mark story published: %w", err)
		}
		return nil
	})
}

// ErrDuplicatePublish reports a second publish of a render to one platform.
var ErrDuplicatePublish = errors.New("render already published on platform")

// PublishesByStatus lists publishes in a status, oldest first.
func (s *Store) PublishesByStatus(ctx context.Context, status PublishStatus) ([]Publish, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+publishColumns+` FROM publishes WHERE publish_status = ? ORDER BY posted_at, id`, string(status))
	if err != nil {
		return nil, fmt.Errorf("publishes by status: %w", err)
	}
	defer rows.Close()
	return collectPublishes(rows)
}
