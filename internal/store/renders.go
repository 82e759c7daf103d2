package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const renderColumns = "id, story_id, script_id, template, background_type, background_id, render_status, output_url, ffmpeg_log, created_at, started_at, completed_at"

func scanRender(scanner rowScanner, extra ...any) (*Render, error) {
	var (
		render    Render
		status    string
		outputURL sql.NullString
		ffmpegLog sql.NullString
		created   sql.NullString
		started   sql.NullString
		completed sql.NullString
	)
	dest := []any{&render.ID, &render.StoryID, &render.ScriptID, &render.Template, &render.BackgroundType,
		&render.BackgroundID, &status, &outputURL, &ffmpegLog, &created, &started, &completed}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	render.Status = RenderStatus(status)
	render.OutputURL = outputURL.String
	render.FFmpegLog = ffmpegLog.String
	render.CreatedAt = parseTime(created)
	render.StartedAt = parseOptionalTime(started)
	render.CompletedAt = parseOptionalTime(completed)
	return &render, nil
}

func prefixed(prefix, columns string) string {
	out := make([]byte, 0, len(columns)*2)
	start := true
	for i := 0; i < len(columns); i++ {
		c := columns[i]
		if start && c != ' ' {
			out = append(out, prefix...)
			out = append(out, '.')
			start = false
		}
		out = append(out, c)
		if c == ',' {
			start = true
		}
	}
	return string(out)
}

// RenderCandidates returns approved stories that have a script, no render,
// and either no review item or an APPROVED one. One query, oldest first.
func (s *Store) RenderCandidates(ctx context.Context) ([]RenderCandidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT st.id, sc.id
         FROM stories st
         JOIN scripts sc ON sc.story_id = st.id
         LEFT JOIN renders r ON r.script_id = sc.id
         LEFT JOIN review_items ri ON ri.script_id = sc.id
         WHERE st.status = ?
           AND r.id IS NULL
           AND (ri.id IS NULL OR ri.status = ?)
         ORDER BY st.updated_at, st.id`,
		string(StoryApproved), string(ReviewApproved),
	)
	if err != nil {
		return nil, fmt.Errorf("render candidates: %w", err)
	}
	defer rows.Close()

	var out []RenderCandidate
	for rows.Next() {
		var c RenderCandidate
		if err := rows.Scan(&c.StoryID, &c.ScriptID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AdmitRender creates a PENDING render for a script. The UNIQUE(script_id)
// constraint makes a concurrent or repeated admission a no-op that reports
// created=false.
func (s *Store) AdmitRender(ctx context.Context, storyID, scriptID string) (*Render, bool, error) {
	render := &Render{
		ID:        newID(),
		StoryID:   storyID,
		ScriptID:  scriptID,
		Status:    RenderPending,
		CreatedAt: s.now(),
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO renders (id, story_id, script_id, render_status, created_at) VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(script_id) DO NOTHING`,
		render.ID, render.StoryID, render.ScriptID, string(render.Status), formatTime(render.CreatedAt),
	)
	if err != nil {
		return nil, false, fmt.Errorf("admit render: %w", err)
	}
	ok, err := affected(res)
	if err != nil || !ok {
		return nil, false, err
	}
	return render, true, nil
}

// RenderJobs returns renders in the given status joined with their script and
// story category, oldest first. limit <= 0 means all.
func (s *Store) RenderJobs(ctx context.Context, status RenderStatus, limit int) ([]RenderJob, error) {
	query := `SELECT ` + prefixed("r", renderColumns) + `, ` + prefixed("sc", scriptColumns) + `, st.category
         FROM renders r
         JOIN scripts sc ON sc.id = r.script_id
         JOIN stories st ON st.id = r.story_id
         WHERE r.render_status = ?
         ORDER BY r.created_at, r.id`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("render jobs: %w", err)
	}
	defer rows.Close()

	var out []RenderJob
	for rows.Next() {
		job, err := scanRenderJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func scanRenderJob(rows *sql.Rows) (RenderJob, error) {
	var (
		job     RenderJob
		created sql.NullString
	)
	render, err := scanRender(rows,
		&job.Script.ID, &job.Script.StoryID, &job.Script.Hook, &job.Script.WhatHappened, &job.Script.WhyItMatters,
		&job.Script.WhatHappensNext, &job.Script.CTALine, &job.Script.DurationTargetSeconds, &created,
		&job.Category,
	)
	if err != nil {
		return job, err
	}
	job.Render = *render
	job.Script.CreatedAt = parseTime(created)
	return job, nil
}

// RendersByStatus lists renders in a status, oldest first.
func (s *Store) RendersByStatus(ctx context.Context, status RenderStatus) ([]Render, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+renderColumns+` FROM renders WHERE render_status = ? ORDER BY created_at, id`, string(status))
	if err != nil {
		return nil, fmt.Errorf("renders by status: %w", err)
	}
	defer rows.Close()
	return collectRenders(rows)
}

func collectRenders(rows *sql.Rows) ([]Render, error) {
	var out []Render
	for rows.Next() {
		render, err := scanRender(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *render)
	}
	return out, rows.Err()
}

// GetRender fetches a render by id. A missing row returns nil, nil.
func (s *Store) GetRender(ctx context.Context, id string) (*Render, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+renderColumns+` FROM renders WHERE id = ?`, id)
	render, err := scanRender(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get render: %w", err)
	}
	return render, nil
}

// ClaimRender moves a PENDING render to PROCESSING and records the chosen
// template and background. It reports false when another worker got there
// first.
func (s *Store) ClaimRender(ctx context.Context, id, template, backgroundType, backgroundID string) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE renders SET render_status = ?, template = ?, background_type = ?, background_id = ?, started_at = ?
         WHERE id = ? AND render_status = ?`,
		string(RenderProcessing), template, backgroundType, backgroundID, formatTime(s.now()),
		id, string(RenderPending),
	)
	if err != nil {
		return false, fmt.Errorf("claim render: %w", err)
	}
	return affected(res)
}

// CompleteRender marks a PROCESSING render COMPLETED with its artifact URL
// and moves the story to RENDERED in one transaction.
func (s *Store) CompleteRender(ctx context.Context, id, outputURL, log string, at time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var storyID string
		err := tx.QueryRowContext(ctx,
			`UPDATE renders SET render_status = ?, output_url = ?, ffmpeg_log = ?, completed_at = ?
             WHERE id = ? AND render_status = ? RETURNING story_id`,
			string(RenderCompleted), outputURL, nullableString(log), formatTime(at), id, string(RenderProcessing),
		).Scan(&storyID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("render %s: %w", id, ErrStaleStatus)
		}
		if err != nil {
			return fmt.Errorf("complete render: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE stories SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(StoryRendered), formatTime(at), storyID, string(StoryApproved),
		); err != nil {
			return fmt.Errorf("mark story rendered: %w", err)
		}
		return nil
	})
}

// FailRender marks a PROCESSING render FAILED with a diagnostic log. The
// story is left untouched.
func (s *Store) FailRender(ctx context.Context, id, log string) error {
	if _, err := s.execWithRetry(ctx,
		`UPDATE renders SET render_status = ?, ffmpeg_log = ?, completed_at = NULL WHERE id = ? AND render_status = ?`,
		string(RenderFailed), log, id, string(RenderProcessing),
	); err != nil {
		return fmt.Errorf("fail render: %w", err)
	}
	return nil
}

// ResetRender returns a FAILED render to PENDING so the next render run picks
// it up again.
func (s *Store) ResetRender(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE renders SET render_status = ?, output_url = NULL, started_at = NULL, completed_at = NULL
         WHERE id = ? AND render_status = ?`,
		string(RenderPending), id, string(RenderFailed),
	)
	if err != nil {
		return false, fmt.Errorf("reset render: %w", err)
	}
	return affected(res)
}

// ResetStuckRenders returns PROCESSING renders started before cutoff to
// PENDING. Used at daemon start after an unclean shutdown.
func (s *Store) ResetStuckRenders(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE renders SET render_status = ?, started_at = NULL WHERE render_status = ? AND (started_at IS NULL OR started_at < ?)`,
		string(RenderPending), string(RenderProcessing), formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck renders: %w", err)
	}
	return res.RowsAffected()
}
