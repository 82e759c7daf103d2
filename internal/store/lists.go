package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// ListFilter narrows the operator listings. Zero values mean no filter.
type ListFilter struct {
	Status string
	Since  time.Time
	Limit  int
}

func applyFilter(q sq.SelectBuilder, statusColumn, timeColumn string, f ListFilter) sq.SelectBuilder {
	if f.Status != "" {
		q = q.Where(sq.Eq{statusColumn: f.Status})
	}
	if !f.Since.IsZero() {
		q = q.Where(sq.GtOrEq{timeColumn: formatTime(f.Since)})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	return q
}

// ListStories returns stories newest first.
func (s *Store) ListStories(ctx context.Context, f ListFilter) ([]Story, error) {
	q := applyFilter(sq.Select(storyColumns).From("stories").OrderBy("created_at DESC", "id"), "status", "created_at", f)
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build story list: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()
	return collectStories(rows)
}

// ListRenders returns renders newest first.
func (s *Store) ListRenders(ctx context.Context, f ListFilter) ([]Render, error) {
	q := applyFilter(sq.Select(renderColumns).From("renders").OrderBy("created_at DESC", "id"), "render_status", "created_at", f)
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build render list: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list renders: %w", err)
	}
	defer rows.Close()
	return collectRenders(rows)
}

// ListPublishes returns publishes newest first. Status filters by platform
// when it names one, otherwise by publish status.
func (s *Store) ListPublishes(ctx context.Context, f ListFilter) ([]Publish, error) {
	q := sq.Select(publishColumns).From("publishes").OrderBy("posted_at DESC", "id")
	switch Platform(f.Status) {
	case PlatformYouTube, PlatformRumble:
		q = q.Where(sq.Eq{"platform": f.Status})
		f.Status = ""
	}
	q = applyFilter(q, "publish_status", "posted_at", f)
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build publish list: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list publishes: %w", err)
	}
	defer rows.Close()
	return collectPublishes(rows)
}

// ListReviews returns review items newest first.
func (s *Store) ListReviews(ctx context.Context, f ListFilter) ([]ReviewItem, error) {
	q := applyFilter(sq.Select(reviewColumns).From("review_items").OrderBy("created_at DESC", "id"), "status", "created_at", f)
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build review list: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()
	return collectReviews(rows)
}
