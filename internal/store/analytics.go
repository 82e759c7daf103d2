package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UpsertAnalytics writes the snapshot for (platform_video_id, date),
// replacing any earlier values for that day.
func (s *Store) UpsertAnalytics(ctx context.Context, rec AnalyticsRecord) error {
	if rec.PlatformVideoID == "" || rec.Date == "" {
		return errors.New("analytics record requires platform video id and date")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = s.now()
	}
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO analytics_daily (platform_video_id, date, views, likes, comments, avg_watch_time, completion_rate, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(platform_video_id, date) DO UPDATE SET
             views = excluded.views,
             likes = excluded.likes,
             comments = excluded.comments,
             avg_watch_time = excluded.avg_watch_time,
             completion_rate = excluded.completion_rate,
             updated_at = excluded.updated_at`,
		rec.PlatformVideoID, rec.Date, rec.Views, rec.Likes, rec.Comments,
		nullableFloat(rec.AvgWatchTime), nullableFloat(rec.CompletionRate), formatTime(rec.UpdatedAt),
	); err != nil {
		return fmt.Errorf("upsert analytics: %w", err)
	}
	return nil
}

// AnalyticsFor returns the daily snapshots of a video, newest first.
func (s *Store) AnalyticsFor(ctx context.Context, videoID string) ([]AnalyticsRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT platform_video_id, date, views, likes, comments, avg_watch_time, completion_rate, updated_at
         FROM analytics_daily WHERE platform_video_id = ? ORDER BY date DESC`, videoID)
	if err != nil {
		return nil, fmt.Errorf("analytics for video: %w", err)
	}
	defer rows.Close()

	var out []AnalyticsRecord
	for rows.Next() {
		var (
			rec        AnalyticsRecord
			watch      sql.NullFloat64
			completion sql.NullFloat64
			updated    sql.NullString
		)
		if err := rows.Scan(&rec.PlatformVideoID, &rec.Date, &rec.Views, &rec.Likes, &rec.Comments,
			&watch, &completion, &updated); err != nil {
			return nil, err
		}
		rec.AvgWatchTime = optionalFloat(watch)
		rec.CompletionRate = optionalFloat(completion)
		rec.UpdatedAt = parseTime(updated)
		out = append(out, rec)
	}
	return out, rows.Err()
}
