package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const rawItemColumns = "id, source_id, url, title, snippet, published_at, hash, status, discard_reason, created_at"

func scanRawItem(scanner rowScanner) (*RawItem, error) {
	var (
		item      RawItem
		status    string
		published sql.NullString
		reason    sql.NullString
		created   sql.NullString
	)
	if err := scanner.Scan(&item.ID, &item.SourceID, &item.URL, &item.Title, &item.Snippet,
		&published, &item.Hash, &status, &reason, &created); err != nil {
		return nil, err
	}
	item.Status = RawItemStatus(status)
	item.PublishedAt = parseTime(published)
	item.DiscardReason = reason.String
	item.CreatedAt = parseTime(created)
	return &item, nil
}

// InsertRawItem stores a NEW raw item. A row with the same hash already
// present makes this a no-op reported as inserted=false.
func (s *Store) InsertRawItem(ctx context.Context, item *RawItem) (bool, error) {
	if item == nil {
		return false, errors.New("raw item is nil")
	}
	if item.ID == "" {
		item.ID = newID()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	if item.PublishedAt.IsZero() {
		item.PublishedAt = item.CreatedAt
	}
	item.Status = RawItemNew

	res, err := s.execWithRetry(ctx,
		`INSERT INTO raw_items (id, source_id, url, title, snippet, published_at, hash, status, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(hash) DO NOTHING`,
		item.ID, item.SourceID, item.URL, item.Title, item.Snippet,
		formatTime(item.PublishedAt), item.Hash, string(item.Status), formatTime(item.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert raw item: %w", err)
	}
	return affected(res)
}

// RawItemsByStatus returns raw items in creation order. limit <= 0 means all.
func (s *Store) RawItemsByStatus(ctx context.Context, status RawItemStatus, limit int) ([]RawItem, error) {
	query := `SELECT ` + rawItemColumns + ` FROM raw_items WHERE status = ? ORDER BY created_at, id`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("raw items by status: %w", err)
	}
	defer rows.Close()

	var out []RawItem
	for rows.Next() {
		item, err := scanRawItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

// GetRawItem fetches a raw item by id. A missing row returns nil, nil.
func (s *Store) GetRawItem(ctx context.Context, id string) (*RawItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+rawItemColumns+` FROM raw_items WHERE id = ?`, id)
	item, err := scanRawItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get raw item: %w", err)
	}
	return item, nil
}

// MarkRawItemProcessed moves a NEW item to PROCESSED.
func (s *Store) MarkRawItemProcessed(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE raw_items SET status = ? WHERE id = ? AND status = ?`,
		string(RawItemProcessed), id, string(RawItemNew),
	)
	if err != nil {
		return false, fmt.Errorf("mark raw item processed: %w", err)
	}
	return affected(res)
}

// DiscardRawItem moves a NEW item to DISCARDED with a reason.
func (s *Store) DiscardRawItem(ctx context.Context, id, reason string) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE raw_items SET status = ?, discard_reason = ? WHERE id = ? AND status = ?`,
		string(RawItemDiscarded), nullableString(reason), id, string(RawItemNew),
	)
	if err != nil {
		return false, fmt.Errorf("discard raw item: %w", err)
	}
	return affected(res)
}

// CountRawItemsSince counts raw items created at or after since.
func (s *Store) CountRawItemsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM raw_items WHERE created_at >= ?`, formatTime(since)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count raw items: %w", err)
	}
	return count, nil
}
