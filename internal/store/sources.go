package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const sourceColumns = "id, name, url, type, enabled, last_fetched_at, created_at"

func scanSource(scanner rowScanner) (*Source, error) {
	var (
		src         Source
		typ         string
		enabled     int
		lastFetched sql.NullString
		created     sql.NullString
	)
	if err := scanner.Scan(&src.ID, &src.Name, &src.URL, &typ, &enabled, &lastFetched, &created); err != nil {
		return nil, err
	}
	src.Type = SourceType(typ)
	src.Enabled = enabled != 0
	src.LastFetchedAt = parseOptionalTime(lastFetched)
	src.CreatedAt = parseTime(created)
	return &src, nil
}

// ParseSourceType normalizes a user supplied source type.
func ParseSourceType(value string) (SourceType, error) {
	switch SourceType(strings.ToUpper(strings.TrimSpace(value))) {
	case SourceRSS:
		return SourceRSS, nil
	case SourceHTML:
		return SourceHTML, nil
	default:
		return "", fmt.Errorf("unknown source type %q (want RSS or HTML)", value)
	}
}

// CreateSource inserts a new enabled source.
func (s *Store) CreateSource(ctx context.Context, name, url string, typ SourceType) (*Source, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("source url is required")
	}
	if _, err := ParseSourceType(string(typ)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = url
	}
	src := &Source{
		ID:        newID(),
		Name:      strings.TrimSpace(name),
		URL:       url,
		Type:      typ,
		Enabled:   true,
		CreatedAt: s.now(),
	}
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO sources (id, name, url, type, enabled, created_at) VALUES (?, ?, ?, ?, 1, ?)`,
		src.ID, src.Name, src.URL, string(src.Type), formatTime(src.CreatedAt),
	); err != nil {
		return nil, fmt.Errorf("insert source: %w", err)
	}
	return src, nil
}

// UpsertSources inserts seed sources, updating name and type for URLs that
// already exist. The enabled flag of existing rows is left alone. It returns
// the number of new rows.
func (s *Store) UpsertSources(ctx context.Context, sources []Source) (int, error) {
	created := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		created = 0
		for _, src := range sources {
			url := strings.TrimSpace(src.URL)
			if url == "" {
				return errors.New("source url is required")
			}
			typ, err := ParseSourceType(string(src.Type))
			if err != nil {
				return fmt.Errorf("source %s: %w", url, err)
			}
			name := strings.TrimSpace(src.Name)
			if name == "" {
				name = url
			}
			res, err := tx.ExecContext(ctx,
				`INSERT INTO sources (id, name, url, type, enabled, created_at) VALUES (?, ?, ?, ?, ?, ?)
                 ON CONFLICT(url) DO NOTHING`,
				newID(), name, url, string(typ), boolToInt(src.Enabled), formatTime(s.now()),
			)
			if err != nil {
				return fmt.Errorf("insert source %s: %w", url, err)
			}
			if ok, _ := affected(res); ok {
				created++
				continue
			}
			if _, err := tx.ExecContext(ctx, `UPDATE sources SET name = ?, type = ? WHERE url = ?`, name, string(typ), url); err != nil {
				return fmt.Errorf("update source %s: %w", url, err)
			}
		}
		return nil
	})
	return created, err
}

// ListSources returns sources ordered by name.
func (s *Store) ListSources(ctx context.Context, enabledOnly bool) ([]Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY name, created_at`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *src)
	}
	return out, rows.Err()
}

// GetSource fetches a source by id. A missing row returns nil, nil.
func (s *Store) GetSource(ctx context.Context, id string) (*Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	return src, nil
}

// SetSourceEnabled toggles a source. It reports whether a row matched.
func (s *Store) SetSourceEnabled(ctx context.Context, id string, enabled bool) (bool, error) {
	res, err := s.execWithRetry(ctx, `UPDATE sources SET enabled = ? WHERE id = ?`, boolToInt(enabled), id)
	if err != nil {
		return false, fmt.Errorf("toggle source: %w", err)
	}
	return affected(res)
}

// MarkSourceFetched stamps last_fetched_at.
func (s *Store) MarkSourceFetched(ctx context.Context, id string, at time.Time) error {
	if _, err := s.execWithRetry(ctx, `UPDATE sources SET last_fetched_at = ? WHERE id = ?`, formatTime(at), id); err != nil {
		return fmt.Errorf("mark source fetched: %w", err)
	}
	return nil
}
