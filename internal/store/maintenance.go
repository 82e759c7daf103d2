package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"
)

// Stats maps entity name ("raw_items", "stories", ...) to counts per status.
type Stats map[string]map[string]int

// Count returns the count for entity and status, zero when absent.
func (s Stats) Count(entity, status string) int {
	return s[entity][status]
}

// Total sums an entity's counts across statuses.
func (s Stats) Total(entity string) int {
	total := 0
	for _, n := range s[entity] {
		total += n
	}
	return total
}

var statColumns = []struct {
	table  string
	column string
}{
	{"sources", "CASE enabled WHEN 1 THEN 'ENABLED' ELSE 'DISABLED' END"},
	{"raw_items", "status"},
	{"stories", "status"},
	{"review_items", "status"},
	{"renders", "render_status"},
	{"publishes", "platform"},
}

// Stats returns counts per entity and status.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := make(Stats, len(statColumns))
	for _, sc := range statColumns {
		rows, err := s.db.QueryContext(ctx, `SELECT `+sc.column+`, COUNT(1) FROM `+sc.table+` GROUP BY 1`)
		if err != nil {
			return nil, fmt.Errorf("%s stats: %w", sc.table, err)
		}
		counts := make(map[string]int)
		for rows.Next() {
			var (
				status string
				count  int
			)
			if err := rows.Scan(&status, &count); err != nil {
				rows.Close()
				return nil, err
			}
			counts[status] = count
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
		stats[sc.table] = counts
	}
	return stats, nil
}

// DatabaseHealth captures diagnostic information about the database file.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	IntegrityCheck   bool
	Error            string
}

// CheckHealth pings the database and runs a quick integrity check.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping database: %w", err)
	}
	health.DatabaseReadable = true

	if err := s.db.QueryRowContext(connCtx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil && !errors.Is(err, sql.ErrNoRows) {
		health.Error = err.Error()
		return health, fmt.Errorf("read schema version: %w", err)
	}

	var result string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA quick_check").Scan(&result); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = result == "ok"
	if !health.IntegrityCheck {
		health.Error = result
	}
	return health, nil
}
