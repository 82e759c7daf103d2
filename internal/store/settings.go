package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetSetting fetches a setting row. A missing key returns nil, nil.
func (s *Store) GetSetting(ctx context.Context, key string) (*Setting, error) {
	var (
		setting Setting
		kind    string
		updated sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT key, kind, value, updated_at FROM settings WHERE key = ?`, key).
		Scan(&setting.Key, &kind, &setting.Value, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get setting: %w", err)
	}
	setting.Kind = SettingKind(kind)
	setting.UpdatedAt = parseTime(updated)
	return &setting, nil
}

// SetSetting creates or replaces a setting row.
func (s *Store) SetSetting(ctx context.Context, key string, kind SettingKind, value string) error {
	switch kind {
	case KindInt, KindBool, KindString:
	default:
		return fmt.Errorf("unknown setting kind %q", kind)
	}
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO settings (key, kind, value, updated_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET kind = excluded.kind, value = excluded.value, updated_at = excluded.updated_at`,
		key, string(kind), value, formatTime(s.now()),
	); err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// ListSettings returns all stored settings ordered by key.
func (s *Store) ListSettings(ctx context.Context) ([]Setting, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, kind, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var out []Setting
	for rows.Next() {
		var (
			setting Setting
			kind    string
			updated sql.NullString
		)
		if err := rows.Scan(&setting.Key, &kind, &setting.Value, &updated); err != nil {
			return nil, err
		}
		setting.Kind = SettingKind(kind)
		setting.UpdatedAt = parseTime(updated)
		out = append(out, setting)
	}
	return out, rows.Err()
}
