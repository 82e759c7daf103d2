package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget names a directory and a filename glob to prune.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

// PruneOlderThan removes files under the targets whose modification time is
// more than retentionDays in the past. Zero or negative disables pruning.
// It returns the number of files removed.
func PruneOlderThan(logger *slog.Logger, now time.Time, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	cutoff := now.AddDate(0, 0, -retentionDays)

	skip := make(map[string]struct{})
	for _, target := range targets {
		for _, path := range target.Exclude {
			if abs, err := filepath.Abs(strings.TrimSpace(path)); err == nil && strings.TrimSpace(path) != "" {
				skip[abs] = struct{}{}
			}
		}
	}

	removed := 0
	for _, target := range targets {
		dir := strings.TrimSpace(target.Dir)
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		pattern := strings.TrimSpace(target.Pattern)
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if pattern != "" {
				if ok, err := filepath.Match(pattern, entry.Name()); err != nil || !ok {
					continue
				}
			}
			path := filepath.Join(dir, entry.Name())
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
			if _, ok := skip[path]; ok {
				continue
			}
			info, err := entry.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.Remove(path); err != nil {
				WarnWithContext(logger, "retention prune failed", "retention_prune_failed",
					String("path", path),
					Error(err),
					String(FieldErrorHint, "check permissions on the directory"),
					String(FieldImpact, "stale file remains on disk"),
				)
				continue
			}
			removed++
			if logger != nil {
				logger.Debug("file pruned", String("path", path), String(FieldEventType, "retention_pruned"))
			}
		}
	}
	return removed
}
