package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"orbix/internal/config"
	"orbix/internal/logging"
	"orbix/internal/services"
)

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	return string(data)
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("daemon started")

	content := readLog(t, filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if !strings.Contains(content, "daemon started") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerFormatsContextFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithStage(context.Background(), "classify")
	ctx = services.WithItemID(ctx, "raw-1")
	logger = logging.WithContext(ctx, logging.NewComponentLogger(logger, "classifier"))
	logger.Info("story created", logging.Int("shock_score", 72), logging.String("category", "Money & Market Shock"))

	content := readLog(t, logPath)
	for _, want := range []string{"INFO classifier: story created", "[stage=classify item=raw-1]", "shock_score=72", `category="Money & Market Shock"`} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("info-level console output should omit source, got %q", content)
	}
}

func TestJSONLoggerUsesStandardKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("render claimed", logging.String(logging.FieldItemID, "r-1"))

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(readLog(t, logPath))), &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry["level"] != "debug" {
		t.Fatalf("expected lowercase level, got %v", entry["level"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", entry)
	}
	if src, _ := entry["source"].(string); !strings.HasPrefix(src, "logger_test.go:") {
		t.Fatalf("expected short source at debug level, got %v", entry["source"])
	}
}

func TestLevelFiltering(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "warn", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hidden")
	logging.WarnWithContext(logger, "publish deferred", "daily_cap_reached")

	content := readLog(t, logPath)
	if strings.Contains(content, "hidden") {
		t.Fatalf("info message should be filtered at warn level: %q", content)
	}
	for _, want := range []string{"event_type=daily_cap_reached", "error_hint=", "impact="} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestPruneOlderThan(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "orbix-old.log")
	fresh := filepath.Join(dir, "orbix.log")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, fresh, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	past := time.Now().AddDate(0, 0, -30)
	for _, path := range []string{old, other} {
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.PruneOlderThan(logging.NewNop(), time.Now(), 7, logging.RetentionTarget{Dir: dir, Pattern: "*.log", Exclude: []string{fresh}})
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	if _, err := os.Stat(other); err != nil {
		t.Fatalf("non-matching file should remain: %v", err)
	}
}
