package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"orbix/internal/config"
)

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OPENROUTER_API_KEY", "OPENAI_API_KEY", "YOUTUBE_CLIENT_ID", "YOUTUBE_CLIENT_SECRET", "YOUTUBE_REFRESH_TOKEN", "RUMBLE_ACCESS_TOKEN", "ORBIX_API_TOKEN"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearCredentialEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "orbix", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "orbix")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.DatabasePath != filepath.Join(wantData, "orbix.db") {
		t.Fatalf("unexpected database path: %q", cfg.Paths.DatabasePath)
	}
	if cfg.API.Bind != "127.0.0.1:7788" {
		t.Fatalf("unexpected api bind: %q", cfg.API.Bind)
	}
	if cfg.LLM.MaxAttempts != 1 {
		t.Fatalf("expected single LLM attempt by default, got %d", cfg.LLM.MaxAttempts)
	}
	if cfg.Render.TimeoutSeconds != 300 || cfg.Render.DurationSeconds != 35 {
		t.Fatalf("unexpected render defaults: %+v", cfg.Render)
	}
	if cfg.Schedule.PublishMinutes != 10 || cfg.Schedule.AnalyticsAt != "02:00" {
		t.Fatalf("unexpected schedule defaults: %+v", cfg.Schedule)
	}
	if cfg.YouTubeConfigured() {
		t.Fatal("expected YouTube unconfigured without credentials")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.WorkDir, cfg.Storage.Root} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearCredentialEnv(t)
	configPath := filepath.Join(t.TempDir(), "orbix.toml")

	type payload struct {
		Schedule struct {
			Timezone       string `toml:"timezone"`
			PublishMinutes int    `toml:"publish_minutes"`
		} `toml:"schedule"`
		Storage struct {
			PublicBaseURL string `toml:"public_base_url"`
		} `toml:"storage"`
		LLM struct {
			APIKey string `toml:"api_key"`
		} `toml:"llm"`
	}
	custom := payload{}
	custom.Schedule.Timezone = "America/New_York"
	custom.Schedule.PublishMinutes = 15
	custom.Storage.PublicBaseURL = "https://cdn.example.com/"
	custom.LLM.APIKey = "file-key"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	t.Setenv("OPENROUTER_API_KEY", "env-key")
	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Schedule.PublishMinutes != 15 {
		t.Fatalf("expected publish interval 15, got %d", cfg.Schedule.PublishMinutes)
	}
	if cfg.Location().String() != "America/New_York" {
		t.Fatalf("unexpected location %q", cfg.Location())
	}
	if cfg.Storage.PublicBaseURL != "https://cdn.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Storage.PublicBaseURL)
	}
	if cfg.LLM.APIKey != "file-key" {
		t.Fatalf("file value should win over env fallback, got %q", cfg.LLM.APIKey)
	}
}

func TestEnvFallbacksFillCredentials(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("YOUTUBE_CLIENT_ID", "cid")
	t.Setenv("YOUTUBE_CLIENT_SECRET", "secret")
	t.Setenv("YOUTUBE_REFRESH_TOKEN", "refresh")
	t.Setenv("RUMBLE_ACCESS_TOKEN", "rumble")
	t.Setenv("ORBIX_API_TOKEN", "admin")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "sk-env" {
		t.Errorf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if !cfg.YouTubeConfigured() {
		t.Errorf("expected YouTube credentials from env")
	}
	if cfg.Rumble.AccessToken != "rumble" {
		t.Errorf("expected Rumble token from env, got %q", cfg.Rumble.AccessToken)
	}
	if cfg.API.Token != "admin" {
		t.Errorf("expected API token from env, got %q", cfg.API.Token)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.DataDir, "orbix") {
		t.Fatalf("expected data dir to contain orbix, got %q", cfg.Paths.DataDir)
	}
	if cfg.Brand.Name != "Orbix Network" {
		t.Fatalf("unexpected brand %q", cfg.Brand.Name)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"zero interval":      func(c *config.Config) { c.Schedule.RenderMinutes = 0 },
		"bad analytics time": func(c *config.Config) { c.Schedule.AnalyticsAt = "25:99" },
		"bad timezone":       func(c *config.Config) { c.Schedule.Timezone = "Mars/Olympus" },
		"partial youtube":    func(c *config.Config) { c.YouTube.ClientID = "only-id" },
		"relative public":    func(c *config.Config) { c.Storage.PublicBaseURL = "cdn/renders" },
		"zero render width":  func(c *config.Config) { c.Render.Width = 0 },
	}
	for name, mutate := range cases {
		cfg := config.Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestParseClock(t *testing.T) {
	hour, minute, err := config.ParseClock("02:30")
	if err != nil || hour != 2 || minute != 30 {
		t.Fatalf("unexpected parse: %d:%d err=%v", hour, minute, err)
	}
	if _, _, err := config.ParseClock("2am"); err == nil {
		t.Fatal("expected error for malformed clock")
	}
}
