package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	DatabasePath string `toml:"database_path"`
	LogDir       string `toml:"log_dir"`
	WorkDir      string `toml:"work_dir"`
	AssetsDir    string `toml:"assets_dir"`
}

// API contains the admin HTTP API settings.
type API struct {
	Bind           string   `toml:"bind"`
	Token          string   `toml:"token"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// LLM contains the chat completion endpoint used by the classifier and the
// script writer.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxAttempts    int    `toml:"max_attempts"`
}

// Render contains video composition settings.
type Render struct {
	FFmpegBinary    string `toml:"ffmpeg_binary"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	DurationSeconds int    `toml:"duration_seconds"`
	Width           int    `toml:"width"`
	Height          int    `toml:"height"`
	FontFile        string `toml:"font_file"`
	MinFreeGiB      int    `toml:"min_free_gib"`
}

// Storage contains the artifact store settings.
type Storage struct {
	Root          string `toml:"root"`
	PublicBaseURL string `toml:"public_base_url"`
	Bucket        string `toml:"bucket"`
}

// YouTube contains OAuth and endpoint settings for the primary platform.
type YouTube struct {
	ClientID       string `toml:"client_id"`
	ClientSecret   string `toml:"client_secret"`
	RefreshToken   string `toml:"refresh_token"`
	TokenURL       string `toml:"token_url"`
	APIBaseURL     string `toml:"api_base_url"`
	UploadBaseURL  string `toml:"upload_base_url"`
	ChunkSizeMiB   int    `toml:"chunk_size_mib"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Rumble contains settings for the secondary platform.
type Rumble struct {
	AccessToken    string `toml:"access_token"`
	UploadURL      string `toml:"upload_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Published      bool   `toml:"published"`
	RenderFailed   bool   `toml:"render_failed"`
	DailyCap       bool   `toml:"daily_cap"`
	Errors         bool   `toml:"errors"`
}

// Schedule contains the job cadence of the daemon. Intervals are in minutes.
type Schedule struct {
	Timezone               string `toml:"timezone"`
	ScrapeMinutes          int    `toml:"scrape_minutes"`
	ClassifyMinutes        int    `toml:"classify_minutes"`
	ScriptMinutes          int    `toml:"script_minutes"`
	ReviewMinutes          int    `toml:"review_minutes"`
	RenderAdmissionMinutes int    `toml:"render_admission_minutes"`
	RenderMinutes          int    `toml:"render_minutes"`
	PublishMinutes         int    `toml:"publish_minutes"`
	AnalyticsAt            string `toml:"analytics_at"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Brand contains the channel identity used in published metadata.
type Brand struct {
	Name    string `toml:"name"`
	Tagline string `toml:"tagline"`
}

// Config encapsulates all configuration values for orbix.
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	LLM           LLM           `toml:"llm"`
	Render        Render        `toml:"render"`
	Storage       Storage       `toml:"storage"`
	YouTube       YouTube       `toml:"youtube"`
	Rumble        Rumble        `toml:"rumble"`
	Notifications Notifications `toml:"notifications"`
	Schedule      Schedule      `toml:"schedule"`
	Logging       Logging       `toml:"logging"`
	Brand         Brand         `toml:"brand"`

	location *time.Location
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/orbix/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("orbix.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.WorkDir, c.Storage.Root}
	if dbDir := filepath.Dir(c.Paths.DatabasePath); dbDir != "" {
		dirs = append(dirs, dbDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockDir returns the directory holding daemon and stage lock files.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.DataDir, "locks")
}

// PIDFile returns the path the daemon records its process id in.
func (c *Config) PIDFile() string {
	return filepath.Join(c.Paths.DataDir, "orbixd.pid")
}

// AdminURL returns the base URL clients use to reach the admin API.
func (c *Config) AdminURL() string {
	host := c.API.Bind
	if strings.HasPrefix(host, ":") {
		host = "127.0.0.1" + host
	}
	return "http://" + host
}

// Location returns the time zone used for calendar-day decisions.
func (c *Config) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	if loc, err := loadLocation(c.Schedule.Timezone); err == nil {
		return loc
	}
	return time.Local
}

// RenderTimeout returns the ffmpeg deadline.
func (c *Config) RenderTimeout() time.Duration {
	return time.Duration(c.Render.TimeoutSeconds) * time.Second
}

// YouTubeConfigured reports whether upload credentials are present.
func (c *Config) YouTubeConfigured() bool {
	return c.YouTube.ClientID != "" && c.YouTube.ClientSecret != "" && c.YouTube.RefreshToken != ""
}

func loadLocation(name string) (*time.Location, error) {
	switch strings.TrimSpace(name) {
	case "", "Local", "local":
		return time.Local, nil
	default:
		return time.LoadLocation(strings.TrimSpace(name))
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
