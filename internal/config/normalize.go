package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"orbix/internal/deps"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeLLM()
	c.normalizeRender()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeYouTube()
	c.normalizeRumble()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
	c.normalizeSchedule()
	c.normalizeLogging()
	c.Brand.Name = strings.TrimSpace(c.Brand.Name)
	if c.Brand.Name == "" {
		c.Brand.Name = defaultBrandName
	}
	c.Brand.Tagline = strings.TrimSpace(c.Brand.Tagline)
	return nil
}

func lookupEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		c.Paths.DatabasePath = filepath.Join(c.Paths.DataDir, defaultDatabaseName)
	}
	if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return fmt.Errorf("paths.database_path: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.AssetsDir) == "" {
		c.Paths.AssetsDir = defaultAssetsDir
	}
	if c.Paths.AssetsDir, err = expandPath(c.Paths.AssetsDir); err != nil {
		return fmt.Errorf("paths.assets_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		c.API.Token = lookupEnv("ORBIX_API_TOKEN")
	}
	origins := make([]string, 0, len(c.API.AllowedOrigins))
	for _, origin := range c.API.AllowedOrigins {
		if trimmed := strings.TrimRight(strings.TrimSpace(origin), "/"); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.API.AllowedOrigins = origins
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = lookupEnv("OPENROUTER_API_KEY", "OPENAI_API_KEY")
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeout
	}
	if c.LLM.MaxAttempts <= 0 {
		c.LLM.MaxAttempts = 1
	}
}

func (c *Config) normalizeRender() {
	c.Render.FFmpegBinary = deps.ResolveFFmpegPath(c.Render.FFmpegBinary)
	if c.Render.TimeoutSeconds <= 0 {
		c.Render.TimeoutSeconds = defaultRenderTimeout
	}
	if c.Render.DurationSeconds <= 0 {
		c.Render.DurationSeconds = defaultRenderDuration
	}
	if c.Render.Width <= 0 {
		c.Render.Width = defaultRenderWidth
	}
	if c.Render.Height <= 0 {
		c.Render.Height = defaultRenderHeight
	}
	c.Render.FontFile = strings.TrimSpace(c.Render.FontFile)
	if c.Render.MinFreeGiB < 0 {
		c.Render.MinFreeGiB = 0
	}
}

func (c *Config) normalizeStorage() error {
	var err error
	if strings.TrimSpace(c.Storage.Root) == "" {
		c.Storage.Root = defaultStorageRoot
	}
	if c.Storage.Root, err = expandPath(c.Storage.Root); err != nil {
		return fmt.Errorf("storage.root: %w", err)
	}
	c.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicBaseURL), "/")
	c.Storage.Bucket = strings.Trim(strings.TrimSpace(c.Storage.Bucket), "/")
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = defaultStorageBucket
	}
	return nil
}

func (c *Config) normalizeYouTube() {
	c.YouTube.ClientID = strings.TrimSpace(c.YouTube.ClientID)
	if c.YouTube.ClientID == "" {
		c.YouTube.ClientID = lookupEnv("YOUTUBE_CLIENT_ID")
	}
	c.YouTube.ClientSecret = strings.TrimSpace(c.YouTube.ClientSecret)
	if c.YouTube.ClientSecret == "" {
		c.YouTube.ClientSecret = lookupEnv("YOUTUBE_CLIENT_SECRET")
	}
	c.YouTube.RefreshToken = strings.TrimSpace(c.YouTube.RefreshToken)
	if c.YouTube.RefreshToken == "" {
		c.YouTube.RefreshToken = lookupEnv("YOUTUBE_REFRESH_TOKEN")
	}
	c.YouTube.TokenURL = strings.TrimSpace(c.YouTube.TokenURL)
	if c.YouTube.TokenURL == "" {
		c.YouTube.TokenURL = defaultYouTubeTokenURL
	}
	c.YouTube.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.YouTube.APIBaseURL), "/")
	if c.YouTube.APIBaseURL == "" {
		c.YouTube.APIBaseURL = defaultYouTubeAPIBase
	}
	c.YouTube.UploadBaseURL = strings.TrimRight(strings.TrimSpace(c.YouTube.UploadBaseURL), "/")
	if c.YouTube.UploadBaseURL == "" {
		c.YouTube.UploadBaseURL = defaultYouTubeUpload
	}
	if c.YouTube.ChunkSizeMiB <= 0 {
		c.YouTube.ChunkSizeMiB = defaultYouTubeChunkMiB
	}
	if c.YouTube.TimeoutSeconds <= 0 {
		c.YouTube.TimeoutSeconds = defaultYouTubeTimeout
	}
}

func (c *Config) normalizeRumble() {
	c.Rumble.AccessToken = strings.TrimSpace(c.Rumble.AccessToken)
	if c.Rumble.AccessToken == "" {
		c.Rumble.AccessToken = lookupEnv("RUMBLE_ACCESS_TOKEN")
	}
	c.Rumble.UploadURL = strings.TrimSpace(c.Rumble.UploadURL)
	if c.Rumble.UploadURL == "" {
		c.Rumble.UploadURL = defaultRumbleUploadURL
	}
	if c.Rumble.TimeoutSeconds <= 0 {
		c.Rumble.TimeoutSeconds = defaultRumbleTimeout
	}
}

func (c *Config) normalizeSchedule() {
	c.Schedule.Timezone = strings.TrimSpace(c.Schedule.Timezone)
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "Local"
	}
	c.Schedule.AnalyticsAt = strings.TrimSpace(c.Schedule.AnalyticsAt)
	if c.Schedule.AnalyticsAt == "" {
		c.Schedule.AnalyticsAt = defaultAnalyticsAt
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
