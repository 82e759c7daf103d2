package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSchedule(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateYouTube(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"llm.timeout_seconds":           c.LLM.TimeoutSeconds,
		"llm.max_attempts":              c.LLM.MaxAttempts,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"rumble.timeout_seconds":        c.Rumble.TimeoutSeconds,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if err := ensurePositiveMap(map[string]int{
		"schedule.scrape_minutes":           c.Schedule.ScrapeMinutes,
		"schedule.classify_minutes":         c.Schedule.ClassifyMinutes,
		"schedule.script_minutes":           c.Schedule.ScriptMinutes,
		"schedule.review_minutes":           c.Schedule.ReviewMinutes,
		"schedule.render_admission_minutes": c.Schedule.RenderAdmissionMinutes,
		"schedule.render_minutes":           c.Schedule.RenderMinutes,
		"schedule.publish_minutes":          c.Schedule.PublishMinutes,
	}); err != nil {
		return err
	}
	if _, _, err := ParseClock(c.Schedule.AnalyticsAt); err != nil {
		return fmt.Errorf("schedule.analytics_at: %w", err)
	}
	loc, err := loadLocation(c.Schedule.Timezone)
	if err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	c.location = loc
	return nil
}

func (c *Config) validateRender() error {
	return ensurePositiveMap(map[string]int{
		"render.timeout_seconds":  c.Render.TimeoutSeconds,
		"render.duration_seconds": c.Render.DurationSeconds,
		"render.width":            c.Render.Width,
		"render.height":           c.Render.Height,
	})
}

func (c *Config) validateStorage() error {
	if c.Storage.PublicBaseURL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Storage.PublicBaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("storage.public_base_url must be an absolute URL, got %q", c.Storage.PublicBaseURL)
	}
	return nil
}

func (c *Config) validateYouTube() error {
	set := 0
	for _, value := range []string{c.YouTube.ClientID, c.YouTube.ClientSecret, c.YouTube.RefreshToken} {
		if strings.TrimSpace(value) != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		return errors.New("youtube.client_id, youtube.client_secret and youtube.refresh_token must be set together")
	}
	if c.YouTube.ChunkSizeMiB <= 0 {
		return errors.New("youtube.chunk_size_mib must be positive")
	}
	return nil
}

// ParseClock parses an "HH:MM" wall-clock time.
func ParseClock(value string) (int, int, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", value)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
