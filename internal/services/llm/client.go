package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"orbix/internal/config"
	"orbix/internal/services"
)

const (
	defaultHTTPTimeout    = 60 * time.Second
	defaultRetryBaseDelay = time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
)

// Config captures the endpoint and credentials.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	MaxAttempts    int
}

// FromConfig maps the [llm] config section.
func FromConfig(cfg config.LLM) Config {
	return Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
		MaxAttempts:    cfg.MaxAttempts,
	}
}

// Prompt is one JSON completion request.
type Prompt struct {
	System      string
	User        string
	Temperature float64
}

// Client talks to a chat completion endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client

	baseDelay time.Duration
	maxDelay  time.Duration
	sleeper   func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = baseDelay
		c.maxDelay = maxDelay
	}
}

// WithSleeper replaces retry sleeps, for tests.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a client. Blank fields fall back to defaults.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		baseDelay:  defaultRetryBaseDelay,
		maxDelay:   defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// CompleteJSON sends the prompt and returns the raw JSON text of the reply.
func (c *Client) CompleteJSON(ctx context.Context, prompt Prompt) (string, error) {
	system := strings.TrimSpace(prompt.System)
	user := strings.TrimSpace(prompt.User)
	if system == "" || user == "" {
		return "", services.Wrap(services.ErrValidation, "llm", "complete", "system and user prompts required", nil)
	}
	if !c.Configured() {
		return "", services.Wrap(services.ErrConfiguration, "llm", "complete", "api key required", nil)
	}
	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    prompt.Temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	content, err := c.completeWithRetry(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	return content, nil
}

// HealthCheck issues a minimal request to verify the key and model.
func (c *Client) HealthCheck(ctx context.Context) error {
	content, err := c.CompleteJSON(ctx, Prompt{
		System: "You must respond with JSON only.",
		User:   `Respond with {"ok":true}`,
	})
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeJSON(content, &parsed); err != nil {
		return services.Wrap(services.ErrValidation, "llm", "health", "parse reply", err)
	}
	if !parsed.OK {
		return services.Wrap(services.ErrExternalTool, "llm", "health", "unexpected reply", nil)
	}
	return nil
}

func classify(err error) error {
	var statusErr *httpStatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded) || isTimeout(err):
		return services.Wrap(services.ErrTimeout, "llm", "complete", "", err)
	case errors.Is(err, context.Canceled):
		return err
	case errors.As(err, &statusErr):
		if retryableStatus(statusErr.StatusCode) {
			return services.Wrap(services.ErrTransient, "llm", "complete", "", err)
		}
		return services.Wrap(services.ErrExternalTool, "llm", "complete", "", err)
	default:
		return services.Wrap(services.ErrTransient, "llm", "complete", "", err)
	}
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, snippet(e.Body))
}

type emptyContentError struct {
	FinishReason string
	Refusal      string
	Body         string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("empty content (finish_reason=%q, refusal=%q, response_snippet=%s)", e.FinishReason, e.Refusal, snippet(e.Body))
}
