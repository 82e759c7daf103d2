package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"orbix/internal/config"
	"orbix/internal/services"
)

var scopes = []string{
	"https://www.googleapis.com/auth/youtube.upload",
	"https://www.googleapis.com/auth/youtube.readonly",
}

const (
	defaultMaxRetries = 5
	maxRetryDelay     = 30 * time.Second
)

// Client wraps the YouTube Data API.
type Client struct {
	cfg        config.YouTube
	base       *http.Client
	httpClient *http.Client
	chunkSize  int64
	maxRetries int
	retryDelay time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient replaces the transport used for token refresh and API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.base = client
		}
	}
}

// WithChunkSize overrides the upload chunk size in bytes.
func WithChunkSize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithRetry overrides how many times a chunk is retried and the base delay
// between attempts.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

// New constructs a client from the [youtube] config section.
func New(cfg config.YouTube, opts ...Option) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	c := &Client{
		cfg:        cfg,
		base:       &http.Client{Timeout: timeout},
		chunkSize:  int64(max(cfg.ChunkSizeMiB, 1)) << 20,
		maxRetries: defaultMaxRetries,
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL, AuthStyle: oauth2.AuthStyleInParams},
		Scopes:       scopes,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, c.base)
	source := oauthCfg.TokenSource(tokenCtx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	c.httpClient = oauth2.NewClient(tokenCtx, source)
	c.httpClient.Timeout = c.base.Timeout
	return c
}

// Configured reports whether OAuth credentials are present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.ClientID != "" && c.cfg.ClientSecret != "" && c.cfg.RefreshToken != ""
}

// WatchURL returns the public link of an uploaded Short.
func WatchURL(videoID string) string {
	return "https://youtube.com/shorts/" + url.PathEscape(videoID)
}

// Statistics are the public counters of a video.
type Statistics struct {
	Views    int64
	Likes    int64
	Comments int64
}

type videoListResponse struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// Statistics fetches the current lifetime counters of videoID. The Data API
// does not expose per-day values; callers store the snapshot under the day
// they collect for.
func (c *Client) Statistics(ctx context.Context, videoID string) (Statistics, error) {
	if !c.Configured() {
		return Statistics{}, services.Wrap(services.ErrConfiguration, "youtube", "statistics", "oauth credentials required", nil)
	}
	query := url.Values{"part": {"statistics"}, "id": {videoID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBaseURL+"/videos?"+query.Encode(), nil)
	if err != nil {
		return Statistics{}, fmt.Errorf("build statistics request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Statistics{}, requestError("statistics", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Statistics{}, statusError("statistics", resp)
	}

	var payload videoListResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Statistics{}, services.Wrap(services.ErrExternalTool, "youtube", "statistics", "decode response", err)
	}
	if len(payload.Items) == 0 {
		return Statistics{}, services.Wrap(services.ErrNotFound, "youtube", "statistics", "video "+videoID+" not found", nil)
	}
	stats := payload.Items[0].Statistics
	return Statistics{
		Views:    parseCount(stats.ViewCount),
		Likes:    parseCount(stats.LikeCount),
		Comments: parseCount(stats.CommentCount),
	}, nil
}

// parseCount reads the decimal strings the API uses for counters. Hidden
// counters are absent and read as zero.
func parseCount(v string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := fmt.Sprintf("youtube returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	marker := services.ErrExternalTool
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		marker = services.ErrTransient
	case resp.StatusCode == http.StatusUnauthorized:
		marker = services.ErrConfiguration
	case resp.StatusCode == http.StatusNotFound:
		marker = services.ErrNotFound
	}
	return services.Wrap(marker, "youtube", op, msg, nil)
}
