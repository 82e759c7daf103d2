// Package rumble uploads videos to Rumble as the optional secondary platform.
package rumble

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"orbix/internal/config"
	"orbix/internal/services"
)

// Video is one upload request.
type Video struct {
	Title       string
	Description string
	Visibility  string
	Filename    string

	Media io.ReaderAt
	Size  int64
}

// Client posts multipart uploads to the configured endpoint.
type Client struct {
	token      string
	endpoint   string
	httpClient *http.Client
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

// New constructs a client from the [rumble] config section.
func New(cfg config.Rumble, opts ...Option) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	c := &Client{
		token:      strings.TrimSpace(cfg.AccessToken),
		endpoint:   strings.TrimSpace(cfg.UploadURL),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an access token and endpoint are present.
func (c *Client) Configured() bool {
	return c != nil && c.token != "" && c.endpoint != ""
}

type uploadResponse struct {
	VideoID string `json:"video_id"`
	ID      string `json:"id"`
	URL     string `json:"url"`
	Error   string `json:"error"`
}

// Upload streams v as multipart/form-data and returns the platform id.
func (c *Client) Upload(ctx context.Context, v Video) (string, error) {
	if !c.Configured() {
		return "", services.Wrap(services.ErrConfiguration, "rumble", "upload", "access token required", nil)
	}
	if v.Media == nil || v.Size <= 0 {
		return "", services.Wrap(services.ErrValidation, "rumble", "upload", "media required", nil)
	}

	body, writer := io.Pipe()
	defer body.Close()
	form := multipart.NewWriter(writer)
	go func() {
		writer.CloseWithError(writeForm(form, c.token, v))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "rumble", "upload", "request failed", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 300 {
		marker := services.ErrExternalTool
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			marker = services.ErrTransient
		}
		return "", services.Wrap(marker, "rumble", "upload",
			fmt.Sprintf("rumble returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))), nil)
	}

	var payload uploadResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "rumble", "upload", "decode response", err)
	}
	if payload.Error != "" {
		return "", services.Wrap(services.ErrExternalTool, "rumble", "upload", payload.Error, nil)
	}
	for _, id := range []string{payload.VideoID, payload.ID, payload.URL} {
		if id = strings.TrimSpace(id); id != "" {
			return id, nil
		}
	}
	return "", services.Wrap(services.ErrExternalTool, "rumble", "upload", "response carried no video id", nil)
}

func writeForm(form *multipart.Writer, token string, v Video) error {
	fields := [][2]string{
		{"access_token", token},
		{"title", v.Title},
		{"description", v.Description},
		{"visibility", v.Visibility},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := form.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}

	name := v.Filename
	if name == "" {
		name = "video.mp4"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="video"; filename="%s"`, strings.ReplaceAll(name, `"`, "")))
	header.Set("Content-Type", "video/mp4")
	part, err := form.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, io.NewSectionReader(v.Media, 0, v.Size)); err != nil {
		return err
	}
	return form.Close()
}
