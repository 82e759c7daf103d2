package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"orbix/internal/services"
)

// Video is one upload request.
type Video struct {
	Title       string
	Description string
	Tags        []string
	CategoryID  string
	Privacy     string

	Media io.ReaderAt
	Size  int64
}

type videoResource struct {
	Snippet struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Tags        []string `json:"tags,omitempty"`
		CategoryID  string   `json:"categoryId,omitempty"`
	} `json:"snippet"`
	Status struct {
		PrivacyStatus           string `json:"privacyStatus"`
		SelfDeclaredMadeForKids bool   `json:"selfDeclaredMadeForKids"`
	} `json:"status"`
}

// Upload sends v through a resumable session and returns the new video id.
func (c *Client) Upload(ctx context.Context, v Video) (string, error) {
	if !c.Configured() {
		return "", services.Wrap(services.ErrConfiguration, "youtube", "upload", "oauth credentials required", nil)
	}
	if v.Media == nil || v.Size <= 0 {
		return "", services.Wrap(services.ErrValidation, "youtube", "upload", "media required", nil)
	}
	session, err := c.startSession(ctx, v)
	if err != nil {
		return "", err
	}
	return c.sendChunks(ctx, session, v)
}

func (c *Client) startSession(ctx context.Context, v Video) (string, error) {
	var resource videoResource
	resource.Snippet.Title = v.Title
	resource.Snippet.Description = v.Description
	resource.Snippet.Tags = v.Tags
	resource.Snippet.CategoryID = v.CategoryID
	resource.Status.PrivacyStatus = v.Privacy
	if resource.Status.PrivacyStatus == "" {
		resource.Status.PrivacyStatus = "public"
	}
	body, err := json.Marshal(resource)
	if err != nil {
		return "", fmt.Errorf("encode video metadata: %w", err)
	}

	query := url.Values{"uploadType": {"resumable"}, "part": {"snippet,status"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.UploadBaseURL+"/videos?"+query.Encode(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Type", "video/mp4")
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(v.Size, 10))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", requestError("start upload", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", statusError("start upload", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	location := resp.Header.Get("Location")
	if location == "" {
		return "", services.Wrap(services.ErrExternalTool, "youtube", "start upload", "no session location returned", nil)
	}
	return location, nil
}

type uploadResult struct {
	ID string `json:"id"`
}

func (c *Client) sendChunks(ctx context.Context, session string, v Video) (string, error) {
	var (
		offset   int64
		failures int
	)
	for {
		end := min(offset+c.chunkSize, v.Size)
		chunk := io.NewSectionReader(v.Media, offset, end-offset)
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, session, chunk)
		if err != nil {
			return "", fmt.Errorf("build chunk request: %w", err)
		}
		req.ContentLength = end - offset
		req.Header.Set("Content-Type", "video/mp4")
		req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, end-1, v.Size))

		resp, err := c.httpClient.Do(req)
		if err == nil {
			next, id, done, rerr := c.handleChunkResponse(resp)
			switch {
			case done:
				return id, nil
			case rerr == nil:
				offset, failures = next, 0
				continue
			case !errors.Is(rerr, services.ErrTransient):
				return "", rerr
			}
			err = rerr
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		failures++
		if failures > c.maxRetries {
			return "", services.Wrap(services.ErrTransient, "youtube", "upload",
				fmt.Sprintf("giving up after %d retries at byte %d", c.maxRetries, offset), err)
		}
		if err := c.wait(ctx, failures); err != nil {
			return "", err
		}
		next, id, done, qerr := c.queryOffset(ctx, session, v.Size)
		if done {
			return id, nil
		}
		if qerr == nil {
			offset = next
		}
	}
}

// handleChunkResponse interprets the reply to a chunk PUT. A 308 yields the
// next offset; 200/201 completes the upload.
func (c *Client) handleChunkResponse(resp *http.Response) (int64, string, bool, error) {
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var result uploadResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return 0, "", false, services.Wrap(services.ErrExternalTool, "youtube", "upload", "decode upload result", err)
		}
		if result.ID == "" {
			return 0, "", false, services.Wrap(services.ErrExternalTool, "youtube", "upload", "upload finished without a video id", nil)
		}
		return 0, result.ID, true, nil
	case resp.StatusCode == http.StatusPermanentRedirect:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nextOffset(resp.Header.Get("Range")), "", false, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return 0, "", false, services.Wrap(services.ErrExternalTool, "youtube", "upload", "upload session expired", nil)
	default:
		return 0, "", false, statusError("upload", resp)
	}
}

// queryOffset asks the session how many bytes it holds.
func (c *Client) queryOffset(ctx context.Context, session string, size int64) (int64, string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, session, http.NoBody)
	if err != nil {
		return 0, "", false, err
	}
	req.ContentLength = 0
	req.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", false, requestError("upload status", err)
	}
	return c.handleChunkResponse(resp)
}

// nextOffset parses a "bytes=0-N" Range header. No header means nothing was
// persisted.
func nextOffset(header string) int64 {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	_, last, ok := strings.Cut(strings.TrimPrefix(header, "bytes="), "-")
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(last), 10, 64)
	if err != nil {
		return 0
	}
	return n + 1
}

func (c *Client) wait(ctx context.Context, attempt int) error {
	if c.retryDelay <= 0 {
		return nil
	}
	delay := c.retryDelay << (attempt - 1)
	if delay > maxRetryDelay || delay <= 0 {
		delay = maxRetryDelay
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func requestError(op string, err error) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		return services.Wrap(services.ErrConfiguration, "youtube", op, "refresh token rejected", err)
	}
	return services.Wrap(services.ErrTransient, "youtube", op, "request failed", err)
}
