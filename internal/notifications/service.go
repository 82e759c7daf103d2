package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"orbix/internal/config"
)

const userAgent = "Orbix/1.0"

// Event identifies a notification type.
type Event string

const (
	EventPublished       Event = "published"
	EventRenderFailed    Event = "render_failed"
	EventDailyCapReached Event = "daily_cap_reached"
	EventError           Event = "error"
	EventTest            Event = "test"
)

// Payload carries event-specific values.
type Payload map[string]any

// Service defines the notification surface exposed to pipeline stages.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		brand:    strings.TrimSpace(cfg.Brand.Name),
		enabled: map[Event]bool{
			EventPublished:       cfg.Notifications.Published,
			EventRenderFailed:    cfg.Notifications.RenderFailed,
			EventDailyCapReached: cfg.Notifications.DailyCap,
			EventError:           cfg.Notifications.Errors,
			EventTest:            true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	brand    string
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	brand := n.brand
	if brand == "" {
		brand = "Orbix"
	}
	switch event {
	case EventPublished:
		title := payloadString(payload, "title")
		body := fmt.Sprintf("Published to %s: %s", fallback(payloadString(payload, "platform"), "YOUTUBE"), title)
		if url := payloadString(payload, "url"); url != "" {
			body += "\n" + url
		}
		return message{
			title: brand + " - Published",
			body:  body,
			tags:  []string{"orbix", "publish"},
		}, true
	case EventRenderFailed:
		return message{
			title:    brand + " - Render Failed",
			body:     fmt.Sprintf("Render %s failed: %s", payloadString(payload, "render_id"), fallback(payloadString(payload, "error"), "unknown error")),
			tags:     []string{"orbix", "render", "failed"},
			priority: "high",
		}, true
	case EventDailyCapReached:
		return message{
			title: brand + " - Daily Cap",
			body:  fmt.Sprintf("Daily publish cap of %s reached; remaining renders wait for tomorrow", fallback(payloadString(payload, "cap"), "?")),
			tags:  []string{"orbix", "publish", "cap"},
		}, true
	case EventError:
		label := fallback(payloadString(payload, "context"), "pipeline")
		return message{
			title:    brand + " - Error",
			body:     fmt.Sprintf("Error in %s: %s", label, fallback(payloadString(payload, "error"), "unknown error")),
			tags:     []string{"orbix", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title: brand + " - Test",
			body:  "Test notification from " + brand,
			tags:  []string{"orbix", "test"},
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func payloadString(p Payload, key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
