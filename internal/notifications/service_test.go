package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"orbix/internal/config"
	"orbix/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventPublished, notifications.Payload{"title": "Example"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "published",
			event: notifications.EventPublished,
			payload: notifications.Payload{
				"title":    "Chip export ban reshapes supply | Tech/Business Power Shifts",
				"platform": "YOUTUBE",
				"url":      "https://youtu.be/abc123",
			},
			expectTitle:   "Orbix Network - Published",
			expectMessage: "Published to YOUTUBE: Chip export ban reshapes supply | Tech/Business Power Shifts\nhttps://youtu.be/abc123",
			expectTags:    "orbix,publish",
		},
		{
			name:  "render failed",
			event: notifications.EventRenderFailed,
			payload: notifications.Payload{
				"render_id": "r-1",
				"error":     errors.New("ffmpeg exited 1"),
			},
			expectTitle:    "Orbix Network - Render Failed",
			expectMessage:  "Render r-1 failed: ffmpeg exited 1",
			expectTags:     "orbix,render,failed",
			expectPriority: "high",
		},
		{
			name:          "daily cap",
			event:         notifications.EventDailyCapReached,
			payload:       notifications.Payload{"cap": 10},
			expectTitle:   "Orbix Network - Daily Cap",
			expectMessage: "Daily publish cap of 10 reached; remaining renders wait for tomorrow",
			expectTags:    "orbix,publish,cap",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "classification",
				"error":   "llm unavailable",
			},
			expectTitle:    "Orbix Network - Error",
			expectMessage:  "Error in classification: llm unavailable",
			expectTags:     "orbix,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title     string
				tags      string
				priority  string
				userAgent string
				body      string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				captured.userAgent = r.Header.Get("User-Agent")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
			if !strings.HasPrefix(captured.userAgent, "Orbix/") {
				t.Fatalf("unexpected user agent %q", captured.userAgent)
			}
		})
	}
}

func TestNtfyServiceHonoursEventToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for disabled event: %s", r.Header.Get("Title"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Published = false
	cfg.Notifications.DailyCap = false

	svc := notifications.NewService(&cfg)
	for _, event := range []notifications.Event{notifications.EventPublished, notifications.EventDailyCapReached, notifications.Event("unknown")} {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"value": "ignored"}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic locked", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
