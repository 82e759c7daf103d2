package rumble_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"orbix/internal/config"
	"orbix/internal/services"
	"orbix/internal/services/rumble"
)

func TestUploadPostsMultipartForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.FormValue("access_token") != "tok" || r.FormValue("title") != "Hook | Tech" {
			t.Errorf("unexpected fields %v", r.MultipartForm.Value)
		}
		file, header, err := r.FormFile("video")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "fake-mp4" || header.Filename != "r1.mp4" {
			t.Errorf("unexpected file %q %q", header.Filename, data)
		}
		_, _ = io.WriteString(w, `{"video_id":"rmb-9"}`)
	}))
	defer server.Close()

	client := rumble.New(config.Rumble{AccessToken: "tok", UploadURL: server.URL})
	id, err := client.Upload(context.Background(), rumble.Video{
		Title:    "Hook | Tech",
		Filename: "r1.mp4",
		Media:    strings.NewReader("fake-mp4"),
		Size:     8,
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if id != "rmb-9" {
		t.Fatalf("id %q", id)
	}
}

func TestUploadClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		marker error
	}{
		{"server error", http.StatusBadGateway, "bad gateway", services.ErrTransient},
		{"rejected", http.StatusForbidden, "forbidden", services.ErrExternalTool},
		{"api error", http.StatusOK, `{"error":"quota exceeded"}`, services.ErrExternalTool},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.Copy(io.Discard, r.Body)
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer server.Close()
			client := rumble.New(config.Rumble{AccessToken: "tok", UploadURL: server.URL})
			_, err := client.Upload(context.Background(), rumble.Video{Media: strings.NewReader("x"), Size: 1})
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
		})
	}
}

func TestUploadRequiresToken(t *testing.T) {
	client := rumble.New(config.Rumble{UploadURL: "http://example.invalid"})
	if client.Configured() {
		t.Fatal("client without token must not be configured")
	}
	_, err := client.Upload(context.Background(), rumble.Video{Media: strings.NewReader("x"), Size: 1})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
