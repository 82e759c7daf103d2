package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"orbix/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "render", "ffmpeg", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"render", "ffmpeg", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestKindMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrValidation, "classify", "parse", "bad json", nil), "validation"},
		{services.Wrap(services.ErrConfiguration, "publish", "", "missing credentials", nil), "configuration"},
		{services.Wrap(services.ErrTimeout, "render", "ffmpeg", "", nil), "timeout"},
		{fmt.Errorf("outer: %w", services.ErrDuplicate), "duplicate"},
		{errors.New("plain"), "transient"},
	}
	for _, tc := range cases {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestReasonFlattensAndTruncates(t *testing.T) {
	err := errors.New("line one\nline   two")
	if got := services.Reason(err); got != "line one line two" {
		t.Fatalf("unexpected reason %q", got)
	}
	long := errors.New(strings.Repeat("x", 800))
	if got := services.Reason(long); len([]rune(got)) != 503 {
		t.Fatalf("expected truncated reason, got %d runes", len([]rune(got)))
	}
	if services.Reason(nil) != "" {
		t.Fatal("expected empty reason for nil error")
	}
}
