package ffmpeg_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"orbix/internal/services"
	"orbix/internal/services/ffmpeg"
	"orbix/internal/testsupport"
)

type stubExecutor struct {
	tail  string
	err   error
	write bool
	block bool
	args  [][]string
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string) (string, error) {
	s.args = append(s.args, append([]string(nil), args...))
	if s.block {
		<-ctx.Done()
		return s.tail, ctx.Err()
	}
	if s.write {
		if err := os.WriteFile(args[len(args)-1], []byte("fake-mp4"), 0o644); err != nil {
			return "", err
		}
	}
	return s.tail, s.err
}

func sampleComposition(template, bgType, bgPath string) ffmpeg.Composition {
	return ffmpeg.Composition{
		Template:        template,
		BackgroundType:  bgType,
		BackgroundPath:  bgPath,
		Hook:            "Chipmaker loses half its value overnight",
		WhatHappened:    "Shares fell 50% after export rules changed.",
		WhyItMatters:    "Supply chains for AI hardware just moved.",
		WhatHappensNext: "Rivals race to fill orders.",
		CTALine:         "Follow for the next shift",
		Category:        "Tech",
	}
}

func TestRenderWithStubbedBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	client, err := ffmpeg.New(cfg.Render)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	output := filepath.Join(cfg.Paths.WorkDir, "r1", "r1.mp4")
	out, err := client.Render(context.Background(), sampleComposition("A", ffmpeg.BackgroundStill, ""), output)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := string(testsupport.ReadFile(t, output)); got != "fake-mp4" {
		t.Fatalf("unexpected output %q", got)
	}
	if !out.Fallback {
		t.Fatal("expected colour fallback for missing background")
	}
	if !strings.Contains(out.Log, "time=00:00:35.00") {
		t.Fatalf("expected stderr tail in log, got %q", out.Log)
	}
}

func TestArgsUseBackgroundInputs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client, err := ffmpeg.New(cfg.Render)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	still := filepath.Join(cfg.Paths.AssetsDir, "bg_still_1.jpg")
	motion := filepath.Join(cfg.Paths.AssetsDir, "bg_motion_1.mp4")
	testsupport.WriteFile(t, still, 16)
	testsupport.WriteFile(t, motion, 16)

	tests := []struct {
		name   string
		comp   ffmpeg.Composition
		want   []string
		reject string
	}{
		{"still loops image", sampleComposition("A", ffmpeg.BackgroundStill, still), []string{"-loop", "1", "-i", still}, "lavfi"},
		{"motion loops clip", sampleComposition("B", ffmpeg.BackgroundMotion, motion), []string{"-stream_loop", "-1", "-i", motion}, "lavfi"},
		{"missing asset falls back", sampleComposition("C", ffmpeg.BackgroundStill, still+".missing"), []string{"-f", "lavfi", "-i", "color=c=0x1a1a1a:s=1080x1920:d=35"}, still},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			args, _ := client.Args(tc.comp, "/tmp/out.mp4")
			joined := strings.Join(args, " ")
			if !strings.Contains(joined, strings.Join(tc.want, " ")) {
				t.Fatalf("expected %v in %v", tc.want, args)
			}
			if strings.Contains(joined, tc.reject+" ") {
				t.Fatalf("did not expect %q in %v", tc.reject, args)
			}
			if args[len(args)-1] != "/tmp/out.mp4" {
				t.Fatalf("output must be last argument, got %v", args)
			}
			for _, flag := range []string{"libx264", "medium", "23"} {
				if !slices.Contains(args, flag) {
					t.Fatalf("missing encoder flag %q in %v", flag, args)
				}
			}
		})
	}
}

func TestTemplatesSelectOverlayText(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client, _ := ffmpeg.New(cfg.Render)

	filterFor := func(template string) string {
		args, _ := client.Args(sampleComposition(template, ffmpeg.BackgroundStill, ""), "out.mp4")
		idx := slices.Index(args, "-vf")
		if idx < 0 {
			t.Fatalf("no -vf in %v", args)
		}
		return args[idx+1]
	}

	a := filterFor("A")
	if !strings.Contains(a, "Chipmaker loses half") || !strings.Contains(a, "TECH") {
		t.Fatalf("template A should draw hook and category: %s", a)
	}
	b := filterFor("B")
	if !strings.Contains(b, `Shares fell 50%`) || strings.Contains(b, "Chipmaker") {
		t.Fatalf("template B should draw what happened: %s", b)
	}
	c := filterFor("C")
	if !strings.Contains(c, "Supply chains") {
		t.Fatalf("template C should draw why it matters: %s", c)
	}
	for _, f := range []string{a, b, c} {
		if !strings.Contains(f, "Follow for the next shift") {
			t.Fatalf("every template draws the call to action: %s", f)
		}
		if !strings.HasPrefix(f, "scale=1080:1920") {
			t.Fatalf("filter must scale to frame first: %s", f)
		}
	}
}

func TestOverlayTextIsEscaped(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client, _ := ffmpeg.New(cfg.Render)
	comp := sampleComposition("A", ffmpeg.BackgroundStill, "")
	comp.Hook = "It's 3:00, [now]"

	args, _ := client.Args(comp, "out.mp4")
	filter := args[slices.Index(args, "-vf")+1]
	if !strings.Contains(filter, `It\\\'s 3\\:00\, \[now\]`) {
		t.Fatalf("unexpected escaping: %s", filter)
	}
}

func TestRenderReportsToolFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	exec := &stubExecutor{tail: "frame=1\nInvalid data found when processing input", err: errors.New("exit status 1")}
	client, _ := ffmpeg.New(cfg.Render, ffmpeg.WithExecutor(exec))

	out, err := client.Render(context.Background(), sampleComposition("A", "", ""), filepath.Join(t.TempDir(), "x.mp4"))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("expected last stderr line in error, got %v", err)
	}
	if !strings.Contains(out.Log, "frame=1") {
		t.Fatalf("expected log tail on failure, got %q", out.Log)
	}
}

func TestRenderTimesOut(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Render.TimeoutSeconds = 1
	client, _ := ffmpeg.New(cfg.Render, ffmpeg.WithExecutor(&stubExecutor{block: true}))

	_, err := client.Render(context.Background(), sampleComposition("A", "", ""), filepath.Join(t.TempDir(), "x.mp4"))
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestRenderRequiresOutputFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client, _ := ffmpeg.New(cfg.Render, ffmpeg.WithExecutor(&stubExecutor{}))

	_, err := client.Render(context.Background(), sampleComposition("A", "", ""), filepath.Join(t.TempDir(), "x.mp4"))
	if err == nil || !strings.Contains(err.Error(), "no output file") {
		t.Fatalf("expected missing output error, got %v", err)
	}
}

func TestNewRequiresBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Render.FFmpegBinary = " "
	if _, err := ffmpeg.New(cfg.Render); err == nil {
		t.Fatal("expected error for empty binary")
	}
}

func TestArgsUseScriptDuration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client, err := ffmpeg.New(cfg.Render)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tests := []struct {
		name    string
		seconds int
		want    string
	}{
		{"script target", 42, "42"},
		{"config default", 0, "35"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			comp := sampleComposition("A", ffmpeg.BackgroundStill, "")
			comp.DurationSeconds = tc.seconds
			args, _ := client.Args(comp, "out.mp4")
			idx := slices.Index(args, "-t")
			if idx < 0 || args[idx+1] != tc.want {
				t.Fatalf("expected -t %s in %v", tc.want, args)
			}
			if !slices.Contains(args, "color=c=0x1a1a1a:s=1080x1920:d="+tc.want) {
				t.Fatalf("fallback source should last %ss: %v", tc.want, args)
			}
		})
	}
}
