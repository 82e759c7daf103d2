package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"orbix/internal/config"
	"orbix/internal/services"
)

// Templates and background kinds understood by the composer.
const (
	TemplateA = "A"
	TemplateB = "B"
	TemplateC = "C"

	BackgroundStill  = "STILL"
	BackgroundMotion = "MOTION"
)

const (
	fallbackColour = "0x1a1a1a"
	logTailBytes   = 8 << 10
)

// Composition is everything one render needs.
type Composition struct {
	Template       string
	BackgroundType string
	// BackgroundPath may point at a missing file; a solid colour is used then.
	BackgroundPath string

	Hook            string
	WhatHappened    string
	WhyItMatters    string
	WhatHappensNext string
	CTALine         string
	Category        string

	// DurationSeconds is the clip length; zero uses render.duration_seconds.
	DurationSeconds int
}

// Output describes a finished (or failed) ffmpeg run.
type Output struct {
	Path     string
	Log      string
	Elapsed  time.Duration
	Fallback bool
}

// Executor abstracts command execution for testability. It returns the tail
// of the command's stderr.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) (string, error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps ffmpeg invocations.
type Client struct {
	binary   string
	timeout  time.Duration
	duration int
	width    int
	height   int
	fontFile string
	exec     Executor
}

// New constructs an ffmpeg client from the render configuration.
func New(cfg config.Render, opts ...Option) (*Client, error) {
	binary := strings.TrimSpace(cfg.FFmpegBinary)
	if binary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	client := &Client{
		binary:   binary,
		timeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
		duration: cfg.DurationSeconds,
		width:    cfg.Width,
		height:   cfg.Height,
		fontFile: strings.TrimSpace(cfg.FontFile),
		exec:     commandExecutor{},
	}
	if client.duration <= 0 {
		client.duration = 35
	}
	if client.width <= 0 || client.height <= 0 {
		client.width, client.height = 1080, 1920
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Binary returns the configured ffmpeg executable.
func (c *Client) Binary() string { return c.binary }

// Render composes comp into output. The returned Output carries the ffmpeg
// log tail even when err is non-nil.
func (c *Client) Render(ctx context.Context, comp Composition, output string) (Output, error) {
	out := Output{Path: output}
	if strings.TrimSpace(output) == "" {
		return out, services.Wrap(services.ErrValidation, "render", "compose", "output path required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return out, services.Wrap(services.ErrConfiguration, "render", "prepare output", "create work directory", err)
	}
	_ = os.Remove(output)

	args, fallback := c.Args(comp, output)
	out.Fallback = fallback

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	started := time.Now()
	tail, err := c.exec.Run(runCtx, c.binary, args)
	out.Elapsed = time.Since(started)
	out.Log = tail
	if err != nil {
		if ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return out, services.Wrap(services.ErrTimeout, "render", "ffmpeg",
				fmt.Sprintf("ffmpeg exceeded %s", c.timeout), err)
		}
		return out, services.Wrap(services.ErrExternalTool, "render", "ffmpeg", lastLine(tail), err)
	}

	info, err := os.Stat(output)
	if err != nil || info.Size() == 0 {
		return out, services.Wrap(services.ErrExternalTool, "render", "ffmpeg", "ffmpeg produced no output file", err)
	}
	return out, nil
}

// Args builds the ffmpeg argument list for comp. The second return reports
// whether the solid-colour fallback replaced a missing background.
func (c *Client) Args(comp Composition, output string) ([]string, bool) {
	seconds := c.duration
	if comp.DurationSeconds > 0 {
		seconds = comp.DurationSeconds
	}
	duration := strconv.Itoa(seconds)
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-stats"}

	fallback := !fileExists(comp.BackgroundPath)
	switch {
	case fallback:
		args = append(args, "-f", "lavfi", "-i",
			fmt.Sprintf("color=c=%s:s=%dx%d:d=%s", fallbackColour, c.width, c.height, duration))
	case comp.BackgroundType == BackgroundMotion:
		args = append(args, "-stream_loop", "-1", "-i", comp.BackgroundPath)
	default:
		args = append(args, "-loop", "1", "-i", comp.BackgroundPath)
	}

	args = append(args,
		"-vf", c.filter(comp),
		"-t", duration,
		"-an",
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		output,
	)
	return args, fallback
}

func fileExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func lastLine(log string) string {
	log = strings.TrimSpace(log)
	if idx := strings.LastIndexByte(log, '\n'); idx >= 0 {
		log = log[idx+1:]
	}
	if log == "" {
		return "ffmpeg exited with an error"
	}
	return log
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stderr := &tailBuffer{limit: logTailBytes}
	cmd.Stderr = stderr
	cmd.WaitDelay = 5 * time.Second
	if err := cmd.Run(); err != nil {
		return stderr.String(), fmt.Errorf("run %s: %w", filepath.Base(binary), err)
	}
	return stderr.String(), nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	// ffmpeg -stats separates progress updates with carriage returns.
	return strings.TrimSpace(strings.ReplaceAll(string(b.buf), "\r", "\n"))
}
