// Package daemonrun hosts the orbix daemon runtime: logger setup, stage
// wiring, and the foreground loop shared by orbixd and `orbix daemon`.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"orbix/internal/analytics"
	"orbix/internal/classify"
	"orbix/internal/config"
	"orbix/internal/daemon"
	"orbix/internal/deps"
	"orbix/internal/feeds"
	"orbix/internal/ingest"
	"orbix/internal/logging"
	"orbix/internal/notifications"
	"orbix/internal/objectstore"
	"orbix/internal/publish"
	"orbix/internal/render"
	"orbix/internal/review"
	"orbix/internal/scripting"
	"orbix/internal/services/ffmpeg"
	"orbix/internal/services/llm"
	"orbix/internal/services/rumble"
	"orbix/internal/services/youtube"
	"orbix/internal/settings"
	"orbix/internal/store"
	"orbix/internal/workflow"
)

const (
	feedTimeout   = 30 * time.Second
	classifyBatch = 50
	scriptBatch   = 20
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the orbix daemon and blocks until ctx is cancelled or the
// process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	logger, err := NewLogger(cfg, opts.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	removed := logging.PruneOlderThan(logger, time.Now(), cfg.Logging.RetentionDays,
		logging.RetentionTarget{
			Dir:     cfg.Paths.LogDir,
			Pattern: "*.log*",
			Exclude: []string{filepath.Join(cfg.Paths.LogDir, logging.LogFileName)},
		},
		logging.RetentionTarget{Dir: cfg.Paths.WorkDir, Pattern: "*.mp4"},
	)
	if removed > 0 {
		logger.Info("pruned old files", logging.Int("removed", removed))
	}

	pidPath := cfg.PIDFile()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}
	if err := settings.Seed(signalCtx, st); err != nil {
		st.Close()
		return fmt.Errorf("seed settings: %w", err)
	}

	notifier := notifications.NewService(cfg)
	wf, err := NewWorkflow(cfg, st, logger, notifier)
	if err != nil {
		st.Close()
		return err
	}

	d, err := daemon.New(cfg, st, logger, wf)
	if err != nil {
		st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check the api bind address and that no other daemon holds the lock"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("orbix daemon shutting down")
	return nil
}

// NewLogger builds the daemon logger, letting level override the config.
func NewLogger(cfg *config.Config, level string) (*slog.Logger, error) {
	if strings.TrimSpace(level) == "" {
		return logging.NewFromConfig(cfg)
	}
	copyCfg := *cfg
	copyCfg.Logging.Level = level
	return logging.NewFromConfig(&copyCfg)
}

// NewWorkflow wires every stage and returns a scheduler ready to start.
func NewWorkflow(cfg *config.Config, st *store.Store, logger *slog.Logger, notifier notifications.Service) (*workflow.Manager, error) {
	set, renderStage, err := BuildStages(cfg, st, logger, notifier)
	if err != nil {
		return nil, err
	}
	wf := workflow.NewManager(cfg, st, logger, notifier,
		workflow.WithRecoverers(renderStage),
		workflow.WithPreflight(true),
	)
	wf.ConfigureStages(set)
	return wf, nil
}

// BuildStages constructs every stage against its real collaborators. The
// render stage is returned separately so callers can recover stuck jobs.
func BuildStages(cfg *config.Config, st *store.Store, logger *slog.Logger, notifier notifications.Service) (workflow.StageSet, *render.Stage, error) {
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	artifacts := objectstore.FromConfig(cfg)
	llmClient := llm.NewClient(llm.FromConfig(cfg.LLM))
	ytClient := youtube.New(cfg.YouTube)

	renderer, err := ffmpeg.New(cfg.Render)
	if err != nil {
		return workflow.StageSet{}, nil, fmt.Errorf("init ffmpeg: %w", err)
	}
	renderStage := render.New(cfg, st, renderer, artifacts, notifier, logger)

	set := workflow.StageSet{
		Ingestion:       ingest.New(st, feeds.NewRegistry(&http.Client{Timeout: feedTimeout}), logger),
		Classification:  classify.New(st, classify.NewLLMClassifier(llmClient), logger, classifyBatch),
		Scripting:       scripting.New(st, scripting.NewLLMWriter(llmClient), logger, scriptBatch),
		Review:          review.New(st, logger, time.Now),
		RenderAdmission: render.NewAdmission(st, logger),
		Render:          renderStage,
		Publish: publish.New(cfg, st, artifacts, publish.YouTube(ytClient), notifier, logger,
			publish.WithSecondary(publish.Rumble(rumble.New(cfg.Rumble))),
		),
		Analytics: analytics.New(cfg, st, analytics.YouTube(ytClient), logger, time.Now),
	}
	return set, renderStage, nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	ffmpegStatus := deps.CheckFFmpeg(cfg.Render.FFmpegBinary)
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("llm_key_present", strings.TrimSpace(cfg.LLM.APIKey) != ""),
		logging.String("llm_model", cfg.LLM.Model),
		logging.Bool("ffmpeg_available", ffmpegStatus.Available),
		logging.String("ffmpeg_binary", ffmpegStatus.Command),
		logging.Bool("youtube_configured", cfg.YouTubeConfigured()),
		logging.Bool("rumble_token_present", strings.TrimSpace(cfg.Rumble.AccessToken) != ""),
		logging.String("timezone", cfg.Location().String()),
	)
}
