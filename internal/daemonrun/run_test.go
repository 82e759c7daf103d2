package daemonrun_test

import (
	"context"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"orbix/internal/daemonrun"
	"orbix/internal/logging"
	"orbix/internal/stage"
	"orbix/internal/testsupport"
)

func TestNewWorkflowRegistersEveryStage(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	st := testsupport.MustOpenStore(t, cfg)

	wf, err := daemonrun.NewWorkflow(cfg, st, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}
	if got := wf.Stages(); !slices.Equal(got, stage.Names) {
		t.Fatalf("stages %v, want %v", got, stage.Names)
	}
}

func TestBuildStagesRequiresFFmpeg(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Render.FFmpegBinary = ""
	st := testsupport.MustOpenStore(t, cfg)

	if _, _, err := daemonrun.BuildStages(cfg, st, logging.NewNop(), nil); err == nil {
		t.Fatal("expected error without an ffmpeg binary")
	}
}

func TestRunWritesPIDFileUntilCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Logging.Level = "error"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- daemonrun.Run(ctx, cfg, daemonrun.Options{}) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		data, err := os.ReadFile(cfg.PIDFile())
		if err == nil && strings.TrimSpace(string(data)) == strconv.Itoa(os.Getpid()) {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("pid file never written: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, err := os.Stat(cfg.PIDFile()); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, stat err=%v", err)
	}
}
