package preflight

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"orbix/internal/render"
	"orbix/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckDiskSpace("disk", dir, 0); !result.Passed {
		t.Fatalf("expected pass with no minimum, got: %s", result.Detail)
	}
	if result := CheckDiskSpace("disk", dir, 1<<20); result.Passed {
		t.Fatalf("expected failure for an exabyte minimum, got: %s", result.Detail)
	}
	if result := CheckDiskSpace("disk", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckAssetsCountsBackgrounds(t *testing.T) {
	assets := t.TempDir()
	result := CheckAssets(assets)
	if result.Passed || !result.Optional {
		t.Fatalf("expected optional failure for empty assets, got %+v", result)
	}

	for _, sel := range allSelections() {
		testsupport.WriteFile(t, sel.AssetPath(assets), 1)
	}
	result = CheckAssets(assets)
	if !result.Passed {
		t.Fatalf("expected pass with every background present, got: %s", result.Detail)
	}
	want := len(render.StillBackgrounds) + len(render.MotionBackgrounds)
	if len(allSelections()) != want {
		t.Fatalf("expected %d selections, got %d", want, len(allSelections()))
	}
}

func TestCheckFont(t *testing.T) {
	if result := CheckFont(""); !result.Passed {
		t.Fatal("expected default font to pass")
	}
	if result := CheckFont(filepath.Join(t.TempDir(), "missing.ttf")); result.Passed {
		t.Fatal("expected failure for missing font")
	}
}

func TestCheckLLM_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithLLMKey("good-key", srv.URL))
	result := CheckLLM(context.Background(), "LLM", cfg.LLM)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}

	cfg.LLM.APIKey = "bad-key"
	if result := CheckLLM(context.Background(), "LLM", cfg.LLM); result.Passed {
		t.Fatal("expected failure for bad key")
	}
}

func TestCheckLLM_MissingKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	result := CheckLLM(context.Background(), "LLM", cfg.LLM)
	if result.Passed || result.Detail != "API key missing" {
		t.Fatalf("expected missing key failure, got %+v", result)
	}
}

func TestConfigStatusChecks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if CheckYouTubeFromConfig(cfg).Passed {
		t.Fatal("expected YouTube to report missing credentials")
	}
	if CheckLLMFromConfig(cfg).Passed {
		t.Fatal("expected LLM to report missing key")
	}
	if r := CheckRumbleFromConfig(cfg); r.Passed || !r.Optional {
		t.Fatalf("expected optional rumble failure, got %+v", r)
	}

	cfg.YouTube.ClientID = "id"
	cfg.YouTube.ClientSecret = "secret"
	cfg.YouTube.RefreshToken = "refresh"
	cfg.LLM.APIKey = "key"
	if !CheckYouTubeFromConfig(cfg).Passed || !CheckLLMFromConfig(cfg).Passed {
		t.Fatal("expected configured services to pass")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, false); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReadyInstall(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(), testsupport.WithLLMKey("key", ""))
	cfg.YouTube.ClientID = "id"
	cfg.YouTube.ClientSecret = "secret"
	cfg.YouTube.RefreshToken = "refresh"
	cfg.Render.MinFreeGiB = 0
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg, false)
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
	var sawAssets bool
	for _, r := range results {
		if r.Name == "Backgrounds" {
			sawAssets = true
		}
	}
	if !sawAssets {
		t.Fatal("expected background check in results")
	}
}

func TestRunAll_ReportsMissingDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	results := RunAll(context.Background(), cfg, false)
	failed := Failed(results)
	names := map[string]bool{}
	for _, r := range failed {
		names[r.Name] = true
	}
	for _, want := range []string{"Data directory", "Work directory", "Storage root", "LLM", "YouTube"} {
		if !names[want] {
			t.Errorf("expected %q to fail, failures=%+v", want, failed)
		}
	}
	if names["Rumble"] || names["Backgrounds"] {
		t.Fatalf("optional checks must not count as failures: %+v", failed)
	}
}
