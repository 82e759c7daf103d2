package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"orbix/internal/config"
	"orbix/internal/deps"
	"orbix/internal/render"
	"orbix/internal/services/llm"
	"orbix/internal/store"
)

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLM) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	llmCfg := llm.FromConfig(cfg)
	llmCfg.MaxAttempts = 1
	client := llm.NewClient(llmCfg)

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckFFmpeg verifies the render binary resolves.
func CheckFFmpeg(configured string) Result {
	status := deps.CheckFFmpeg(configured)
	if !status.Available {
		return Result{Name: status.Name, Detail: status.Detail}
	}
	return Result{Name: status.Name, Passed: true, Detail: status.Command}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckAssets counts the background files present. Missing backgrounds are
// not fatal: the renderer substitutes a solid colour.
func CheckAssets(assetsDir string) Result {
	const name = "Backgrounds"
	total := len(render.StillBackgrounds) + len(render.MotionBackgrounds)
	found := 0
	for _, sel := range allSelections() {
		if _, err := os.Stat(sel.AssetPath(assetsDir)); err == nil {
			found++
		}
	}
	detail := fmt.Sprintf("%d/%d present in %s", found, total, filepath.Join(assetsDir, "backgrounds"))
	if found < total {
		return Result{Name: name, Detail: detail + " (missing files render on a solid colour)", Optional: true}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

func allSelections() []render.Selection {
	selections := make([]render.Selection, 0, len(render.StillBackgrounds)+len(render.MotionBackgrounds))
	for _, id := range render.StillBackgrounds {
		selections = append(selections, render.Selection{BackgroundType: store.BackgroundStill, BackgroundID: id})
	}
	for _, id := range render.MotionBackgrounds {
		selections = append(selections, render.Selection{BackgroundType: store.BackgroundMotion, BackgroundID: id})
	}
	return selections
}

// CheckDiskSpace verifies at least minGiB are free on the filesystem that
// holds path. A zero minimum only reports the free space.
func CheckDiskSpace(name, path string, minGiB int) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	freeGiB := float64(free) / (1 << 30)
	detail := fmt.Sprintf("%.1f GiB free", freeGiB)
	if minGiB > 0 && free < uint64(minGiB)<<30 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (need %d GiB)", detail, minGiB)}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckFont verifies the configured drawtext font exists. No font means
// ffmpeg's default font is used.
func CheckFont(path string) Result {
	const name = "Overlay font"
	if path == "" {
		return Result{Name: name, Passed: true, Detail: "ffmpeg default", Optional: true}
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a readable file)", path)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}
