package preflight

import (
	"context"

	"orbix/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Optional failures do not block any stage on their own.
	Optional bool
}

// RunAll executes every preflight check for the given config. The LLM check
// makes a live request and only runs when probeServices is set.
func RunAll(ctx context.Context, cfg *config.Config, probeServices bool) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckFFmpeg(cfg.Render.FFmpegBinary),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Storage root", cfg.Storage.Root),
		CheckAssets(cfg.Paths.AssetsDir),
		CheckDiskSpace("Work disk", cfg.Paths.WorkDir, cfg.Render.MinFreeGiB),
		CheckFont(cfg.Render.FontFile),
	}

	if probeServices {
		results = append(results, CheckLLM(ctx, "LLM", cfg.LLM))
	} else {
		results = append(results, CheckLLMFromConfig(cfg))
	}
	results = append(results, CheckYouTubeFromConfig(cfg), CheckRumbleFromConfig(cfg))
	return results
}

// Failed returns the non-optional results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}
