package deps

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultFFmpeg is the binary name used when none is configured.
const DefaultFFmpeg = "ffmpeg"

// ResolveFFmpegPath returns the configured ffmpeg binary, falling back to
// the FFMPEG_BINARY environment variable and then to PATH lookup by name.
// Paths with a leading ~ are expanded against the home directory.
func ResolveFFmpegPath(configured string) string {
	candidate := strings.TrimSpace(configured)
	if candidate == "" {
		candidate = strings.TrimSpace(os.Getenv("FFMPEG_BINARY"))
	}
	if candidate == "" {
		return DefaultFFmpeg
	}
	if strings.HasPrefix(candidate, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			candidate = filepath.Join(home, candidate[2:])
		}
	}
	return candidate
}

// CheckFFmpeg reports whether the render binary can be executed.
func CheckFFmpeg(configured string) Status {
	return check(Requirement{
		Name:        "FFmpeg",
		Command:     ResolveFFmpegPath(configured),
		Description: "Required for rendering",
	})
}
