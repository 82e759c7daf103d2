package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"orbix/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a per-test temp directory.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.DatabasePath = filepath.Join(base, "data", "orbix.db")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.AssetsDir = filepath.Join(base, "assets")
	cfgVal.Storage.Root = filepath.Join(base, "storage")
	cfgVal.Storage.PublicBaseURL = "https://cdn.test"
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.Schedule.Timezone = "UTC"

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithLLMKey sets the LLM credentials on the test config.
func WithLLMKey(key, baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.APIKey = key
		if baseURL != "" {
			b.cfg.LLM.BaseURL = baseURL
		}
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. With no names an ffmpeg stub is written that
// creates its last argument as a small output file.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		script := "#!/bin/sh\nexit 0\n"
		if len(names) == 0 {
			names = []string{"ffmpeg"}
			script = FFmpegStubScript
		}
		binDir := StubBinary(b.t, b.baseDir, script, names...)
		b.cfg.Render.FFmpegBinary = filepath.Join(binDir, "ffmpeg")

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// FFmpegStubScript emulates a successful ffmpeg run by writing a few bytes
// to the final argument.
const FFmpegStubScript = `#!/bin/sh
for last; do :; done
printf 'fake-mp4' > "$last"
echo "frame=  840 fps=60 q=-1.0 Lsize=    4096kB time=00:00:35.00" >&2
exit 0
`

// StubBinary writes an executable script under baseDir/bin for every name
// and returns the directory.
func StubBinary(t testing.TB, baseDir, script string, names ...string) string {
	t.Helper()
	binDir := filepath.Join(baseDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	for _, name := range names {
		target := filepath.Join(binDir, name)
		if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
			t.Fatalf("write stub %s: %v", name, err)
		}
	}
	return binDir
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
