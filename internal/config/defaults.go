package config

import "orbix/internal/deps"

const (
	defaultDataDir          = "~/.local/share/orbix"
	defaultDatabaseName     = "orbix.db"
	defaultLogDir           = "~/.local/share/orbix/logs"
	defaultWorkDir          = "~/.local/share/orbix/work"
	defaultAssetsDir        = "~/.local/share/orbix/assets"
	defaultStorageRoot      = "~/.local/share/orbix/storage"
	defaultStorageBucket    = "renders"
	defaultAPIBind          = "127.0.0.1:7788"
	defaultLLMBaseURL       = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel         = "openai/gpt-4o-mini"
	defaultLLMReferer       = "https://orbix.network"
	defaultLLMTitle         = "Orbix Network"
	defaultLLMTimeout       = 60
	defaultRenderTimeout    = 300
	defaultRenderDuration   = 35
	defaultRenderWidth      = 1080
	defaultRenderHeight     = 1920
	defaultMinFreeGiB       = 2
	defaultYouTubeTokenURL  = "https://oauth2.googleapis.com/token"
	defaultYouTubeAPIBase   = "https://www.googleapis.com/youtube/v3"
	defaultYouTubeUpload    = "https://www.googleapis.com/upload/youtube/v3"
	defaultYouTubeChunkMiB  = 8
	defaultYouTubeTimeout   = 600
	defaultRumbleUploadURL  = "https://rumble.com/api/v0/upload"
	defaultRumbleTimeout    = 600
	defaultNotifyTimeout    = 10
	defaultAnalyticsAt      = "02:00"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
	defaultBrandName        = "Orbix Network"
	defaultBrandTagline     = "Tracking sudden power shifts before they go mainstream."
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			WorkDir:   defaultWorkDir,
			AssetsDir: defaultAssetsDir,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeout,
			MaxAttempts:    1,
		},
		Render: Render{
			FFmpegBinary:    deps.ResolveFFmpegPath(""),
			TimeoutSeconds:  defaultRenderTimeout,
			DurationSeconds: defaultRenderDuration,
			Width:           defaultRenderWidth,
			Height:          defaultRenderHeight,
			MinFreeGiB:      defaultMinFreeGiB,
		},
		Storage: Storage{
			Root:   defaultStorageRoot,
			Bucket: defaultStorageBucket,
		},
		YouTube: YouTube{
			TokenURL:       defaultYouTubeTokenURL,
			APIBaseURL:     defaultYouTubeAPIBase,
			UploadBaseURL:  defaultYouTubeUpload,
			ChunkSizeMiB:   defaultYouTubeChunkMiB,
			TimeoutSeconds: defaultYouTubeTimeout,
		},
		Rumble: Rumble{
			UploadURL:      defaultRumbleUploadURL,
			TimeoutSeconds: defaultRumbleTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Published:      true,
			RenderFailed:   true,
			DailyCap:       true,
			Errors:         true,
		},
		Schedule: Schedule{
			Timezone:               "Local",
			ScrapeMinutes:          5,
			ClassifyMinutes:        2,
			ScriptMinutes:          3,
			ReviewMinutes:          1,
			RenderAdmissionMinutes: 3,
			RenderMinutes:          5,
			PublishMinutes:         10,
			AnalyticsAt:            defaultAnalyticsAt,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Brand: Brand{
			Name:    defaultBrandName,
			Tagline: defaultBrandTagline,
		},
	}
}
