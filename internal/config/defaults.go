package config

const (
	defaultConfigPath          = "~/.config/subforge/config.toml"
	defaultDataDir             = "~/.local/share/subforge"
	defaultExportDir           = "~/.local/share/subforge/exports"
	defaultLogDir              = "~/.local/share/subforge/logs"
	defaultAPIBind             = "127.0.0.1:7488"
	defaultGeminiBaseURL       = "https://generativelanguage.googleapis.com"
	defaultGeminiModel         = "gemini-2.5-pro"
	defaultGeminiInitialModel  = "gemini-2.5-flash"
	defaultGeminiAnalysisModel = "gemini-2.5-flash"
	defaultGeminiTimeout       = 600
	defaultGeminiRetryAttempts = 3
	defaultRequestsPerMinute   = 10
	defaultFilePollAttempts    = 30
	defaultFilePollIntervalMS  = 1000
	defaultMaxCharsPerSubtitle = 42
	defaultSpeakerDetection    = false
	defaultRemoveFillerWords   = true
	defaultAdvancedProcessing  = false
	defaultFFprobeBinary       = "ffprobe"
	defaultNtfyTimeout         = 10
	defaultNotifyOnFailure     = true
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"

	// GeminiAPIKeyEnv is the environment variable consulted when gemini.api_key is empty.
	GeminiAPIKeyEnv = "GEMINI_API_KEY"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			ExportDir: defaultExportDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Gemini: Gemini{
			BaseURL:            defaultGeminiBaseURL,
			Model:              defaultGeminiModel,
			InitialModel:       defaultGeminiInitialModel,
			AnalysisModel:      defaultGeminiAnalysisModel,
			TimeoutSeconds:     defaultGeminiTimeout,
			RetryAttempts:      defaultGeminiRetryAttempts,
			RequestsPerMinute:  defaultRequestsPerMinute,
			FilePollAttempts:   defaultFilePollAttempts,
			FilePollIntervalMS: defaultFilePollIntervalMS,
		},
		Subtitles: Subtitles{
			MaxCharsPerSubtitle:      defaultMaxCharsPerSubtitle,
			EnableSpeakerDetection:   defaultSpeakerDetection,
			RemoveFillerWords:        defaultRemoveFillerWords,
			EnableAdvancedProcessing: defaultAdvancedProcessing,
		},
		Media: Media{
			FFprobeBinary: defaultFFprobeBinary,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeout,
			NotifyOnFailure:       defaultNotifyOnFailure,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
