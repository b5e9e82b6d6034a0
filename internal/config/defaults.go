package config

const (
	defaultStorageDir     = "~/.local/share/clipminer"
	defaultOutputDir      = "~/clipminer/records"
	defaultLanguage       = "en"
	defaultCatalogBaseURL = "https://www.playphrase.me/api/v1"
	defaultMaxCandidates  = 100
	defaultMinDurationSec = 1
	defaultMaxDurationSec = 30
	defaultCatalogTimeout = 15

	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "google/gemini-3-flash-preview"
	defaultLLMReferer        = "https://github.com/clipminer/clipminer"
	defaultLLMTitle          = "Clipminer Relevance Scorer"
	defaultLLMTimeoutSeconds = 60

	defaultMinRelevance       = 0.6
	defaultMinFinalRelevance  = 0.6
	defaultMaxMappingsPerClip = 5

	defaultSpeechBaseURL        = "https://api.openai.com/v1"
	defaultSpeechModel          = "whisper-1"
	defaultSpeechTimeoutSeconds = 120

	defaultDownloadMaxBytes       = 5 * 1024 * 1024
	defaultDownloadTimeoutSeconds = 60

	defaultSinkMode           = "directory"
	defaultSinkSourceID       = "clipminer"
	defaultSinkTimeoutSeconds = 120

	defaultWordWorkers = 2

	defaultNotifyRequestTimeout = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StorageDir: defaultStorageDir,
			OutputDir:  defaultOutputDir,
		},
		Vocabulary: Vocabulary{
			Language: defaultLanguage,
		},
		Catalog: Catalog{
			BaseURL:        defaultCatalogBaseURL,
			MaxCandidates:  defaultMaxCandidates,
			MinDurationSec: defaultMinDurationSec,
			MaxDurationSec: defaultMaxDurationSec,
			TimeoutSeconds: defaultCatalogTimeout,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Scoring: Scoring{
			MinRelevance:       defaultMinRelevance,
			MinFinalRelevance:  defaultMinFinalRelevance,
			MaxMappingsPerClip: defaultMaxMappingsPerClip,
		},
		Speech: Speech{
			BaseURL:        defaultSpeechBaseURL,
			Model:          defaultSpeechModel,
			TimeoutSeconds: defaultSpeechTimeoutSeconds,
		},
		Download: Download{
			MaxBytes:       defaultDownloadMaxBytes,
			TimeoutSeconds: defaultDownloadTimeoutSeconds,
		},
		Sink: Sink{
			Mode:           defaultSinkMode,
			SourceID:       defaultSinkSourceID,
			TimeoutSeconds: defaultSinkTimeoutSeconds,
		},
		Workflow: Workflow{
			WordWorkers: defaultWordWorkers,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
