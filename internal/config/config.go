package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// StorageDir holds the cache tree, downloaded media, state ledgers, and
	// the run lock. One pipeline instance per storage directory.
	StorageDir string `toml:"storage_dir"`
	// OutputDir is where the directory sink writes curation records.
	OutputDir string `toml:"output_dir"`
	// LogDir receives the run log file; empty means StorageDir/logs.
	LogDir string `toml:"log_dir"`
}

// Vocabulary selects where target words come from.
type Vocabulary struct {
	// WordsFile is a flat word list, one word per line, '#' comments allowed.
	WordsFile string `toml:"words_file"`
	// BundlePath is a SQLite vocabulary bundle queried for words that still
	// lack video coverage.
	BundlePath string `toml:"bundle_path"`
	// BundleName filters the bundle to a named word collection.
	BundleName string `toml:"bundle_name"`
	// Language is the learning language applied to words from either source
	// (ISO code or English name).
	Language string `toml:"language"`
}

// Catalog contains configuration for the clip catalog search API.
type Catalog struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	MaxCandidates  int    `toml:"max_candidates"`
	MinDurationSec int    `toml:"min_duration_seconds"`
	MaxDurationSec int    `toml:"max_duration_seconds"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LLM contains connection settings for the relevance-scoring model.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Scoring contains the gates applied to LLM word mappings.
type Scoring struct {
	// MinRelevance is the pre-download gate a mapping must clear.
	MinRelevance float64 `toml:"min_relevance"`
	// MinFinalRelevance is the post-download gate against the verified transcript.
	MinFinalRelevance float64 `toml:"min_final_relevance"`
	// MaxMappingsPerClip caps accepted mappings per clip, best scores first.
	MaxMappingsPerClip int `toml:"max_mappings_per_clip"`
}

// Speech contains configuration for the speech-to-text API.
type Speech struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Download contains limits for media acquisition.
type Download struct {
	// MaxBytes is the hard size ceiling; oversized downloads are deleted and
	// the clip is marked failed.
	MaxBytes       int64 `toml:"max_bytes"`
	TimeoutSeconds int   `toml:"timeout_seconds"`
}

// Sink selects and configures the curation sink.
type Sink struct {
	// Mode is "directory" or "upload".
	Mode string `toml:"mode"`
	// BackendURL is the ingestion backend base URL (upload mode).
	BackendURL string `toml:"backend_url"`
	// SourceID is the provenance identifier stamped on every record.
	SourceID       string `toml:"source_id"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workflow contains concurrency settings.
type Workflow struct {
	// WordWorkers bounds how many vocabulary words are processed concurrently.
	WordWorkers int `toml:"word_workers"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for clipminer.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Vocabulary    Vocabulary    `toml:"vocabulary"`
	Catalog       Catalog       `toml:"catalog"`
	LLM           LLM           `toml:"llm"`
	Scoring       Scoring       `toml:"scoring"`
	Speech        Speech        `toml:"speech"`
	Download      Download      `toml:"download"`
	Sink          Sink          `toml:"sink"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipminer/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipminer.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// EnsureDirectories creates the directories a pipeline run needs.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.StorageDir,
		c.CacheDir(),
		c.MediaDir(),
		c.Paths.LogDir,
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		dirs = append(dirs, c.Paths.OutputDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CacheDir returns the stage-namespaced cache tree root.
func (c *Config) CacheDir() string {
	return filepath.Join(c.Paths.StorageDir, "cache")
}

// MediaDir returns the directory holding downloaded clip media.
func (c *Config) MediaDir() string {
	return filepath.Join(c.Paths.StorageDir, "media")
}

// StateDir returns the directory holding the append-only state ledgers.
func (c *Config) StateDir() string {
	return filepath.Join(c.Paths.StorageDir, "state")
}

// LockPath returns the flock path enforcing single-instance execution per
// storage directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StorageDir, "clipminer.lock")
}

// FFmpegBinary returns the ffmpeg executable name used for audio extraction.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
