package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable. Failures here abort the run
// before any word is processed.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateVocabulary(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateScoring(); err != nil {
		return err
	}
	if err := c.validateSpeech(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateSink(); err != nil {
		return err
	}
	return c.validateWorkflow()
}

func (c *Config) validatePaths() error {
	if c.Paths.StorageDir == "" {
		return errors.New("paths.storage_dir must be set")
	}
	return nil
}

func (c *Config) validateVocabulary() error {
	if c.Vocabulary.WordsFile != "" && c.Vocabulary.BundlePath != "" {
		return errors.New("vocabulary.words_file and vocabulary.bundle_path are mutually exclusive")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if c.Catalog.BaseURL == "" {
		return errors.New("catalog.base_url must be set")
	}
	if c.Catalog.MinDurationSec < 0 || c.Catalog.MaxDurationSec < 0 {
		return errors.New("catalog duration bounds must not be negative")
	}
	if c.Catalog.MaxDurationSec > 0 && c.Catalog.MinDurationSec > c.Catalog.MaxDurationSec {
		return errors.New("catalog.min_duration_seconds exceeds catalog.max_duration_seconds")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/clipminer/config.toml"
		}
		return fmt.Errorf("llm.api_key is required. Set CLIPMINER_LLM_API_KEY env var or edit %s (create with 'clipminer config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateScoring() error {
	if c.Scoring.MinRelevance < 0 || c.Scoring.MinRelevance > 1 {
		return errors.New("scoring.min_relevance must be between 0 and 1")
	}
	if c.Scoring.MinFinalRelevance < 0 || c.Scoring.MinFinalRelevance > 1 {
		return errors.New("scoring.min_final_relevance must be between 0 and 1")
	}
	if c.Scoring.MaxMappingsPerClip <= 0 {
		return errors.New("scoring.max_mappings_per_clip must be positive")
	}
	return nil
}

func (c *Config) validateSpeech() error {
	if c.Speech.APIKey == "" {
		return errors.New("speech.api_key is required. Set CLIPMINER_SPEECH_API_KEY env var or edit the config file")
	}
	return nil
}

func (c *Config) validateDownload() error {
	if c.Download.MaxBytes <= 0 {
		return errors.New("download.max_bytes must be positive")
	}
	return nil
}

func (c *Config) validateSink() error {
	switch c.Sink.Mode {
	case "directory":
		if c.Paths.OutputDir == "" {
			return errors.New("paths.output_dir must be set when sink.mode is directory")
		}
	case "upload":
		if c.Sink.BackendURL == "" {
			return errors.New("sink.backend_url must be set when sink.mode is upload")
		}
	default:
		return fmt.Errorf("sink.mode must be directory or upload, got %q", c.Sink.Mode)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.WordWorkers <= 0 {
		return errors.New("workflow.word_workers must be positive")
	}
	return nil
}
