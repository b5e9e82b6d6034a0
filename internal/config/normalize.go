package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeVocabulary(); err != nil {
		return err
	}
	c.normalizeCatalog()
	c.normalizeLLM()
	c.normalizeSpeech()
	c.normalizeSink()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StorageDir, err = expandPath(c.Paths.StorageDir); err != nil {
		return fmt.Errorf("paths.storage_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StorageDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeVocabulary() error {
	var err error
	if c.Vocabulary.WordsFile != "" {
		if c.Vocabulary.WordsFile, err = expandPath(c.Vocabulary.WordsFile); err != nil {
			return fmt.Errorf("vocabulary.words_file: %w", err)
		}
	}
	if c.Vocabulary.BundlePath != "" {
		if c.Vocabulary.BundlePath, err = expandPath(c.Vocabulary.BundlePath); err != nil {
			return fmt.Errorf("vocabulary.bundle_path: %w", err)
		}
	}
	c.Vocabulary.BundleName = strings.TrimSpace(c.Vocabulary.BundleName)
	c.Vocabulary.Language = strings.TrimSpace(c.Vocabulary.Language)
	if c.Vocabulary.Language == "" {
		c.Vocabulary.Language = defaultLanguage
	}
	return nil
}

func (c *Config) normalizeCatalog() {
	c.Catalog.BaseURL = strings.TrimRight(strings.TrimSpace(c.Catalog.BaseURL), "/")
	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = defaultCatalogBaseURL
	}
	if c.Catalog.APIKey == "" {
		if value, ok := os.LookupEnv("CLIPMINER_CATALOG_API_KEY"); ok {
			c.Catalog.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Catalog.MaxCandidates <= 0 {
		c.Catalog.MaxCandidates = defaultMaxCandidates
	}
	if c.Catalog.TimeoutSeconds <= 0 {
		c.Catalog.TimeoutSeconds = defaultCatalogTimeout
	}
}

func (c *Config) normalizeLLM() {
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("CLIPMINER_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeSpeech() {
	if c.Speech.APIKey == "" {
		if value, ok := os.LookupEnv("CLIPMINER_SPEECH_API_KEY"); ok {
			c.Speech.APIKey = strings.TrimSpace(value)
		}
	}
	c.Speech.BaseURL = strings.TrimRight(strings.TrimSpace(c.Speech.BaseURL), "/")
	if c.Speech.BaseURL == "" {
		c.Speech.BaseURL = defaultSpeechBaseURL
	}
	c.Speech.Model = strings.TrimSpace(c.Speech.Model)
	if c.Speech.Model == "" {
		c.Speech.Model = defaultSpeechModel
	}
	if c.Speech.TimeoutSeconds <= 0 {
		c.Speech.TimeoutSeconds = defaultSpeechTimeoutSeconds
	}
}

func (c *Config) normalizeSink() {
	c.Sink.Mode = strings.ToLower(strings.TrimSpace(c.Sink.Mode))
	if c.Sink.Mode == "" {
		c.Sink.Mode = defaultSinkMode
	}
	c.Sink.BackendURL = strings.TrimRight(strings.TrimSpace(c.Sink.BackendURL), "/")
	c.Sink.SourceID = strings.TrimSpace(c.Sink.SourceID)
	if c.Sink.SourceID == "" {
		c.Sink.SourceID = defaultSinkSourceID
	}
	if c.Sink.TimeoutSeconds <= 0 {
		c.Sink.TimeoutSeconds = defaultSinkTimeoutSeconds
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
