// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"clipminer/internal/config"
)

// NewConfig returns a validated configuration rooted in temporary
// directories, with placeholder credentials so Validate passes.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.StorageDir = filepath.Join(base, "storage")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Vocabulary.WordsFile = WriteFile(t, filepath.Join(base, "words.txt"), "abandon\n")
	cfg.Catalog.APIKey = "test-catalog-key"
	cfg.LLM.APIKey = "test-llm-key"
	cfg.Speech.APIKey = "test-speech-key"

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return &cfg
}

// WriteFile writes content to path, creating parent directories, and
// returns the path.
func WriteFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
