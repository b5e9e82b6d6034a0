package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig(t *testing.T) Config {
	t.Helper()
	cfg := Default()
	cfg.Paths.StorageDir = t.TempDir()
	cfg.Paths.OutputDir = filepath.Join(cfg.Paths.StorageDir, "records")
	cfg.LLM.APIKey = "llm-key"
	cfg.Speech.APIKey = "speech-key"
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRequiresLLMKey(t *testing.T) {
	cfg := validConfig(t)
	cfg.LLM.APIKey = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "llm.api_key") {
		t.Fatalf("expected llm.api_key error, got %v", err)
	}
}

func TestValidateRequiresSpeechKey(t *testing.T) {
	cfg := validConfig(t)
	cfg.Speech.APIKey = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "speech.api_key") {
		t.Fatalf("expected speech.api_key error, got %v", err)
	}
}

func TestValidateRejectsBadSinkMode(t *testing.T) {
	cfg := validConfig(t)
	cfg.Sink.Mode = "ftp"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown sink mode")
	}
}

func TestValidateUploadModeNeedsBackendURL(t *testing.T) {
	cfg := validConfig(t)
	cfg.Sink.Mode = "upload"
	cfg.Sink.BackendURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for upload mode without backend url")
	}
}

func TestValidateScoringBounds(t *testing.T) {
	cfg := validConfig(t)
	cfg.Scoring.MinRelevance = 1.2
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for min_relevance > 1")
	}
	cfg = validConfig(t)
	cfg.Scoring.MaxMappingsPerClip = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero mapping cap")
	}
}

func TestValidateRejectsBothVocabularySources(t *testing.T) {
	cfg := validConfig(t)
	cfg.Vocabulary.WordsFile = "/tmp/words.txt"
	cfg.Vocabulary.BundlePath = "/tmp/bundle.db"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for mutually exclusive vocabulary sources")
	}
}

func TestLoadParsesFileAndAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
storage_dir = "` + filepath.Join(dir, "store") + `"
output_dir = "` + filepath.Join(dir, "out") + `"

[llm]
api_key = "k1"

[speech]
api_key = "k2"

[scoring]
min_relevance = 0.7
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved=%q exists=%v", resolved, exists)
	}
	if cfg.Scoring.MinRelevance != 0.7 {
		t.Fatalf("min_relevance = %v", cfg.Scoring.MinRelevance)
	}
	if cfg.Catalog.MaxCandidates != defaultMaxCandidates {
		t.Fatalf("max_candidates default not applied: %d", cfg.Catalog.MaxCandidates)
	}
	if cfg.Paths.LogDir != filepath.Join(cfg.Paths.StorageDir, "logs") {
		t.Fatalf("log dir default not derived: %q", cfg.Paths.LogDir)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("CLIPMINER_LLM_API_KEY", "env-llm")
	t.Setenv("CLIPMINER_SPEECH_API_KEY", "env-speech")

	cfg, _, exists, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("file should not exist")
	}
	if cfg.LLM.APIKey != "env-llm" || cfg.Speech.APIKey != "env-speech" {
		t.Fatalf("env fallbacks not applied: %+v", cfg.LLM)
	}
}

func TestExpandPathHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	got, err := expandPath("~/x")
	if err != nil {
		t.Fatalf("expandPath: %v", err)
	}
	if got != filepath.Join(home, "x") {
		t.Fatalf("expandPath(~/x) = %q", got)
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.toml")
	if err := os.WriteFile(path, []byte(SampleConfig()), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	t.Setenv("CLIPMINER_LLM_API_KEY", "k")
	t.Setenv("CLIPMINER_SPEECH_API_KEY", "k")
	if _, _, _, err := Load(path); err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
}
