package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipminer/internal/config"
	"clipminer/internal/testsupport"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"config", "init", "--path", target})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("sample not written: %v", err)
	}
	if !strings.Contains(string(data), "[catalog]") {
		t.Error("sample config missing catalog section")
	}

	// Running init again without --overwrite must refuse.
	cmd = newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err == nil {
		t.Fatal("config init overwrote existing file")
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfigFile(t, path, cfg)

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"config", "show", "--config", path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("config show error = %v", err)
	}
	rendered := out.String()
	if strings.Contains(rendered, "test-llm-key") {
		t.Error("config show leaked the LLM API key")
	}
	if !strings.Contains(rendered, "<set>") {
		t.Error("config show did not mark redacted secrets")
	}
}

func TestApplyRunFlagsOverridesAndConflicts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	flags := &runFlags{
		maxCandidates: 25,
		minScore:      0.75,
		workers:       4,
		upload:        true,
		backendURL:    "http://backend.local",
	}
	if err := applyRunFlags(cfg, flags); err != nil {
		t.Fatalf("applyRunFlags() error = %v", err)
	}
	if cfg.Catalog.MaxCandidates != 25 || cfg.Scoring.MinRelevance != 0.75 || cfg.Workflow.WordWorkers != 4 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Sink.Mode != "upload" || cfg.Sink.BackendURL != "http://backend.local" {
		t.Errorf("sink override not applied: %+v", cfg.Sink)
	}

	if err := applyRunFlags(cfg, &runFlags{upload: true, downloadOnly: true}); err == nil {
		t.Error("conflicting sink flags accepted")
	}
	if err := applyRunFlags(cfg, &runFlags{wordsFile: "a.txt", bundlePath: "b.db"}); err == nil {
		t.Error("conflicting vocabulary flags accepted")
	}
}

func writeConfigFile(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	testsupport.WriteFile(t, path, renderConfigTOML(t, cfg))
}

func renderConfigTOML(t *testing.T, cfg *config.Config) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("[paths]\n")
	b.WriteString("storage_dir = " + quote(cfg.Paths.StorageDir) + "\n")
	b.WriteString("output_dir = " + quote(cfg.Paths.OutputDir) + "\n\n")
	b.WriteString("[vocabulary]\n")
	b.WriteString("words_file = " + quote(cfg.Vocabulary.WordsFile) + "\n\n")
	b.WriteString("[llm]\n")
	b.WriteString("api_key = \"test-llm-key\"\n\n")
	b.WriteString("[speech]\n")
	b.WriteString("api_key = \"test-speech-key\"\n")
	return b.String()
}

func quote(value string) string {
	return "\"" + strings.ReplaceAll(value, "\\", "\\\\") + "\""
}
