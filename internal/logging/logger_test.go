package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"clipminer/internal/services"
)

func TestPrettyHandlerIncludesComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, levelVar))

	logger.With(String(FieldComponent, "prescore")).Info("clip scored", String(FieldSlug, "abandon-01"), Float64("score", 0.8))

	line := buf.String()
	if !strings.Contains(line, "INFO prescore: clip scored") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "slug=abandon-01") || !strings.Contains(line, "score=0.8") {
		t.Fatalf("missing attrs: %q", line)
	}
}

func TestPrettyHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, levelVar))

	logger.Info("failure recorded", String("reason", "size ceiling exceeded"))

	if !strings.Contains(buf.String(), `reason="size ceiling exceeded"`) {
		t.Fatalf("expected quoted value: %q", buf.String())
	}
}

func TestJSONHandlerRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, levelVar))

	logger.Info("hello")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("parse json log line: %v", err)
	}
	for _, key := range []string{"ts", "level", "msg"} {
		if _, ok := record[key]; !ok {
			t.Fatalf("missing %q in %v", key, record)
		}
	}
	if record["level"] != "info" {
		t.Fatalf("level = %v", record["level"])
	}
}

func TestWithContextStampsFields(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, levelVar))

	ctx := services.WithWord(context.Background(), "abandon")
	ctx = services.WithSlug(ctx, "clip-7")
	ctx = services.WithStage(ctx, "transcribe")

	WithContext(ctx, logger).Info("stage started")

	line := buf.String()
	for _, want := range []string{"word=abandon", "slug=clip-7", "stage=transcribe"} {
		if !strings.Contains(line, want) {
			t.Fatalf("missing %q in %q", want, line)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if parseLevel("nonsense") != slog.LevelInfo {
		t.Fatal("unknown level should default to info")
	}
	if parseLevel("debug") != slog.LevelDebug {
		t.Fatal("debug level should parse")
	}
}
