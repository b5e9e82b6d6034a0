package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"clipminer/internal/services"
)

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Extractor shells out to ffmpeg to pull the audio track from a downloaded
// clip.
type Extractor struct {
	binary string
	run    commandRunner
}

func NewExtractor(binary string) *Extractor {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &Extractor{binary: binary, run: runCommand}
}

// NewExtractorForTest builds an Extractor whose command execution is
// replaced by run. Only for use in tests.
func NewExtractorForTest(run func(ctx context.Context, name string, args ...string) ([]byte, error)) *Extractor {
	return &Extractor{binary: "ffmpeg", run: run}
}

// Available reports whether the configured ffmpeg binary can be resolved.
func (e *Extractor) Available() error {
	if _, err := exec.LookPath(e.binary); err != nil {
		return services.Wrap(services.ErrConfiguration, "commit", "media", fmt.Sprintf("%s not found in PATH", e.binary), err)
	}
	return nil
}

// ExtractMP3 writes the audio of videoPath to audioPath as MP3, overwriting
// any previous output.
func (e *Extractor) ExtractMP3(ctx context.Context, videoPath, audioPath string) error {
	if err := os.MkdirAll(filepath.Dir(audioPath), 0o755); err != nil {
		return services.Wrap(services.ErrResource, "commit", "media", "ensure audio dir", err)
	}

	args := extractArgs(videoPath, audioPath)
	output, err := e.run(ctx, e.binary, args...)
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if len(detail) > 512 {
			detail = detail[len(detail)-512:]
		}
		return services.Wrap(services.ErrResource, "commit", "media",
			fmt.Sprintf("ffmpeg audio extraction failed: %s", detail), err)
	}

	info, err := os.Stat(audioPath)
	if err != nil || info.Size() == 0 {
		return services.Wrap(services.ErrResource, "commit", "media", "ffmpeg produced no audio output", err)
	}
	return nil
}

func extractArgs(videoPath, audioPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", videoPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-q:a", "2",
		audioPath,
	}
}
