package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"clipminer/internal/services"
)

func TestExtractMP3BuildsExpectedCommand(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "clip-a1.mp4")
	audioPath := filepath.Join(dir, "clip-a1.mp3")

	var gotName string
	var gotArgs []string
	extractor := NewExtractor("ffmpeg")
	extractor.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		return nil, os.WriteFile(audioPath, []byte("mp3"), 0o644)
	}

	if err := extractor.ExtractMP3(context.Background(), videoPath, audioPath); err != nil {
		t.Fatalf("ExtractMP3() error = %v", err)
	}
	if gotName != "ffmpeg" {
		t.Errorf("binary = %q", gotName)
	}
	want := extractArgs(videoPath, audioPath)
	if len(gotArgs) != len(want) {
		t.Fatalf("args = %v, want %v", gotArgs, want)
	}
	for i := range want {
		if gotArgs[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, gotArgs[i], want[i])
		}
	}
}

func TestExtractMP3ReportsFFmpegFailure(t *testing.T) {
	dir := t.TempDir()
	extractor := NewExtractor("ffmpeg")
	extractor.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("clip-a1.mp4: Invalid data found when processing input"), errors.New("exit status 1")
	}

	err := extractor.ExtractMP3(context.Background(), filepath.Join(dir, "clip-a1.mp4"), filepath.Join(dir, "clip-a1.mp3"))
	if !errors.Is(err, services.ErrResource) {
		t.Fatalf("error = %v, want ErrResource", err)
	}
}

func TestExtractMP3RejectsEmptyOutput(t *testing.T) {
	dir := t.TempDir()
	extractor := NewExtractor("ffmpeg")
	extractor.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, nil
	}

	err := extractor.ExtractMP3(context.Background(), filepath.Join(dir, "clip-a1.mp4"), filepath.Join(dir, "clip-a1.mp3"))
	if !errors.Is(err, services.ErrResource) {
		t.Fatalf("error = %v, want ErrResource", err)
	}
}
