package sink

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"clipminer/internal/media"
	"clipminer/internal/scoring"
	"clipminer/internal/services/speech"
)

func sampleRecord(t *testing.T) Record {
	t.Helper()
	mediaPath := filepath.Join(t.TempDir(), "clip-a1.mp4")
	if err := os.WriteFile(mediaPath, []byte("fake media"), 0o644); err != nil {
		t.Fatal(err)
	}
	return Record{
		Slug:               "clip-a1",
		Title:              "Lifeboats",
		MovieContext:       "Titanic (1997)",
		MediaPath:          mediaPath,
		SubtitleTranscript: "we must abandon ship",
		AudioTranscript: &speech.Transcript{
			Slug:            "clip-a1",
			FullText:        "We must abandon ship.",
			DurationSeconds: 2.3,
			WordTimestamps: []speech.WordTimestamp{
				{Word: "abandon", StartSec: 0.6, EndSec: 1.2},
			},
		},
		Mappings: []scoring.Mapping{
			{Word: "abandon", RelevanceScore: 0.85, Rationale: "clear usage", StartSec: 0.6, EndSec: 1.2},
		},
		SourceID: "clipminer",
	}
}

func fakeExtractor(t *testing.T) *media.Extractor {
	t.Helper()
	extractor := media.NewExtractorForTest(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		// The output path is the final ffmpeg argument.
		out := args[len(args)-1]
		return nil, os.WriteFile(out, []byte("mp3"), 0o644)
	})
	return extractor
}

func TestDirectorySinkWritesClipBundle(t *testing.T) {
	outputDir := t.TempDir()
	directory := NewDirectorySink(outputDir, fakeExtractor(t))

	record := sampleRecord(t)
	result, err := directory.Commit(context.Background(), record)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if result.Slug != "clip-a1" || result.MappingsCreated != 1 {
		t.Errorf("result = %+v", result)
	}

	clipDir := filepath.Join(outputDir, "clip-a1")
	if result.Location != clipDir {
		t.Errorf("Location = %s, want %s", result.Location, clipDir)
	}
	for _, name := range []string{"clip-a1.mp4", "clip-a1.mp3", "metadata.json"} {
		if _, err := os.Stat(filepath.Join(clipDir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(clipDir, "metadata.json"))
	if err != nil {
		t.Fatal(err)
	}
	var doc metadataDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("metadata not valid json: %v", err)
	}
	if doc.Slug != "clip-a1" || doc.SourceID != "clipminer" {
		t.Errorf("metadata = %+v", doc)
	}
	if len(doc.Mappings) != 1 || doc.Mappings[0].Word != "abandon" {
		t.Errorf("metadata mappings = %+v", doc.Mappings)
	}
	if doc.AudioTranscript == nil || doc.AudioTranscript.FullText != "We must abandon ship." {
		t.Errorf("metadata audio transcript = %+v", doc.AudioTranscript)
	}
	if doc.CommittedAt.IsZero() {
		t.Error("metadata missing committed_at")
	}
}

func TestUploadSinkPostsBatchPayload(t *testing.T) {
	var gotRequest uploadRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos/batch-upload" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Write([]byte(`{"results":[{"slug":"clip-a1","videoId":"vid-123","mappingsCreated":1}]}`))
	}))
	defer server.Close()

	upload := NewUploadSink(UploadConfig{
		BackendURL: server.URL,
		SourceID:   "clipminer",
		Timeout:    5 * time.Second,
	}, server.Client())

	record := sampleRecord(t)
	result, err := upload.Commit(context.Background(), record)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if result.VideoID != "vid-123" || result.MappingsCreated != 1 {
		t.Errorf("result = %+v", result)
	}

	if gotRequest.SourceID != "clipminer" || len(gotRequest.Videos) != 1 {
		t.Fatalf("request = %+v", gotRequest)
	}
	video := gotRequest.Videos[0]
	decoded, err := base64.StdEncoding.DecodeString(video.MediaBase64)
	if err != nil {
		t.Fatalf("media not base64: %v", err)
	}
	if string(decoded) != "fake media" {
		t.Errorf("uploaded media = %q", decoded)
	}
	if video.Transcripts.Subtitle != "we must abandon ship" {
		t.Errorf("subtitle transcript = %q", video.Transcripts.Subtitle)
	}
	if len(video.Mappings) != 1 || video.Mappings[0].Word != "abandon" {
		t.Errorf("mappings = %+v", video.Mappings)
	}
}

func TestUploadSinkErrorDoesNotReturnResult(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	upload := NewUploadSink(UploadConfig{BackendURL: server.URL, SourceID: "clipminer"}, server.Client())
	upload.policy.Sleeper = func(time.Duration) {}

	if _, err := upload.Commit(context.Background(), sampleRecord(t)); err == nil {
		t.Fatal("Commit() succeeded on persistent 500")
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3 (retries exhausted)", calls.Load())
	}
}

func TestDirectorySinkPropagatesExtractionFailure(t *testing.T) {
	extractor := media.NewExtractorForTest(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("boom"), errors.New("exit status 1")
	})
	directory := NewDirectorySink(t.TempDir(), extractor)

	if _, err := directory.Commit(context.Background(), sampleRecord(t)); err == nil {
		t.Fatal("Commit() succeeded despite extraction failure")
	}
}
