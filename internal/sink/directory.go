package sink

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"clipminer/internal/fileutil"
	"clipminer/internal/media"
	"clipminer/internal/scoring"
	"clipminer/internal/services"
	"clipminer/internal/services/speech"
)

// DirectorySink writes each curated clip into its own directory under the
// output root: the source video, an extracted MP3, and a metadata document.
type DirectorySink struct {
	outputDir string
	extractor *media.Extractor
}

func NewDirectorySink(outputDir string, extractor *media.Extractor) *DirectorySink {
	return &DirectorySink{outputDir: outputDir, extractor: extractor}
}

type metadataDocument struct {
	Slug               string            `json:"slug"`
	Title              string            `json:"title,omitempty"`
	MovieContext       string            `json:"movie_context,omitempty"`
	SourceID           string            `json:"source_id"`
	CommittedAt        time.Time         `json:"committed_at"`
	SubtitleTranscript string            `json:"subtitle_transcript"`
	AudioTranscript    *speech.Transcript `json:"audio_transcript"`
	Mappings           []scoring.Mapping `json:"word_mappings"`
}

func (s *DirectorySink) Commit(ctx context.Context, record Record) (Result, error) {
	clipDir := filepath.Join(s.outputDir, record.Slug)
	if err := os.MkdirAll(clipDir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrResource, "commit", "sink", "ensure clip dir", err)
	}

	videoPath := filepath.Join(clipDir, record.Slug+".mp4")
	if err := fileutil.CopyFileVerified(record.MediaPath, videoPath); err != nil {
		return Result{}, services.Wrap(services.ErrResource, "commit", "sink", "copy media", err)
	}

	audioPath := filepath.Join(clipDir, record.Slug+".mp3")
	if err := s.extractor.ExtractMP3(ctx, record.MediaPath, audioPath); err != nil {
		return Result{}, err
	}

	doc := metadataDocument{
		Slug:               record.Slug,
		Title:              record.Title,
		MovieContext:       record.MovieContext,
		SourceID:           record.SourceID,
		CommittedAt:        time.Now().UTC(),
		SubtitleTranscript: record.SubtitleTranscript,
		AudioTranscript:    record.AudioTranscript,
		Mappings:           record.Mappings,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "commit", "sink", "encode metadata", err)
	}

	metadataPath := filepath.Join(clipDir, "metadata.json")
	tmpPath := metadataPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return Result{}, services.Wrap(services.ErrResource, "commit", "sink", "write metadata", err)
	}
	if err := os.Rename(tmpPath, metadataPath); err != nil {
		os.Remove(tmpPath)
		return Result{}, services.Wrap(services.ErrResource, "commit", "sink", "move metadata into place", err)
	}

	return Result{Slug: record.Slug, Location: clipDir, MappingsCreated: len(record.Mappings)}, nil
}
