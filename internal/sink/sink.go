package sink

import (
	"context"

	"clipminer/internal/scoring"
	"clipminer/internal/services/speech"
)

// Record is the terminal artifact for one curated clip, ready to be saved
// locally or uploaded to the backend.
type Record struct {
	Slug               string
	Title              string
	MovieContext       string
	MediaPath          string
	SubtitleTranscript string
	AudioTranscript    *speech.Transcript
	Mappings           []scoring.Mapping
	SourceID           string
}

// Result reports where a committed record ended up. VideoID and
// MappingsCreated are only set by the upload sink.
type Result struct {
	Slug            string
	Location        string
	VideoID         string
	MappingsCreated int
}

// Sink commits curated records. Implementations must only return nil when
// the record is durably persisted; the caller records the slug as committed
// on success and retries the same record otherwise.
type Sink interface {
	Commit(ctx context.Context, record Record) (Result, error)
}
