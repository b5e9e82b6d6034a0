package sink

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"clipminer/internal/scoring"
	"clipminer/internal/services"
	"clipminer/internal/services/speech"
)

// UploadConfig carries the backend ingestion endpoint settings.
type UploadConfig struct {
	BackendURL string
	SourceID   string
	Timeout    time.Duration
}

// UploadSink base64-encodes the media and submits the curated clip to the
// backend's batch ingestion endpoint. A commit that succeeds remotely but
// fails before the slug is recorded locally will be resubmitted on the next
// run; the backend is assumed to deduplicate by slug.
type UploadSink struct {
	cfg        UploadConfig
	httpClient *http.Client
	policy     services.RetryPolicy
}

func NewUploadSink(cfg UploadConfig, httpClient *http.Client) *UploadSink {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &UploadSink{cfg: cfg, httpClient: httpClient, policy: services.DefaultRetryPolicy()}
}

type uploadVideo struct {
	Slug        string             `json:"slug"`
	MediaBase64 string             `json:"mediaBase64"`
	Metadata    uploadMetadata     `json:"metadata"`
	Transcripts uploadTranscripts  `json:"transcripts"`
	Mappings    []scoring.Mapping  `json:"wordMappings"`
}

type uploadMetadata struct {
	Title           string  `json:"title,omitempty"`
	MovieContext    string  `json:"movieContext,omitempty"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
}

type uploadTranscripts struct {
	Subtitle string             `json:"subtitle"`
	Audio    *speech.Transcript `json:"audio"`
}

type uploadRequest struct {
	SourceID string        `json:"sourceId"`
	Videos   []uploadVideo `json:"videos"`
}

type uploadResponse struct {
	Results []struct {
		Slug            string `json:"slug"`
		VideoID         string `json:"videoId"`
		MappingsCreated int    `json:"mappingsCreated"`
	} `json:"results"`
}

func (s *UploadSink) Commit(ctx context.Context, record Record) (Result, error) {
	mediaBytes, err := os.ReadFile(record.MediaPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrResource, "commit", "sink", "read media", err)
	}

	var duration float64
	if record.AudioTranscript != nil {
		duration = record.AudioTranscript.DurationSeconds
	}
	payload := uploadRequest{
		SourceID: s.cfg.SourceID,
		Videos: []uploadVideo{{
			Slug:        record.Slug,
			MediaBase64: base64.StdEncoding.EncodeToString(mediaBytes),
			Metadata: uploadMetadata{
				Title:           record.Title,
				MovieContext:    record.MovieContext,
				DurationSeconds: duration,
			},
			Transcripts: uploadTranscripts{
				Subtitle: record.SubtitleTranscript,
				Audio:    record.AudioTranscript,
			},
			Mappings: record.Mappings,
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "commit", "sink", "encode upload", err)
	}

	endpoint := strings.TrimRight(s.cfg.BackendURL, "/") + "/videos/batch-upload"

	var decoded uploadResponse
	err = services.Retry(ctx, s.policy, "batch upload", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return services.Wrap(services.ErrTransient, "commit", "sink", "request failed", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return services.Wrap(services.ErrTransient, "commit", "sink", "read response", err)
		}
		if resp.StatusCode != http.StatusOK {
			retryAfter, _ := services.ParseRetryAfter(resp.Header.Get("Retry-After"))
			return &services.HTTPStatusError{
				StatusCode: resp.StatusCode,
				Body:       strings.TrimSpace(string(raw)),
				RetryAfter: retryAfter,
			}
		}

		decoded = uploadResponse{}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return services.Wrap(services.ErrValidation, "commit", "sink", "decode response", err)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if len(decoded.Results) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, "commit", "sink", "backend returned no results", nil)
	}
	item := decoded.Results[0]
	return Result{
		Slug:            record.Slug,
		Location:        endpoint,
		VideoID:         item.VideoID,
		MappingsCreated: item.MappingsCreated,
	}, nil
}
