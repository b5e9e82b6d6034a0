package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipminer/internal/services"
)

// WordTimestamp locates one spoken word inside a clip.
type WordTimestamp struct {
	Word     string  `json:"word"`
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
}

// Transcript is the verified, word-timestamped result of transcribing a
// downloaded clip. It supersedes the catalog's subtitle text.
type Transcript struct {
	Slug            string          `json:"slug"`
	FullText        string          `json:"full_text"`
	WordTimestamps  []WordTimestamp `json:"word_timestamps"`
	DurationSeconds float64         `json:"duration_seconds"`
}

// Config carries the transcription endpoint settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client uploads clip audio to a speech-to-text service and normalizes the
// verbose JSON reply.
type Client struct {
	cfg        Config
	httpClient *http.Client
	policy     services.RetryPolicy
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient, policy: services.DefaultRetryPolicy()}
}

type verboseResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Words    []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
}

// Transcribe uploads the media file at path and returns the normalized
// transcript for slug. The request body is rebuilt on each retry attempt.
func (c *Client) Transcribe(ctx context.Context, slug, path, language string) (*Transcript, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "transcribe", "speech", "api key not configured", nil)
	}
	media, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrResource, "transcribe", "speech", "read media", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/audio/transcriptions"

	var decoded verboseResponse
	err = services.Retry(ctx, c.policy, "speech transcription", func(ctx context.Context) error {
		body, contentType, err := c.multipartBody(filepath.Base(path), media, language)
		if err != nil {
			return services.Wrap(services.ErrValidation, "transcribe", "speech", "build request", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return services.Wrap(services.ErrTransient, "transcribe", "speech", "request failed", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		if err != nil {
			return services.Wrap(services.ErrTransient, "transcribe", "speech", "read response", err)
		}
		if resp.StatusCode != http.StatusOK {
			retryAfter, _ := services.ParseRetryAfter(resp.Header.Get("Retry-After"))
			return &services.HTTPStatusError{
				StatusCode: resp.StatusCode,
				Body:       strings.TrimSpace(string(raw)),
				RetryAfter: retryAfter,
			}
		}

		decoded = verboseResponse{}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return services.Wrap(services.ErrValidation, "transcribe", "speech", "decode response", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return normalize(slug, decoded), nil
}

func (c *Client) multipartBody(fileName string, media []byte, language string) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(media); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := writer.WriteField("model", c.cfg.Model); err != nil {
		return nil, "", err
	}
	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return nil, "", err
	}
	if err := writer.WriteField("timestamp_granularities[]", "word"); err != nil {
		return nil, "", err
	}
	if language != "" {
		if err := writer.WriteField("language", language); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

func normalize(slug string, resp verboseResponse) *Transcript {
	transcript := &Transcript{
		Slug:            slug,
		FullText:        strings.TrimSpace(resp.Text),
		DurationSeconds: resp.Duration,
	}

	for _, word := range resp.Words {
		text := strings.TrimSpace(word.Word)
		if text == "" {
			continue
		}
		transcript.WordTimestamps = append(transcript.WordTimestamps, WordTimestamp{
			Word:     text,
			StartSec: word.Start,
			EndSec:   word.End,
		})
	}

	// Some services only return segments; fall back to assembling the full
	// text from them when the top-level text field is empty.
	if transcript.FullText == "" {
		parts := make([]string, 0, len(resp.Segments))
		for _, segment := range resp.Segments {
			if text := strings.TrimSpace(segment.Text); text != "" {
				parts = append(parts, text)
			}
		}
		transcript.FullText = strings.Join(parts, " ")
	}
	if transcript.DurationSeconds == 0 && len(transcript.WordTimestamps) > 0 {
		transcript.DurationSeconds = transcript.WordTimestamps[len(transcript.WordTimestamps)-1].EndSec
	}
	return transcript
}
