package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"clipminer/internal/services"
)

// Clip is one raw candidate returned by the catalog search. The subtitle
// transcript comes from the catalog's own index and is unverified until the
// clip has been transcribed from audio.
type Clip struct {
	Slug               string  `json:"slug"`
	Title              string  `json:"title"`
	MovieContext       string  `json:"movie_context"`
	DurationSeconds    float64 `json:"duration_seconds"`
	SubtitleTranscript string  `json:"subtitle_transcript"`
	DownloadURL        string  `json:"download_url"`
}

// Config carries the catalog endpoint settings.
type Config struct {
	BaseURL        string
	APIKey         string
	MaxCandidates  int
	MinDurationSec int
	MaxDurationSec int
	Timeout        time.Duration
}

// Client queries the clip catalog's search endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	policy     services.RetryPolicy
}

// NewClient builds a catalog client. A nil httpClient gets a default with
// the configured timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient, policy: services.DefaultRetryPolicy()}
}

type searchResponse struct {
	Clips []searchClip `json:"clips"`
}

type searchClip struct {
	Slug     string  `json:"slug"`
	Title    string  `json:"title"`
	Movie    string  `json:"movie"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
	VideoURL string  `json:"video_url"`
}

// Search returns candidate clips whose subtitle text contains word, ordered
// by the catalog's own popularity ranking and capped at MaxCandidates.
func (c *Client) Search(ctx context.Context, word, language string) ([]Clip, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return nil, services.Wrap(services.ErrValidation, "search", "catalog", "empty search word", nil)
	}

	endpoint, err := c.searchURL(word, language)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "search", "catalog", "invalid base url", err)
	}

	var decoded searchResponse
	err = services.Retry(ctx, c.policy, "catalog search", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return services.Wrap(services.ErrTransient, "search", "catalog", "request failed", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return services.Wrap(services.ErrTransient, "search", "catalog", "read response", err)
		}
		if resp.StatusCode != http.StatusOK {
			return &services.HTTPStatusError{
				StatusCode: resp.StatusCode,
				Body:       strings.TrimSpace(string(body)),
				RetryAfter: retryAfterHeader(resp),
			}
		}

		decoded = searchResponse{}
		if err := json.Unmarshal(body, &decoded); err != nil {
			return services.Wrap(services.ErrValidation, "search", "catalog", "decode response", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	clips := make([]Clip, 0, len(decoded.Clips))
	for _, raw := range decoded.Clips {
		slug := strings.TrimSpace(raw.Slug)
		if slug == "" || strings.TrimSpace(raw.VideoURL) == "" {
			continue
		}
		clips = append(clips, Clip{
			Slug:               slug,
			Title:              strings.TrimSpace(raw.Title),
			MovieContext:       strings.TrimSpace(raw.Movie),
			DurationSeconds:    raw.Duration,
			SubtitleTranscript: strings.TrimSpace(raw.Text),
			DownloadURL:        raw.VideoURL,
		})
		if c.cfg.MaxCandidates > 0 && len(clips) >= c.cfg.MaxCandidates {
			break
		}
	}
	return clips, nil
}

func (c *Client) searchURL(word, language string) (string, error) {
	base, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/") + "/search")
	if err != nil {
		return "", err
	}

	query := base.Query()
	query.Set("q", word)
	if language != "" {
		query.Set("language", language)
	}
	if c.cfg.MaxCandidates > 0 {
		query.Set("limit", strconv.Itoa(c.cfg.MaxCandidates))
	}
	if c.cfg.MinDurationSec > 0 {
		query.Set("min_duration", strconv.Itoa(c.cfg.MinDurationSec))
	}
	if c.cfg.MaxDurationSec > 0 {
		query.Set("max_duration", strconv.Itoa(c.cfg.MaxDurationSec))
	}
	query.Set("sort", "popularity")
	base.RawQuery = query.Encode()
	return base.String(), nil
}

func retryAfterHeader(resp *http.Response) time.Duration {
	if delay, ok := services.ParseRetryAfter(resp.Header.Get("Retry-After")); ok {
		return delay
	}
	return 0
}
