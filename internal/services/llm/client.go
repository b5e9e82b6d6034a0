package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clipminer/internal/services"
)

// Config carries the chat-completion endpoint settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Referer string
	Title   string
	Timeout time.Duration
}

// Client calls an OpenRouter-style chat-completion API and decodes the
// structured JSON the model returns.
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

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CompleteJSON sends a system+user prompt pair and unmarshals the model's
// JSON reply into out. Transport failures and rate limits are retried; a
// reply that is not valid JSON is a validation error.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, out any) error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return services.Wrap(services.ErrConfiguration, "scoring", "llm", "api key not configured", nil)
	}

	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    0.1,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return services.Wrap(services.ErrValidation, "scoring", "llm", "encode request", err)
	}

	var content string
	err = services.Retry(ctx, c.policy, "llm completion", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		if c.cfg.Referer != "" {
			req.Header.Set("HTTP-Referer", c.cfg.Referer)
		}
		if c.cfg.Title != "" {
			req.Header.Set("X-Title", c.cfg.Title)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return services.Wrap(services.ErrTransient, "scoring", "llm", "request failed", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		if err != nil {
			return services.Wrap(services.ErrTransient, "scoring", "llm", "read response", err)
		}
		if resp.StatusCode != http.StatusOK {
			retryAfter, _ := services.ParseRetryAfter(resp.Header.Get("Retry-After"))
			return &services.HTTPStatusError{
				StatusCode: resp.StatusCode,
				Body:       strings.TrimSpace(string(raw)),
				RetryAfter: retryAfter,
			}
		}

		var decoded chatResponse
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return services.Wrap(services.ErrValidation, "scoring", "llm", "decode envelope", err)
		}
		if decoded.Error != nil && decoded.Error.Message != "" {
			return services.Wrap(services.ErrTransient, "scoring", "llm", "api error: "+decoded.Error.Message, nil)
		}
		if len(decoded.Choices) == 0 {
			return services.Wrap(services.ErrValidation, "scoring", "llm", "empty choices", nil)
		}
		content = decoded.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return err
	}

	if err := DecodeLLMJSON(content, out); err != nil {
		return services.Wrap(services.ErrValidation, "scoring", "llm", "decode model json", err)
	}
	return nil
}

// DecodeLLMJSON unmarshals model output into out, tolerating markdown code
// fences and prose around the JSON object.
func DecodeLLMJSON(content string, out any) error {
	cleaned := strings.TrimSpace(content)
	if cleaned == "" {
		return fmt.Errorf("empty model response")
	}

	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	if !strings.HasPrefix(cleaned, "{") && !strings.HasPrefix(cleaned, "[") {
		start := strings.IndexAny(cleaned, "{[")
		if start < 0 {
			return fmt.Errorf("no json object in model response")
		}
		cleaned = cleaned[start:]
	}
	if end := lastBalanced(cleaned); end > 0 {
		cleaned = cleaned[:end]
	}

	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("parse model json: %w", err)
	}
	return nil
}

// lastBalanced returns the index just past the delimiter matching the
// opening one, or 0 when the structure never closes.
func lastBalanced(s string) int {
	if s == "" {
		return 0
	}
	openCh, closeCh := byte('{'), byte('}')
	if s[0] == '[' {
		openCh, closeCh = '[', ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return 0
}
