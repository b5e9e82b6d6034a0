package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"clipminer/internal/services"
)

type scoreReply struct {
	Mappings []struct {
		Word           string  `json:"word"`
		RelevanceScore float64 `json:"relevance_score"`
		Reason         string  `json:"reason"`
	} `json:"mappings"`
}

func chatBody(content string) string {
	envelope := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	data, _ := json.Marshal(envelope)
	return string(data)
}

func quietClient(baseURL string, httpClient *http.Client) *Client {
	c := NewClient(Config{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "test-model",
		Timeout: 5 * time.Second,
	}, httpClient)
	c.policy.Sleeper = func(time.Duration) {}
	return c
}

func TestCompleteJSONDecodesStructuredReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" || len(req.Messages) != 2 {
			t.Errorf("request = %+v", req)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("response_format = %+v", req.ResponseFormat)
		}
		w.Write([]byte(chatBody(`{"mappings":[{"word":"abandon","relevance_score":0.8,"reason":"clear usage"}]}`)))
	}))
	defer server.Close()

	client := quietClient(server.URL, server.Client())
	var reply scoreReply
	if err := client.CompleteJSON(context.Background(), "system", "user", &reply); err != nil {
		t.Fatalf("CompleteJSON() error = %v", err)
	}
	if len(reply.Mappings) != 1 || reply.Mappings[0].Word != "abandon" {
		t.Fatalf("reply = %+v", reply)
	}
}

func TestCompleteJSONRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(chatBody(`{"mappings":[]}`)))
	}))
	defer server.Close()

	client := quietClient(server.URL, server.Client())
	var reply scoreReply
	if err := client.CompleteJSON(context.Background(), "s", "u", &reply); err != nil {
		t.Fatalf("CompleteJSON() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestCompleteJSONMalformedModelOutputIsValidation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatBody("I could not produce JSON today.")))
	}))
	defer server.Close()

	client := quietClient(server.URL, server.Client())
	var reply scoreReply
	err := client.CompleteJSON(context.Background(), "s", "u", &reply)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestCompleteJSONRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused", Model: "m"}, nil)
	err := client.CompleteJSON(context.Background(), "s", "u", &scoreReply{})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
}

func TestDecodeLLMJSON(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"bare object", `{"mappings":[]}`, false},
		{"fenced", "```json\n{\"mappings\":[]}\n```", false},
		{"fenced no lang", "```\n{\"mappings\":[]}\n```", false},
		{"prose around object", "Here you go: {\"mappings\":[]} hope that helps", false},
		{"empty", "", true},
		{"no json", "sorry, cannot comply", true},
		{"truncated", `{"mappings":[{"word":"aband`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var reply scoreReply
			err := DecodeLLMJSON(tc.content, &reply)
			if (err != nil) != tc.wantErr {
				t.Fatalf("DecodeLLMJSON(%q) error = %v, wantErr %v", tc.content, err, tc.wantErr)
			}
		})
	}
}
