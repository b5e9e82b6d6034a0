package download

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"clipminer/internal/services"
)

func newTestAcquirer(t *testing.T, baseURL string, httpClient *http.Client, maxBytes int64) *Acquirer {
	t.Helper()
	a := NewAcquirer(Config{
		MediaDir: t.TempDir(),
		MaxBytes: maxBytes,
		Timeout:  5 * time.Second,
	}, httpClient)
	a.policy.Sleeper = func(time.Duration) {}
	return a
}

func TestFetchDownloadsAndRenames(t *testing.T) {
	payload := bytes.Repeat([]byte("v"), 1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	acquirer := newTestAcquirer(t, server.URL, server.Client(), 4096)
	path, size, err := acquirer.Fetch(context.Background(), "clip-a1", server.URL+"/clip-a1.mp4")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if size != int64(len(payload)) {
		t.Errorf("size = %d, want %d", size, len(payload))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read media: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Error("media bytes differ")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".partial" {
			t.Errorf("leftover partial file %s", entry.Name())
		}
	}
}

func TestFetchSkipsExistingMedia(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("fresh"))
	}))
	defer server.Close()

	acquirer := newTestAcquirer(t, server.URL, server.Client(), 4096)
	existing := acquirer.MediaPath("clip-a1")
	if err := os.MkdirAll(filepath.Dir(existing), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(existing, []byte("cached media"), 0o644); err != nil {
		t.Fatal(err)
	}

	path, size, err := acquirer.Fetch(context.Background(), "clip-a1", server.URL+"/clip-a1.mp4")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("network calls = %d, want 0", calls.Load())
	}
	if path != existing || size != int64(len("cached media")) {
		t.Errorf("path = %s size = %d", path, size)
	}
}

func TestFetchEnforcesSizeCeilingAndCleansUp(t *testing.T) {
	oversized := bytes.Repeat([]byte("x"), 2048)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Chunked response, no Content-Length, so the ceiling is only
		// discoverable while streaming.
		flusher := w.(http.Flusher)
		w.WriteHeader(http.StatusOK)
		w.Write(oversized[:1024])
		flusher.Flush()
		w.Write(oversized[1024:])
	}))
	defer server.Close()

	acquirer := newTestAcquirer(t, server.URL, server.Client(), 1024)
	_, _, err := acquirer.Fetch(context.Background(), "clip-big", server.URL+"/clip-big.mp4")
	if !errors.Is(err, services.ErrResource) {
		t.Fatalf("error = %v, want ErrResource", err)
	}

	entries, err := os.ReadDir(acquirer.cfg.MediaDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		t.Errorf("files left on disk after oversize: %v", names)
	}
}

func TestFetchRejectsOversizedContentLengthWithoutStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), 4096))
	}))
	defer server.Close()

	acquirer := newTestAcquirer(t, server.URL, server.Client(), 1024)
	_, _, err := acquirer.Fetch(context.Background(), "clip-big", server.URL+"/clip-big.mp4")
	if !errors.Is(err, services.ErrResource) {
		t.Fatalf("error = %v, want ErrResource", err)
	}
}

func TestFetchRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("media"))
	}))
	defer server.Close()

	acquirer := newTestAcquirer(t, server.URL, server.Client(), 4096)
	_, size, err := acquirer.Fetch(context.Background(), "clip-a1", server.URL+"/clip-a1.mp4")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if size != int64(len("media")) {
		t.Errorf("size = %d", size)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}
