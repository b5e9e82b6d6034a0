package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"clipminer/internal/services"
)

// Config bounds a media download.
type Config struct {
	MediaDir string
	MaxBytes int64
	Timeout  time.Duration

	// ShowProgress draws a progress bar on stderr when it is a terminal.
	ShowProgress bool
}

// Acquirer streams candidate clips to disk, enforcing the media size
// ceiling. Oversized downloads are deleted rather than truncated.
type Acquirer struct {
	cfg        Config
	httpClient *http.Client
	policy     services.RetryPolicy
}

func NewAcquirer(cfg Config, httpClient *http.Client) *Acquirer {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Acquirer{cfg: cfg, httpClient: httpClient, policy: services.DefaultRetryPolicy()}
}

// MediaPath returns where slug's media lands on disk.
func (a *Acquirer) MediaPath(slug string) string {
	return filepath.Join(a.cfg.MediaDir, slug+".mp4")
}

// Fetch downloads the clip for slug unless a usable copy already exists.
// It returns the media path and the byte size on disk.
func (a *Acquirer) Fetch(ctx context.Context, slug, downloadURL string) (string, int64, error) {
	if strings.TrimSpace(downloadURL) == "" {
		return "", 0, services.Wrap(services.ErrValidation, "download", "acquirer", "empty download url", nil)
	}
	if err := os.MkdirAll(a.cfg.MediaDir, 0o755); err != nil {
		return "", 0, services.Wrap(services.ErrResource, "download", "acquirer", "ensure media dir", err)
	}

	target := a.MediaPath(slug)
	if info, err := os.Stat(target); err == nil && info.Size() > 0 && info.Size() <= a.cfg.MaxBytes {
		return target, info.Size(), nil
	}

	var size int64
	err := services.Retry(ctx, a.policy, "media download", func(ctx context.Context) error {
		var err error
		size, err = a.fetchOnce(ctx, slug, downloadURL, target)
		return err
	})
	if err != nil {
		return "", 0, err
	}
	return target, size, nil
}

func (a *Acquirer) fetchOnce(ctx context.Context, slug, downloadURL, target string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "download", "acquirer", "build request", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "download", "acquirer", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		retryAfter, _ := services.ParseRetryAfter(resp.Header.Get("Retry-After"))
		return 0, &services.HTTPStatusError{StatusCode: resp.StatusCode, RetryAfter: retryAfter}
	}
	if resp.ContentLength > a.cfg.MaxBytes {
		return 0, services.Wrap(services.ErrResource, "download", "acquirer",
			fmt.Sprintf("clip %s is %s, over the %s ceiling", slug,
				humanize.Bytes(uint64(resp.ContentLength)), humanize.Bytes(uint64(a.cfg.MaxBytes))), nil)
	}

	tmp, err := os.CreateTemp(a.cfg.MediaDir, slug+".*.partial")
	if err != nil {
		return 0, services.Wrap(services.ErrResource, "download", "acquirer", "create temp file", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	var reader io.Reader = resp.Body
	if a.cfg.ShowProgress && isatty.IsTerminal(os.Stderr.Fd()) {
		bar := progressbar.DefaultBytes(resp.ContentLength, slug)
		reader = io.TeeReader(reader, bar)
	}

	// Read one byte past the ceiling so truncated-at-exactly-max bodies are
	// distinguishable from oversized ones.
	written, err := io.Copy(tmp, io.LimitReader(reader, a.cfg.MaxBytes+1))
	if err != nil {
		cleanup()
		return 0, services.Wrap(services.ErrTransient, "download", "acquirer", "stream body", err)
	}
	if written > a.cfg.MaxBytes {
		cleanup()
		return 0, services.Wrap(services.ErrResource, "download", "acquirer",
			fmt.Sprintf("clip %s exceeds the %s ceiling", slug, humanize.Bytes(uint64(a.cfg.MaxBytes))), nil)
	}
	if written == 0 {
		cleanup()
		return 0, services.Wrap(services.ErrValidation, "download", "acquirer", "empty media body", nil)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, services.Wrap(services.ErrResource, "download", "acquirer", "close temp file", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return 0, services.Wrap(services.ErrResource, "download", "acquirer", "move media into place", err)
	}
	return written, nil
}
