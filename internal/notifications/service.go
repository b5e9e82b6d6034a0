package notifications

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"clipminer/internal/config"
	"clipminer/internal/logging"
)

// Service publishes run-level events to an ntfy topic. All methods are
// fire-and-forget; notification failures are logged and never interrupt the
// pipeline.
type Service interface {
	RunStarted(ctx context.Context, words int)
	RunCompleted(ctx context.Context, processed, committed, failed int, elapsed time.Duration)
	RunFailed(ctx context.Context, cause error)
	Test(ctx context.Context) error
}

type ntfyService struct {
	topicURL   string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewService builds a notifier from config. An empty topic yields a no-op
// service, so callers never branch on whether notifications are enabled.
func NewService(cfg *config.Config, logger *logging.Logger) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		topicURL:   topic,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger(logger, "notifications"),
	}
}

func (s *ntfyService) RunStarted(ctx context.Context, words int) {
	s.publish(ctx, "Clip mining started", fmt.Sprintf("%d words queued", words), "arrow_forward")
}

func (s *ntfyService) RunCompleted(ctx context.Context, processed, committed, failed int, elapsed time.Duration) {
	body := fmt.Sprintf("%d words processed, %d clips committed, %d failures in %s",
		processed, committed, failed, elapsed.Round(time.Second))
	s.publish(ctx, "Clip mining finished", body, "white_check_mark")
}

func (s *ntfyService) RunFailed(ctx context.Context, cause error) {
	s.publish(ctx, "Clip mining failed", cause.Error(), "rotating_light")
}

func (s *ntfyService) Test(ctx context.Context) error {
	return s.send(ctx, "Test notification", "clipminer notifications are working", "bell")
}

func (s *ntfyService) publish(ctx context.Context, title, body, tags string) {
	if err := s.send(ctx, title, body, tags); err != nil {
		s.logger.Warn("notification failed", logging.Error(err))
	}
}

func (s *ntfyService) send(ctx context.Context, title, body, tags string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.topicURL, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification: %w", err)
	}
	req.Header.Set("Title", title)
	req.Header.Set("Tags", tags)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification rejected: http %d", resp.StatusCode)
	}
	return nil
}

type noopService struct{}

func (noopService) RunStarted(context.Context, int)                                {}
func (noopService) RunCompleted(context.Context, int, int, int, time.Duration)     {}
func (noopService) RunFailed(context.Context, error)                               {}
func (noopService) Test(context.Context) error {
	return fmt.Errorf("notifications: no ntfy topic configured")
}
