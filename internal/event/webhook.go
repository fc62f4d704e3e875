package event

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	webhookTimeout   = 10 * time.Second
	webhookBaseDelay = 500 * time.Millisecond
	webhookAttempts  = 4
)

// WebhookSink POSTs each event as JSON to a configured URL. Delivery runs
// in its own goroutine with bounded exponential backoff; the domain
// transaction that produced the event has already committed, so failures
// are only logged.
type WebhookSink struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

func NewWebhookSink(url string, logger *slog.Logger) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: webhookTimeout},
		logger: logger,
	}
}

func (s *WebhookSink) Emit(e Event) {
	body, err := json.Marshal(e)
	if err != nil {
		s.logger.Error("marshal event", "event_id", e.ID, "error", err)
		return
	}

	go func() {
		backoff := retry.WithMaxRetries(webhookAttempts, retry.NewExponential(webhookBaseDelay))
		err := retry.Do(context.Background(), backoff, func(ctx context.Context) error {
			return retry.RetryableError(s.deliver(ctx, body))
		})
		if err != nil {
			s.logger.Warn("webhook delivery failed", "event_id", e.ID, "type", e.Type, "error", err)
		}
	}()
}

func (s *WebhookSink) deliver(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
