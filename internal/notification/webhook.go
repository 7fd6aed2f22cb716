package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	webhookAttempts = 3
	webhookBackoff  = 500 * time.Millisecond
)

// errPermanent marks a webhook failure that a retry cannot fix.
var errPermanent = errors.New("permanent")

// WebhookNotifier POSTs each alert as JSON to an HTTP endpoint. Transport
// errors and 5xx responses are retried with a doubling delay; 4xx responses
// fail at once.
type WebhookNotifier struct {
	url      string
	client   *http.Client
	attempts int
	backoff  time.Duration
	log      zerolog.Logger
}

// NewWebhookNotifier creates a webhook notifier for url.
func NewWebhookNotifier(url string, logger zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:      url,
		client:   &http.Client{Timeout: 10 * time.Second},
		attempts: webhookAttempts,
		backoff:  webhookBackoff,
		log:      logger.With().Str("component", "webhook").Logger(),
	}
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	if alert.TS.IsZero() {
		alert.TS = time.Now().UTC()
	}
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	delay := w.backoff
	for attempt := 1; ; attempt++ {
		err = w.post(ctx, alert.Level, body)
		if err == nil {
			w.log.Debug().Str("title", alert.Title).Int("attempt", attempt).Msg("sent alert")
			return nil
		}
		if errors.Is(err, errPermanent) || attempt >= w.attempts {
			return err
		}
		w.log.Debug().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("webhook retry")
		select {
		case <-ctx.Done():
			return fmt.Errorf("webhook: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (w *WebhookNotifier) post(ctx context.Context, level AlertLevel, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w: %w", errPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Alert-Level", string(level))

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		return fmt.Errorf("webhook: status %d", resp.StatusCode)
	default:
		return fmt.Errorf("webhook: status %d: %w", resp.StatusCode, errPermanent)
	}
}
