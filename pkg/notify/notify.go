// Package notify delivers chat notifications through an incoming webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const (
	maxRetryAttempts  = 3
	initialRetryDelay = 1 * time.Second
	maxRetryDelay     = 10 * time.Second
)

// Notifier sends a text message to a notification channel.
type Notifier interface {
	Send(ctx context.Context, channel, text string) error
}

// HTTPDoer provides an interface for making HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Webhook posts messages to a chat incoming-webhook URL.
type Webhook struct {
	httpClient HTTPDoer
	url        string
}

// NewWebhook creates a webhook notifier.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
	}
}

// Send posts one message. Transient HTTP failures are retried with backoff;
// after the retry budget the error surfaces to the caller.
func (w *Webhook) Send(ctx context.Context, channel, text string) error {
	payload := map[string]string{
		"channel": channel,
		"text":    text,
	}

	return retry.Do(
		func() error {
			body, err := json.Marshal(payload)
			if err != nil {
				return fmt.Errorf("failed to marshal notification: %w", err)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := w.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("notification request failed: %w", err)
			}
			defer func() {
				if _, err := io.Copy(io.Discard, resp.Body); err != nil {
					slog.Warn("Failed to drain response body", "error", err)
				}
				if err := resp.Body.Close(); err != nil {
					slog.Warn("Failed to close response body", "error", err)
				}
			}()

			if resp.StatusCode == http.StatusTooManyRequests {
				return fmt.Errorf("http %d: rate limited", resp.StatusCode)
			}
			if resp.StatusCode >= http.StatusInternalServerError {
				return fmt.Errorf("http %d: server error", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("webhook rejected notification (status %d)", resp.StatusCode)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(maxRetryAttempts),
		retry.Delay(initialRetryDelay),
		retry.MaxDelay(maxRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			slog.Info("Retry attempt", "component", "notify", "attempt", n+1, "max_attempts", maxRetryAttempts, "error", err)
		}),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if err == nil {
				return false
			}
			errStr := err.Error()
			return strings.Contains(errStr, "rate limited") ||
				strings.Contains(errStr, "server error") ||
				strings.Contains(errStr, "request failed")
		}),
	)
}

// LogOnly is used when no webhook URL is configured: notifications are
// logged instead of delivered, so the rest of the workflow still runs.
type LogOnly struct{}

// Send logs the would-be notification.
func (LogOnly) Send(_ context.Context, channel, text string) error {
	slog.Info("Notification (no webhook configured)", "component", "notify", "channel", channel, "text", strings.TrimSpace(text))
	return nil
}
