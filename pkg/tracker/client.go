// Package tracker implements the GitHub-backed issue tracker collaborator:
// team rosters, pull request metadata, labels, comments, and issue updates.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const apiBase = "https://api.github.com"

// Retry constants.
const (
	maxRetryAttempts  = 5
	initialRetryDelay = 1 * time.Second
	maxRetryDelay     = 30 * time.Second
)

// Client handles all GitHub API interactions for a single organization.
type Client struct {
	httpClient         HTTPDoer
	org                string
	token              string
	appID              string
	privateKeyPath     string
	privateKeyContent  []byte
	tokenExpiry        time.Time
	installationToken  string
	installationExpiry time.Time
	installationID     int
	tokenMutex         sync.RWMutex
	isAppAuth          bool
}

// Config holds configuration for creating a new tracker client.
type Config struct {
	Organization string
	Token        string // personal access token
	AppID        string // GitHub App ID; when set, App auth is used
	AppKeyPath   string // path to the App private key
	HTTPTimeout  time.Duration
}

// New creates a tracker client using personal token or GitHub App
// authentication, depending on which credentials the config carries.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.AppID != "" {
		return newAppAuthClient(ctx, cfg)
	}
	return newTokenClient(cfg)
}

// Org returns the organization this client operates on.
func (c *Client) Org() string {
	return c.org
}

// Token returns the current token: the installation token under App auth,
// the personal token otherwise.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c.isAppAuth {
		return c.getInstallationToken(ctx)
	}
	c.tokenMutex.RLock()
	defer c.tokenMutex.RUnlock()
	return c.token, nil
}

// drainAndCloseBody drains and closes an HTTP response body to prevent resource leaks.
func drainAndCloseBody(body io.ReadCloser) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		slog.Warn("Failed to drain response body", "error", err)
	}
	if err := body.Close(); err != nil {
		slog.Warn("Failed to close response body", "error", err)
	}
}

// doRequest makes an HTTP request to the GitHub API with retry logic.
func (c *Client) doRequest(ctx context.Context, method, apiURL string, body any) (*http.Response, error) {
	if c.isAppAuth {
		if err := c.refreshJWTIfNeeded(); err != nil {
			return nil, fmt.Errorf("failed to refresh JWT: %w", err)
		}
	}

	slog.Debug("HTTP request", "component", "http", "method", method, "url", apiURL)

	var resp *http.Response
	err := retryWithBackoff(ctx, fmt.Sprintf("%s %s", method, apiURL), func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyBytes, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("failed to marshal request body: %w", err)
			}
			bodyReader = bytes.NewReader(bodyBytes)
		}

		req, err := http.NewRequestWithContext(ctx, method, apiURL, bodyReader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		authToken := c.authToken(ctx)
		if c.isAppAuth {
			req.Header.Set("Authorization", "Bearer "+authToken)
		} else {
			req.Header.Set("Authorization", "token "+authToken)
		}
		req.Header.Set("Accept", "application/vnd.github.v3+json")
		if method == http.MethodPatch || method == http.MethodPost || method == http.MethodPut {
			req.Header.Set("Content-Type", "application/json")
		}

		localResp, err := c.httpClient.Do(req) //nolint:bodyclose // body is closed by the caller or drainAndCloseBody
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		// Rate limits and server errors are retryable; everything else is
		// handed back to the caller as-is.
		if localResp.StatusCode == http.StatusTooManyRequests {
			drainAndCloseBody(localResp.Body)
			slog.Warn("Rate limited - will retry with backoff", "method", method, "url", apiURL, "status", localResp.StatusCode)
			return fmt.Errorf("http %d: rate limited", localResp.StatusCode)
		}
		if localResp.StatusCode >= http.StatusInternalServerError && localResp.StatusCode < 600 {
			drainAndCloseBody(localResp.Body)
			slog.Warn("Server error - will retry with backoff", "method", method, "url", apiURL, "status", localResp.StatusCode)
			return fmt.Errorf("http %d: server error", localResp.StatusCode)
		}

		resp = localResp
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("HTTP response", "component", "http", "method", method, "url", apiURL, "status", resp.StatusCode)
	return resp, nil
}

// authToken picks the right token for the request. Under App auth the
// installation token is preferred; a lookup failure degrades to the JWT.
func (c *Client) authToken(ctx context.Context) string {
	if c.isAppAuth {
		installToken, err := c.getInstallationToken(ctx)
		if err == nil {
			return installToken
		}
		slog.Warn("Failed to get installation token, attempting with JWT (may have limited access)", "org", c.org, "error", err)
	}
	c.tokenMutex.RLock()
	defer c.tokenMutex.RUnlock()
	return c.token
}

// retryWithBackoff executes a function with exponential backoff and jitter.
func retryWithBackoff(ctx context.Context, operation string, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(uint(maxRetryAttempts)),
		retry.Delay(initialRetryDelay),
		retry.MaxDelay(maxRetryDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(initialRetryDelay/4),
		retry.OnRetry(func(n uint, err error) {
			slog.Info("Retry attempt", "component", "retry", "operation", operation, "attempt", n+1, "max_attempts", maxRetryAttempts, "error", err)
		}),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if err == nil {
				return false
			}
			errStr := err.Error()
			return strings.Contains(errStr, "rate limited") ||
				strings.Contains(errStr, "server error") ||
				strings.Contains(errStr, "connection refused") ||
				strings.Contains(errStr, "timeout") ||
				strings.Contains(errStr, "EOF")
		}),
	)
}
