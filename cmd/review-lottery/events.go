package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/codeGROOVE-dev/review-lottery/pkg/bot"
	"github.com/codeGROOVE-dev/review-lottery/pkg/tracker"
	"github.com/codeGROOVE-dev/sprinkler/pkg/client"
)

const (
	eventChannelSize      = 100             // Buffer size for event channel
	eventDedupWindow      = 5 * time.Second // Time window for deduplicating events
	eventMapMaxSize       = 1000            // Maximum entries in event dedup map
	eventMapCleanupAge    = 1 * time.Hour   // Age threshold for cleaning up old entries
	sweepMaxRetries       = 3
	sweepMaxDelay         = 10 * time.Second
	connectionHealthCheck = 2 * time.Minute
	maxReconnectAttempts  = 100
	reconnectBackoff      = 30 * time.Second
)

// eventMonitor subscribes to pull request events over WebSocket and sweeps
// the review queue for a repository whenever one of its PRs changes, so
// resolved reviews drop out of the queue between scheduled sweeps.
type eventMonitor struct {
	mu              sync.RWMutex
	lastConnectedAt time.Time
	lastEventAt     time.Time
	bot             *bot.Bot
	tracker         *tracker.Client
	client          *client.Client
	eventChan       chan string          // Repository names that need a sweep
	lastEventMap    map[string]time.Time // Track last event per URL to dedupe
	stopChan        chan struct{}
	org             string
	reconnects      int
	isRunning       bool
	isConnected     bool
	isStopped       bool
}

// newEventMonitor creates an event monitor for the configured org.
func newEventMonitor(b *bot.Bot, trk *tracker.Client, org string) *eventMonitor {
	return &eventMonitor{
		bot:          b,
		tracker:      trk,
		org:          org,
		eventChan:    make(chan string, eventChannelSize),
		lastEventMap: make(map[string]time.Time),
		stopChan:     make(chan struct{}),
	}
}

// start begins monitoring for PR events.
func (em *eventMonitor) start(ctx context.Context) error {
	em.mu.Lock()
	if em.isRunning {
		em.mu.Unlock()
		slog.Info("Monitor already running", "component", "events", "org", em.org)
		return nil
	}
	em.isRunning = true
	em.isStopped = false
	em.mu.Unlock()

	slog.Info("Starting event monitor", "component", "events", "org", em.org)

	go em.processEvents(ctx)
	go em.manageConnection(ctx)
	go em.monitorHealth(ctx)

	return nil
}

// manageConnection keeps the WebSocket connection alive. The sprinkler
// client reconnects internally with backoff; this loop restarts it when it
// gives up entirely.
func (em *eventMonitor) manageConnection(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Connection manager panic", "component", "events", "org", em.org, "panic", r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Context cancelled, stopping connection manager", "component", "events", "org", em.org)
			return
		case <-em.stopChan:
			return
		default:
			em.mu.RLock()
			stopped := em.isStopped
			em.mu.RUnlock()
			if stopped {
				return
			}

			if err := em.connectWebSocket(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}

				em.mu.Lock()
				em.reconnects++
				attempts := em.reconnects
				em.mu.Unlock()

				if attempts >= maxReconnectAttempts {
					slog.Error("Max reconnection attempts reached, giving up", "component", "events", "org", em.org, "attempts", attempts)
					return
				}

				backoff := reconnectBackoff * time.Duration(attempts)
				if backoff > 5*time.Minute {
					backoff = 5 * time.Minute
				}

				slog.Warn("WebSocket client gave up, restarting after backoff",
					"component", "events",
					"org", em.org,
					"attempt", attempts,
					"backoff", backoff,
					"error", err)

				select {
				case <-ctx.Done():
					return
				case <-em.stopChan:
					return
				case <-time.After(backoff):
				}
			} else {
				em.mu.Lock()
				em.reconnects = 0
				em.mu.Unlock()

				select {
				case <-ctx.Done():
					return
				case <-em.stopChan:
					return
				case <-time.After(5 * time.Second):
				}
			}
		}
	}
}

// connectWebSocket establishes a WebSocket connection and blocks until the
// client stops.
func (em *eventMonitor) connectWebSocket(ctx context.Context) error {
	config := client.Config{
		ServerURL:    "wss://" + client.DefaultServerAddress + "/ws",
		Organization: em.org,
		TokenProvider: func() (string, error) {
			token, err := em.tracker.Token(ctx)
			if err != nil {
				return "", fmt.Errorf("failed to get token: %w", err)
			}
			return token, nil
		},
		EventTypes:     []string{"pull_request"},
		UserEventsOnly: false,
		Verbose:        false,
		NoReconnect:    false,
		OnConnect: func() {
			em.mu.Lock()
			em.isConnected = true
			em.lastConnectedAt = time.Now()
			em.mu.Unlock()
			slog.Info("WebSocket connected", "component", "events", "org", em.org)
		},
		OnDisconnect: func(err error) {
			em.mu.Lock()
			wasConnected := em.isConnected
			em.isConnected = false
			em.mu.Unlock()
			if err != nil && !errors.Is(err, context.Canceled) && wasConnected {
				slog.Warn("WebSocket disconnected", "component", "events", "org", em.org, "error", err)
			}
		},
		OnEvent: func(event client.Event) {
			em.handleEvent(event)
		},
	}

	wsClient, err := client.New(config)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	em.mu.Lock()
	em.client = wsClient
	em.mu.Unlock()

	startTime := time.Now()
	if err := wsClient.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("WebSocket client stopped with error",
			"component", "events",
			"org", em.org,
			"uptime", time.Since(startTime).Round(time.Second),
			"error", err)
		return err
	}

	slog.Info("WebSocket client stopped", "component", "events", "org", em.org, "uptime", time.Since(startTime).Round(time.Second))
	return nil
}

// monitorHealth periodically logs connection health.
func (em *eventMonitor) monitorHealth(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Health monitor panic", "component", "events", "org", em.org, "panic", r)
		}
	}()

	ticker := time.NewTicker(connectionHealthCheck)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-em.stopChan:
			return
		case <-ticker.C:
			em.mu.RLock()
			isConnected := em.isConnected
			lastConnected := em.lastConnectedAt
			lastEvent := em.lastEventAt
			stopped := em.isStopped
			em.mu.RUnlock()

			if stopped {
				return
			}

			now := time.Now()
			switch {
			case isConnected:
				var timeSinceEvent time.Duration
				if !lastEvent.IsZero() {
					timeSinceEvent = now.Sub(lastEvent)
				}
				slog.Info("Event monitor health check - connected",
					"component", "events",
					"org", em.org,
					"connected_for", now.Sub(lastConnected).Round(time.Second),
					"time_since_last_event", timeSinceEvent.Round(time.Second))
			case !lastConnected.IsZero():
				slog.Warn("Event monitor health check - disconnected",
					"component", "events",
					"org", em.org,
					"disconnected_for", now.Sub(lastConnected).Round(time.Second))
			default:
				slog.Info("Event monitor health check - not yet connected", "component", "events", "org", em.org)
			}
		}
	}
}

// handleEvent filters and dedupes incoming PR events, then queues the
// affected repository for a sweep.
func (em *eventMonitor) handleEvent(event client.Event) {
	if event.Type != "pull_request" {
		return
	}
	if event.URL == "" {
		slog.Warn("Received PR event with empty URL", "component", "events")
		return
	}

	org, repo, err := parseEventURL(event.URL)
	if err != nil {
		slog.Warn("Failed to parse event URL", "component", "events", "url", event.URL, "error", err)
		return
	}
	if org != em.org {
		slog.Debug("Ignoring event for different org", "component", "events", "event_org", org, "monitor_org", em.org)
		return
	}

	em.mu.Lock()
	now := time.Now()
	if lastSeen, exists := em.lastEventMap[event.URL]; exists && now.Sub(lastSeen) < eventDedupWindow {
		em.mu.Unlock()
		return
	}
	em.lastEventMap[event.URL] = now
	em.lastEventAt = now

	// Clean up old entries to prevent memory leak
	if len(em.lastEventMap) > eventMapMaxSize {
		cutoff := now.Add(-eventMapCleanupAge)
		for url, timestamp := range em.lastEventMap {
			if timestamp.Before(cutoff) {
				delete(em.lastEventMap, url)
			}
		}
	}
	em.mu.Unlock()

	slog.Info("PR event received", "component", "events", "url", event.URL, "repo", repo)

	select {
	case em.eventChan <- repo:
	default:
		slog.Warn("Event channel full, dropping event", "component", "events", "url", event.URL)
	}
}

// processEvents sweeps repositories as their events arrive.
func (em *eventMonitor) processEvents(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event processor panic", "component", "events", "panic", r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-em.stopChan:
			return
		case repo := <-em.eventChan:
			em.sweepRepo(ctx, repo)
		}
	}
}

// sweepRepo sweeps one repository's queued reviews, retrying when the sweep
// hit lookup failures.
func (em *eventMonitor) sweepRepo(ctx context.Context, repo string) {
	startTime := time.Now()

	err := retry.Do(func() error {
		result := em.bot.SweepRepo(ctx, repo)
		if result.Errors > 0 {
			return fmt.Errorf("%d lookup failures sweeping %s", result.Errors, repo)
		}
		return nil
	},
		retry.Attempts(sweepMaxRetries),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxDelay(sweepMaxDelay),
		retry.OnRetry(func(n uint, err error) {
			slog.Info("Retrying repo sweep", "component", "events", "attempt", n+1, "repo", repo, "error", err)
		}),
		retry.Context(ctx),
	)
	if err != nil {
		slog.Error("Repo sweep incomplete after retries",
			"component", "events",
			"repo", repo,
			"elapsed", time.Since(startTime).Round(time.Millisecond),
			"error", err)
		return
	}

	slog.Info("Repo sweep complete",
		"component", "events",
		"repo", repo,
		"elapsed", time.Since(startTime).Round(time.Millisecond))
}

// stop stops the event monitor.
func (em *eventMonitor) stop() {
	em.mu.Lock()
	if !em.isRunning {
		em.mu.Unlock()
		return
	}
	em.isRunning = false
	em.isStopped = true
	em.mu.Unlock()

	close(em.stopChan)

	em.mu.RLock()
	wsClient := em.client
	em.mu.RUnlock()
	if wsClient != nil {
		wsClient.Stop()
	}

	slog.Info("Event monitor stopped", "component", "events", "org", em.org)
}

// parseEventURL extracts the org and repository from a PR event URL.
// URL format: https://github.com/org/repo/pull/123
func parseEventURL(url string) (org, repo string, err error) {
	const minParts = 5
	parts := strings.Split(url, "/")
	if len(parts) < minParts || parts[2] != "github.com" {
		return "", "", fmt.Errorf("invalid GitHub PR URL format: %s", url)
	}
	return parts[3], parts[4], nil
}
