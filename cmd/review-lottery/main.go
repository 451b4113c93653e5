// Package main runs the review lottery bot: it assigns pull request
// reviewers by weighted lottery, tracks pending reviews, and reminds
// reviewers when a review goes stale.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/codeGROOVE-dev/review-lottery/pkg/bot"
	"github.com/codeGROOVE-dev/review-lottery/pkg/config"
	"github.com/codeGROOVE-dev/review-lottery/pkg/lottery"
	"github.com/codeGROOVE-dev/review-lottery/pkg/notify"
	"github.com/codeGROOVE-dev/review-lottery/pkg/state"
	"github.com/codeGROOVE-dev/review-lottery/pkg/tracker"
)

const (
	httpTimeout    = 30 * time.Second
	webhookTimeout = 10 * time.Second
)

var (
	dryRun        = flag.Bool("dry-run", false, "Run without posting comments or mutating issues")
	sweepInterval = flag.Duration("sweep-interval", 0, "Override for the reminder sweep interval")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Chat bot that assigns pull request reviewers by weighted lottery.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  RL_GITHUB_TOKEN     - GitHub personal access token\n")
		fmt.Fprintf(os.Stderr, "  RL_APP_ID           - GitHub App ID (alternative to token)\n")
		fmt.Fprintf(os.Stderr, "  RL_APP_KEY_PATH     - Path to GitHub App private key file\n")
		fmt.Fprintf(os.Stderr, "  RL_ORG              - GitHub organization\n")
		fmt.Fprintf(os.Stderr, "  RL_DEFAULT_TEAM     - Team used when a repository has no override\n")
		fmt.Fprintf(os.Stderr, "  RL_STATE_DIR        - Directory for persisted state (in-memory if unset)\n")
		fmt.Fprintf(os.Stderr, "  RL_WEBHOOK_URL      - Chat webhook for direct notifications\n")
		fmt.Fprintf(os.Stderr, "  RL_EVENTS           - Enable the pull request event monitor\n")
		fmt.Fprintf(os.Stderr, "  PORT                - HTTP server port (default: 8080)\n")
	}
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		if errors.Is(err, config.ErrConfigurationMissing) {
			slog.Error("Refusing to start", "error", err)
		} else {
			slog.Error("Failed to load configuration", "error", err)
		}
		os.Exit(1)
	}

	if cfg.Debug {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}
	if *sweepInterval > 0 {
		cfg.SweepInterval = *sweepInterval
	}

	store, err := openStore(cfg)
	if err != nil {
		slog.Error("Failed to open state store", "error", err)
		os.Exit(1)
	}

	st, err := state.Load(store)
	if err != nil {
		slog.Error("Failed to load persisted state", "error", err)
		os.Exit(1)
	}

	trk, err := tracker.New(ctx, tracker.Config{
		Organization: cfg.Organization,
		Token:        cfg.Token,
		AppID:        cfg.AppID,
		AppKeyPath:   cfg.AppKeyPath,
		HTTPTimeout:  httpTimeout,
	})
	if err != nil {
		slog.Error("Failed to create tracker client", "error", err)
		os.Exit(1)
	}

	var notifier notify.Notifier
	if cfg.WebhookURL != "" {
		notifier = notify.NewWebhook(cfg.WebhookURL, webhookTimeout)
	} else {
		slog.Info("No webhook URL configured, direct notifications will be logged only")
		notifier = notify.LogOnly{}
	}

	b := bot.New(bot.Options{
		Config:   cfg,
		State:    st,
		Tracker:  trk,
		Notifier: notifier,
		Lottery:  lottery.New(rand.NewSource(time.Now().UnixNano())),
		DryRun:   *dryRun,
	})

	slog.Info("Starting review lottery bot",
		"org", cfg.Organization,
		"default_team", cfg.DefaultTeam,
		"sweep_interval", cfg.SweepInterval,
		"dry_run", *dryRun)

	run(ctx, cfg, b, trk)
}

// openStore picks disk persistence when a state directory is configured and
// falls back to a memory store otherwise.
func openStore(cfg *config.Config) (state.Store, error) {
	if cfg.StateDir == "" {
		slog.Warn("No state directory configured, state will not survive restarts")
		return state.NewMemoryStore(), nil
	}
	return state.NewDiskStore(cfg.StateDir)
}

// run starts the HTTP server and the event monitor, then drives the
// reminder sweep loop until the context is cancelled.
func run(ctx context.Context, cfg *config.Config, b *bot.Bot, trk *tracker.Client) {
	go startServer(cfg, b)

	if cfg.Events {
		monitor := newEventMonitor(b, trk, cfg.Organization)
		if err := monitor.start(ctx); err != nil {
			slog.Error("Failed to start event monitor", "error", err)
		} else {
			defer monitor.stop()
		}
	}

	// Sweep immediately, then on the configured interval.
	for {
		select {
		case <-ctx.Done():
			slog.Info("Context cancelled, shutting down")
			return
		default:
			start := time.Now()
			result := b.Sweep(ctx)
			slog.Info("Sweep loop iteration complete",
				"checked", result.Checked,
				"reminded", result.Reminded,
				"duration", time.Since(start).Round(time.Millisecond),
				"next_in", cfg.SweepInterval)

			timer := time.NewTimer(cfg.SweepInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}
