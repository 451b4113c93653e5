// Package config loads the bot's environment-driven configuration.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/codeGROOVE-dev/gsm"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// ErrConfigurationMissing prevents the bot from activating. It is reported
// once at startup with a description of what is missing.
var ErrConfigurationMissing = errors.New("configuration missing")

// Config is the full environment-style configuration surface.
type Config struct {
	// Tracker access. Either a personal token or GitHub App credentials
	// must be present; the token falls back to Google Secret Manager.
	Token       string `env:"RL_GITHUB_TOKEN"`
	TokenSecret string `env:"RL_GITHUB_TOKEN_SECRET" env-default:"review-lottery-github-token"`
	AppID       string `env:"RL_APP_ID"`
	AppKeyPath  string `env:"RL_APP_KEY_PATH"`

	Organization string `env:"RL_ORG"`
	DefaultTeam  string `env:"RL_DEFAULT_TEAM"`

	// Notification messages. Both templates take the reviewer login and
	// the pull request URL, in that order.
	MessageTemplate       string `env:"RL_MESSAGE_TEMPLATE" env-default:"@%s you have been selected to review %s"`
	PoliteMessageTemplate string `env:"RL_POLITE_MESSAGE_TEMPLATE" env-default:"@%s would you kindly review %s when you have a moment?"`
	ShowAvatars           bool   `env:"RL_SHOW_AVATARS" env-default:"false"`

	// Review tracking.
	ReviewLabel    string        `env:"RL_REVIEW_LABEL" env-default:"awaiting-review"`
	StaleThreshold time.Duration `env:"RL_STALE_THRESHOLD" env-default:"24h"`
	SweepInterval  time.Duration `env:"RL_SWEEP_INTERVAL" env-default:"1h"`

	StateDir   string `env:"RL_STATE_DIR"`
	WebhookURL string `env:"RL_WEBHOOK_URL"`
	Events     bool   `env:"RL_EVENTS" env-default:"false"`
	Debug      bool   `env:"RL_DEBUG" env-default:"false"`
	Port       string `env:"PORT" env-default:"8080"`
}

// Load reads configuration from the environment (plus an optional .env
// file) and validates the required fields.
func Load(ctx context.Context) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			slog.Warn("Failed to load .env file", "component", "config", "error", err)
		}
	}

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if cfg.Token == "" && cfg.AppID == "" {
		// Last resort before refusing to start: the token may live in
		// Google Secret Manager.
		if secret, err := gsm.Secret(ctx, cfg.TokenSecret); err == nil && secret != "" {
			cfg.Token = secret
			slog.Info("Loaded tracker token from secret manager", "component", "config", "secret", cfg.TokenSecret)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Token == "" && c.AppID == "" {
		return fmt.Errorf("%w: tracker auth token (RL_GITHUB_TOKEN or RL_APP_ID)", ErrConfigurationMissing)
	}
	if c.Organization == "" {
		return fmt.Errorf("%w: organization (RL_ORG)", ErrConfigurationMissing)
	}
	if c.DefaultTeam == "" {
		return fmt.Errorf("%w: default team (RL_DEFAULT_TEAM)", ErrConfigurationMissing)
	}
	return nil
}
