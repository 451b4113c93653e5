package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/review-lottery/pkg/bot"
	"github.com/codeGROOVE-dev/review-lottery/pkg/config"
)

const (
	maxCommandBytes = 4096

	// A sweep that has not completed in two intervals means the loop is
	// wedged; surface that through the health endpoint.
	staleSweepFactor = 2
)

// startServer serves the chat command endpoint and health checks.
func startServer(cfg *config.Config, b *bot.Bot) {
	http.HandleFunc("/command", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBytes))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		reply := b.HandleCommand(r.Context(), string(body))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(reply + "\n")); err != nil {
			slog.Warn("Failed to write response", "error", err)
		}
	})

	http.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		stats := b.Stats()

		status := "ok"
		statusCode := http.StatusOK
		if stats.Sweeps > 0 && time.Since(stats.LastSweep) > staleSweepFactor*cfg.SweepInterval {
			status = "stale"
			statusCode = http.StatusServiceUnavailable
		}

		response := fmt.Sprintf("%s - %d assignments, %d sweeps, %d reminders sent, %d skipped (last sweep: %s)\n",
			status, stats.Assignments, stats.Sweeps, stats.RemindersSent, stats.RemindersSkipped,
			stats.LastSweep.Format(time.RFC3339))

		w.WriteHeader(statusCode)
		if _, err := w.Write([]byte(response)); err != nil {
			slog.Warn("Failed to write response", "error", err)
		}
	})

	http.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Review Lottery Bot\n/command - POST a chat command\n/healthz - Health status\n")); err != nil {
			slog.Warn("Failed to write response", "error", err)
		}
	})

	slog.Info("Starting HTTP server", "port", cfg.Port)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("HTTP server failed", "error", err)
	}
}
