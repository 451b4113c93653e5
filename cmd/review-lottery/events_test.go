package main

import (
	"context"
	"testing"
	"time"
)

func TestProcessEventsExitsOnStop(t *testing.T) {
	// The event processor must shut down with the monitor, not linger
	// until the surrounding context is cancelled.
	em := newEventMonitor(nil, nil, "acme")
	em.mu.Lock()
	em.isRunning = true
	em.mu.Unlock()

	done := make(chan struct{})
	go func() {
		em.processEvents(context.Background())
		close(done)
	}()

	em.stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event processor still running after stop")
	}
}

func TestParseEventURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantOrg  string
		wantRepo string
		wantErr  bool
	}{
		{
			name:     "valid PR URL",
			url:      "https://github.com/acme/widgets/pull/42",
			wantOrg:  "acme",
			wantRepo: "widgets",
		},
		{
			name:    "not a github URL",
			url:     "https://gitlab.com/acme/widgets/merge_requests/42",
			wantErr: true,
		},
		{
			name:    "too short",
			url:     "https://github.com/acme",
			wantErr: true,
		},
		{
			name:    "empty",
			url:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			org, repo, err := parseEventURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseEventURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if org != tt.wantOrg || repo != tt.wantRepo {
				t.Errorf("parseEventURL(%q) = %q, %q; want %q, %q", tt.url, org, repo, tt.wantOrg, tt.wantRepo)
			}
		})
	}
}
