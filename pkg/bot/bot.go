// Package bot ties the lottery, the persisted state, and the external
// collaborators together: it parses chat commands, runs the assignment
// workflow, and sweeps the review queue for stale reviews.
package bot

import (
	"sync"
	"time"

	"github.com/codeGROOVE-dev/review-lottery/pkg/config"
	"github.com/codeGROOVE-dev/review-lottery/pkg/lottery"
	"github.com/codeGROOVE-dev/review-lottery/pkg/notify"
	"github.com/codeGROOVE-dev/review-lottery/pkg/state"
	"github.com/codeGROOVE-dev/review-lottery/pkg/tracker"
)

// Clock provides the current time. Injected so reminder timing is
// controllable in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// Bot handles chat commands and reminder sweeps. Commands and sweep ticks
// are serialized: each runs to completion as one logical operation before
// the next is processed.
type Bot struct {
	cfg      *config.Config
	state    *state.State
	tracker  tracker.API
	notifier notify.Notifier
	lottery  *lottery.Lottery
	clock    Clock
	metrics  Metrics
	mu       sync.Mutex
	dryRun   bool
}

// Options carries the collaborators a Bot needs.
type Options struct {
	Config   *config.Config
	State    *state.State
	Tracker  tracker.API
	Notifier notify.Notifier
	Lottery  *lottery.Lottery
	Clock    Clock
	DryRun   bool
}

// New creates a Bot.
func New(opts Options) *Bot {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &Bot{
		cfg:      opts.Config,
		state:    opts.State,
		tracker:  opts.Tracker,
		notifier: opts.Notifier,
		lottery:  opts.Lottery,
		clock:    clock,
		dryRun:   opts.DryRun,
	}
}

// Metrics tracks counters for the health endpoint.
type Metrics struct {
	mu               sync.RWMutex
	lastSweep        time.Time
	assignments      int64
	sweeps           int64
	remindersSent    int64
	remindersSkipped int64
}

// Stats is a snapshot of the bot's counters.
type Stats struct {
	LastSweep        time.Time
	Assignments      int64
	Sweeps           int64
	RemindersSent    int64
	RemindersSkipped int64
}

// Stats returns the current counters.
func (b *Bot) Stats() Stats {
	b.metrics.mu.RLock()
	defer b.metrics.mu.RUnlock()
	return Stats{
		LastSweep:        b.metrics.lastSweep,
		Assignments:      b.metrics.assignments,
		Sweeps:           b.metrics.sweeps,
		RemindersSent:    b.metrics.remindersSent,
		RemindersSkipped: b.metrics.remindersSkipped,
	}
}

func (b *Bot) recordAssignment() {
	b.metrics.mu.Lock()
	defer b.metrics.mu.Unlock()
	b.metrics.assignments++
}

func (b *Bot) recordSweep(sent, skipped int) {
	b.metrics.mu.Lock()
	defer b.metrics.mu.Unlock()
	b.metrics.sweeps++
	b.metrics.remindersSent += int64(sent)
	b.metrics.remindersSkipped += int64(skipped)
	b.metrics.lastSweep = b.clock.Now()
}
