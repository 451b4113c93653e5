package bot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/codeGROOVE-dev/review-lottery/pkg/types"
)

// SweepResult summarizes one pass over the review queue.
type SweepResult struct {
	Checked  int
	Resolved int
	Reminded int
	Skipped  int // reminders with no registered alias or no assignee
	Errors   int // per-entry lookup failures (entries carried over)
	Carried  int
}

// Sweep walks every queued review: entries whose awaiting-review label has
// been cleared are dropped, stale entries trigger a reminder to the
// assignee, and lookup failures carry the entry over unchanged (fail-open).
func (b *Bot) Sweep(ctx context.Context) SweepResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sweepLocked(ctx, "")
}

// SweepRepo sweeps a single repository's queued reviews. Used by the event
// monitor when a pull request in a queued repository changes.
func (b *Bot) SweepRepo(ctx context.Context, repo string) SweepResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sweepLocked(ctx, repo)
}

func (b *Bot) sweepLocked(ctx context.Context, onlyRepo string) SweepResult {
	snapshot := b.state.QueueSnapshot()
	rebuilt := make(map[string][]types.QueuedReview, len(snapshot))
	now := b.clock.Now()

	var result SweepResult
	for repo, entries := range snapshot {
		if onlyRepo != "" && repo != onlyRepo {
			rebuilt[repo] = entries
			continue
		}
		for _, entry := range entries {
			result.Checked++

			labels, err := b.tracker.IssueLabels(ctx, repo, entry.Number)
			if err != nil {
				// Never drop a review over a transient lookup failure.
				slog.Warn("Lookup failed, carrying review over", "component", "sweep", "repo", repo, "pr", entry.Number, "error", err)
				rebuilt[repo] = append(rebuilt[repo], entry)
				result.Errors++
				result.Carried++
				continue
			}

			if !slices.Contains(labels.Labels, b.cfg.ReviewLabel) {
				slog.Info("Review resolved, dropping from queue", "component", "sweep", "repo", repo, "pr", entry.Number)
				result.Resolved++
				continue
			}

			rebuilt[repo] = append(rebuilt[repo], entry)
			result.Carried++

			if now.Sub(entry.SubmittedAt) < b.cfg.StaleThreshold {
				continue
			}
			sent, skipped := b.remind(ctx, repo, entry, labels.Assignee)
			result.Reminded += sent
			result.Skipped += skipped
		}
	}

	if err := b.state.ReplaceQueue(rebuilt, snapshot); err != nil {
		slog.Error("Failed to publish rebuilt queue", "component", "sweep", "error", err)
	}
	b.recordSweep(result.Reminded, result.Skipped)

	slog.Info("Sweep complete", "component", "sweep",
		"checked", result.Checked,
		"resolved", result.Resolved,
		"reminded", result.Reminded,
		"skipped", result.Skipped,
		"errors", result.Errors)
	return result
}

// remind notifies the assignee of a stale review. A review with no
// assignee or no registered alias is skipped, not an error; the gap shows
// up in the logs and the sweep counters.
func (b *Bot) remind(ctx context.Context, repo string, entry types.QueuedReview, assignee string) (sent, skipped int) {
	if assignee == "" {
		slog.Warn("Stale review has no assignee, skipping reminder", "component", "sweep", "repo", repo, "pr", entry.Number)
		return 0, 1
	}

	channel, ok := b.state.AliasFor(assignee)
	if !ok {
		slog.Warn("No notification alias for assignee, skipping reminder", "component", "sweep", "repo", repo, "pr", entry.Number, "assignee", assignee)
		return 0, 1
	}

	age := b.clock.Now().Sub(entry.SubmittedAt).Round(time.Second)
	text := fmt.Sprintf("Reminder: %s#%d has been awaiting your review for %s.", repo, entry.Number, age)
	if err := b.notifier.Send(ctx, channel, text); err != nil {
		slog.Warn("Failed to send reminder", "component", "sweep", "repo", repo, "pr", entry.Number, "channel", channel, "error", err)
		return 0, 1
	}
	return 1, 0
}
