package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/review-lottery/pkg/types"
)

func (f *fixture) enqueue(t *testing.T, repo string, number int) time.Time {
	t.Helper()
	now := f.clock.Now()
	if _, err := f.state.Enqueue(repo, number, now); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}
	return now
}

func (f *fixture) markAwaiting(repo string, number int, assignee string) {
	f.tracker.SetIssueLabels(repo, number, &types.IssueLabels{
		Labels:   []string{"awaiting-review"},
		Assignee: assignee,
	})
}

func TestSweepFreshEntryNoReminder(t *testing.T) {
	f := newFixture(t)
	f.enqueue(t, "widgets", 41)
	f.markAwaiting("widgets", 41, "bob")
	if err := f.state.SetAlias("bob", "@bob.builder"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Threshold is 3h; at t0+2h the review is not yet stale.
	f.clock.Advance(2 * time.Hour)
	result := f.bot.Sweep(context.Background())

	if result.Reminded != 0 {
		t.Errorf("expected no reminder, got %d", result.Reminded)
	}
	if len(f.notifier.Sent()) != 0 {
		t.Errorf("unexpected notifications: %v", f.notifier.Sent())
	}
	if len(f.state.QueueSnapshot()["widgets"]) != 1 {
		t.Error("entry was dropped before resolution")
	}
}

func TestSweepStaleEntryReminds(t *testing.T) {
	f := newFixture(t)
	t0 := f.enqueue(t, "widgets", 41)
	f.markAwaiting("widgets", 41, "bob")
	if err := f.state.SetAlias("bob", "@bob.builder"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.clock.Advance(4 * time.Hour)
	result := f.bot.Sweep(context.Background())

	if result.Reminded != 1 {
		t.Errorf("expected one reminder, got %d", result.Reminded)
	}
	sent := f.notifier.Sent()
	if len(sent) != 1 || sent[0].Channel != "@bob.builder" {
		t.Fatalf("expected reminder to @bob.builder, got %v", sent)
	}

	// The entry stays queued with its original timestamp while the label
	// is still present.
	queue := f.state.QueueSnapshot()
	if len(queue["widgets"]) != 1 || !queue["widgets"][0].SubmittedAt.Equal(t0) {
		t.Errorf("entry not retained unchanged: %v", queue)
	}
}

func TestSweepDropsResolvedReviews(t *testing.T) {
	f := newFixture(t)
	f.enqueue(t, "widgets", 41)
	// Label cleared by the reviewer: review is done.
	f.tracker.SetIssueLabels("widgets", 41, &types.IssueLabels{Labels: []string{"bug"}})

	result := f.bot.Sweep(context.Background())

	if result.Resolved != 1 {
		t.Errorf("expected one resolved review, got %d", result.Resolved)
	}
	if len(f.state.QueueSnapshot()) != 0 {
		t.Errorf("resolved review still queued: %v", f.state.QueueSnapshot())
	}
}

func TestSweepFailOpenOnLookupError(t *testing.T) {
	f := newFixture(t)
	t0 := f.enqueue(t, "widgets", 41)
	f.tracker.SetIssueError("IssueLabels", "widgets", 41, errors.New("boom"))

	f.clock.Advance(5 * time.Hour)
	result := f.bot.Sweep(context.Background())

	if result.Errors != 1 {
		t.Errorf("expected one lookup error, got %d", result.Errors)
	}

	// The entry survives, unmodified, despite being past the threshold.
	queue := f.state.QueueSnapshot()
	if len(queue["widgets"]) != 1 || !queue["widgets"][0].SubmittedAt.Equal(t0) {
		t.Errorf("entry lost or modified on lookup failure: %v", queue)
	}
	if len(f.notifier.Sent()) != 0 {
		t.Error("reminder sent despite lookup failure")
	}
}

func TestSweepErrorOnOneEntryDoesNotAbort(t *testing.T) {
	f := newFixture(t)
	f.enqueue(t, "widgets", 41)
	f.enqueue(t, "widgets", 42)
	f.tracker.SetIssueError("IssueLabels", "widgets", 41, errors.New("boom"))
	// #42 resolved.
	f.tracker.SetIssueLabels("widgets", 42, &types.IssueLabels{})

	result := f.bot.Sweep(context.Background())

	if result.Errors != 1 || result.Resolved != 1 {
		t.Errorf("expected the sweep to continue past the failure: %+v", result)
	}
}

func TestSweepSkipsReminderWithoutAlias(t *testing.T) {
	f := newFixture(t)
	f.enqueue(t, "widgets", 41)
	f.markAwaiting("widgets", 41, "bob") // no alias registered for bob

	f.clock.Advance(4 * time.Hour)
	result := f.bot.Sweep(context.Background())

	if result.Skipped != 1 {
		t.Errorf("expected one skipped reminder, got %d", result.Skipped)
	}
	if result.Reminded != 0 || len(f.notifier.Sent()) != 0 {
		t.Error("reminder sent despite missing alias")
	}
	// Skipping is not an error and the entry stays queued.
	if result.Errors != 0 || len(f.state.QueueSnapshot()["widgets"]) != 1 {
		t.Errorf("skip mishandled: %+v", result)
	}
}

func TestSweepSkipsReminderWithoutAssignee(t *testing.T) {
	f := newFixture(t)
	f.enqueue(t, "widgets", 41)
	f.markAwaiting("widgets", 41, "")

	f.clock.Advance(4 * time.Hour)
	result := f.bot.Sweep(context.Background())

	if result.Skipped != 1 || result.Reminded != 0 {
		t.Errorf("expected skip for assignee-less review: %+v", result)
	}
}

func TestSweepRepoLeavesOtherReposUntouched(t *testing.T) {
	f := newFixture(t)
	f.enqueue(t, "widgets", 41)
	f.enqueue(t, "gadgets", 7)
	// widgets#41 resolved; gadgets#7 would resolve too, but is outside
	// the targeted sweep and must not even be looked up.
	f.tracker.SetIssueLabels("widgets", 41, &types.IssueLabels{})
	f.tracker.SetIssueError("IssueLabels", "gadgets", 7, errors.New("must not be called"))

	result := f.bot.SweepRepo(context.Background(), "widgets")

	if result.Checked != 1 || result.Resolved != 1 || result.Errors != 0 {
		t.Errorf("targeted sweep touched other repos: %+v", result)
	}
	queue := f.state.QueueSnapshot()
	if len(queue["widgets"]) != 0 {
		t.Error("resolved entry retained")
	}
	if len(queue["gadgets"]) != 1 {
		t.Error("untargeted repo entry lost")
	}
}

func TestSweepUpdatesMetrics(t *testing.T) {
	f := newFixture(t)
	f.enqueue(t, "widgets", 41)
	f.markAwaiting("widgets", 41, "bob")

	f.clock.Advance(4 * time.Hour)
	f.bot.Sweep(context.Background())

	stats := f.bot.Stats()
	if stats.Sweeps != 1 {
		t.Errorf("expected one sweep recorded, got %d", stats.Sweeps)
	}
	if stats.RemindersSkipped != 1 {
		t.Errorf("expected one skipped reminder recorded, got %d", stats.RemindersSkipped)
	}
	if !stats.LastSweep.Equal(f.clock.Now()) {
		t.Errorf("expected last sweep at %v, got %v", f.clock.Now(), stats.LastSweep)
	}
}
