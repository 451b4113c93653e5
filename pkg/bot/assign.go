package bot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/codeGROOVE-dev/review-lottery/pkg/lottery"
	"github.com/codeGROOVE-dev/review-lottery/pkg/types"
)

// Assign runs one reviewer assignment for a pull request. Steps run in
// order and the first failure aborts the rest; external side effects
// already applied (a posted comment, say) are not rolled back.
func (b *Bot) Assign(ctx context.Context, repo string, number int, polite bool) (*types.AssignmentResult, error) {
	team := b.state.TeamFor(repo, b.cfg.DefaultTeam)
	slog.Info("Starting assignment", "component", "assign", "repo", repo, "pr", number, "team", team, "polite", polite)

	roster, err := b.tracker.TeamMembers(ctx, team)
	if err != nil {
		return nil, fmt.Errorf("%w: team %s: %w", ErrTeamLookup, team, err)
	}

	pr, err := b.tracker.PullRequest(ctx, repo, number)
	if err != nil {
		return nil, fmt.Errorf("%w: %s#%d: %w", ErrPullRequestLookup, repo, number, err)
	}

	candidates := eligibleCandidates(roster, pr.Creator, pr.Assignee)
	winner, err := b.lottery.Draw(candidates, b.state.Ledger())
	if err != nil {
		return nil, fmt.Errorf("%s#%d: %w", repo, number, err)
	}
	slog.Info("Lottery selected reviewer", "component", "assign", "repo", repo, "pr", number, "reviewer", winner.Login, "candidates", len(candidates))

	template := b.cfg.MessageTemplate
	if polite {
		template = b.cfg.PoliteMessageTemplate
	}
	request := fmt.Sprintf(template, winner.Login, pr.URL)

	if b.dryRun {
		slog.Info("Dry run: would request review", "component", "assign", "repo", repo, "pr", number, "reviewer", winner.Login)
		return &types.AssignmentResult{Reviewer: winner.Login, URL: pr.URL, Title: pr.Title}, nil
	}

	if err := b.tracker.PostComment(ctx, repo, number, request); err != nil {
		return nil, fmt.Errorf("failed to post review request for %s#%d: %w", repo, number, err)
	}

	labels, err := b.tracker.IssueLabels(ctx, repo, number)
	if err != nil {
		return nil, fmt.Errorf("%w: %s#%d: %w", ErrAssignmentUpdate, repo, number, err)
	}
	assignee := winner.Login
	update := types.IssueUpdate{
		Assignee: &assignee,
		Labels:   withLabel(labels.Labels, b.cfg.ReviewLabel),
	}
	if err := b.tracker.UpdateIssue(ctx, repo, number, update); err != nil {
		return nil, fmt.Errorf("%w: %s#%d: %w", ErrAssignmentUpdate, repo, number, err)
	}

	if _, err := b.state.Enqueue(repo, number, b.clock.Now()); err != nil {
		return nil, fmt.Errorf("failed to queue review %s#%d: %w", repo, number, err)
	}
	if err := b.state.RecordAssignment(winner.Login); err != nil {
		return nil, fmt.Errorf("failed to record assignment for %s: %w", winner.Login, err)
	}
	b.recordAssignment()

	// Tell the reviewer directly when we know where to reach them. A
	// delivery failure never fails the completed assignment.
	if channel, ok := b.state.AliasFor(winner.Login); ok {
		if err := b.notifier.Send(ctx, channel, request); err != nil {
			slog.Warn("Failed to notify reviewer", "component", "assign", "reviewer", winner.Login, "channel", channel, "error", err)
		}
	}

	slog.Info("Assignment complete", "component", "assign", "repo", repo, "pr", number, "reviewer", winner.Login)
	return &types.AssignmentResult{Reviewer: winner.Login, URL: pr.URL, Title: pr.Title}, nil
}

// eligibleCandidates filters the roster down to members who may review:
// never the PR creator, never the current assignee.
func eligibleCandidates(roster []types.TeamMember, creator, assignee string) []lottery.Candidate {
	candidates := make([]lottery.Candidate, 0, len(roster))
	for _, m := range roster {
		if m.Login == creator || (assignee != "" && m.Login == assignee) {
			continue
		}
		candidates = append(candidates, lottery.Candidate{Login: m.Login})
	}
	return candidates
}

func withLabel(labels []string, label string) []string {
	if slices.Contains(labels, label) {
		return labels
	}
	return append(labels, label)
}
