package tracker

import (
	"context"
	"net/http"

	"github.com/codeGROOVE-dev/review-lottery/pkg/types"
)

// HTTPDoer provides an interface for making HTTP requests.
// This allows us to mock HTTP calls in tests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// API is the capability set the bot consumes from the issue tracker.
type API interface {
	TeamMembers(ctx context.Context, team string) ([]types.TeamMember, error)
	PullRequest(ctx context.Context, repo string, number int) (*types.PullRequest, error)
	IssueLabels(ctx context.Context, repo string, number int) (*types.IssueLabels, error)
	PostComment(ctx context.Context, repo string, number int, body string) error
	UpdateIssue(ctx context.Context, repo string, number int, update types.IssueUpdate) error

	// Token exposes the current auth token for external use (e.g. the
	// event monitor).
	Token(ctx context.Context) (string, error)
}
