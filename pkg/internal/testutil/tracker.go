package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/codeGROOVE-dev/review-lottery/pkg/types"
)

// MockTracker implements tracker.API for testing.
// It's a smart, programmable mock that allows configuring responses and
// records every mutation.
type MockTracker struct {
	teamMembers map[string][]types.TeamMember
	pullReqs    map[string]*types.PullRequest
	issueLabels map[string]*types.IssueLabels
	errors      map[string]error
	comments    []CommentCall
	updates     []UpdateCall
	mu          sync.RWMutex
}

// CommentCall records a call to PostComment.
type CommentCall struct {
	Repo   string
	Body   string
	Number int
}

// UpdateCall records a call to UpdateIssue.
type UpdateCall struct {
	Repo   string
	Update types.IssueUpdate
	Number int
}

// NewMockTracker creates a new MockTracker.
func NewMockTracker() *MockTracker {
	return &MockTracker{
		teamMembers: make(map[string][]types.TeamMember),
		pullReqs:    make(map[string]*types.PullRequest),
		issueLabels: make(map[string]*types.IssueLabels),
		errors:      make(map[string]error),
	}
}

// SetTeamMembers configures a team roster.
func (m *MockTracker) SetTeamMembers(team string, logins ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members := make([]types.TeamMember, 0, len(logins))
	for _, login := range logins {
		members = append(members, types.TeamMember{Login: login})
	}
	m.teamMembers[team] = members
}

// SetPullRequest configures a pull request.
func (m *MockTracker) SetPullRequest(pr *types.PullRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pullReqs[issueKey(pr.Repository, pr.Number)] = pr
}

// SetIssueLabels configures an issue's labels/assignee view.
func (m *MockTracker) SetIssueLabels(repo string, number int, labels *types.IssueLabels) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issueLabels[issueKey(repo, number)] = labels
}

// SetError configures an error for a named operation ("TeamMembers",
// "PullRequest", "IssueLabels", "PostComment", "UpdateIssue"), optionally
// scoped to one issue via SetIssueError.
func (m *MockTracker) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[operation] = err
}

// SetIssueError configures an error for one operation on one issue.
func (m *MockTracker) SetIssueError(operation, repo string, number int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[operation+":"+issueKey(repo, number)] = err
}

// TeamMembers returns the configured roster.
func (m *MockTracker) TeamMembers(_ context.Context, team string) ([]types.TeamMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.errorFor("TeamMembers", ""); err != nil {
		return nil, err
	}
	members, ok := m.teamMembers[team]
	if !ok {
		return nil, fmt.Errorf("team %s not found", team)
	}
	return members, nil
}

// PullRequest returns the configured pull request.
func (m *MockTracker) PullRequest(_ context.Context, repo string, number int) (*types.PullRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.errorFor("PullRequest", issueKey(repo, number)); err != nil {
		return nil, err
	}
	pr, ok := m.pullReqs[issueKey(repo, number)]
	if !ok {
		return nil, fmt.Errorf("pull request %s#%d not found", repo, number)
	}
	return pr, nil
}

// IssueLabels returns the configured labels view.
func (m *MockTracker) IssueLabels(_ context.Context, repo string, number int) (*types.IssueLabels, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.errorFor("IssueLabels", issueKey(repo, number)); err != nil {
		return nil, err
	}
	labels, ok := m.issueLabels[issueKey(repo, number)]
	if !ok {
		return &types.IssueLabels{}, nil
	}
	return labels, nil
}

// PostComment records the comment.
func (m *MockTracker) PostComment(_ context.Context, repo string, number int, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errorFor("PostComment", issueKey(repo, number)); err != nil {
		return err
	}
	m.comments = append(m.comments, CommentCall{Repo: repo, Number: number, Body: body})
	return nil
}

// UpdateIssue records the update.
func (m *MockTracker) UpdateIssue(_ context.Context, repo string, number int, update types.IssueUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errorFor("UpdateIssue", issueKey(repo, number)); err != nil {
		return err
	}
	m.updates = append(m.updates, UpdateCall{Repo: repo, Number: number, Update: update})
	return nil
}

// Token returns a mock token.
func (*MockTracker) Token(_ context.Context) (string, error) {
	return "mock-token", nil
}

// Comments returns all recorded comments.
func (m *MockTracker) Comments() []CommentCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CommentCall, len(m.comments))
	copy(out, m.comments)
	return out
}

// Updates returns all recorded issue updates.
func (m *MockTracker) Updates() []UpdateCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]UpdateCall, len(m.updates))
	copy(out, m.updates)
	return out
}

func (m *MockTracker) errorFor(operation, issue string) error {
	if issue != "" {
		if err, ok := m.errors[operation+":"+issue]; ok {
			return err
		}
	}
	return m.errors[operation]
}

func issueKey(repo string, number int) string {
	return fmt.Sprintf("%s#%d", repo, number)
}
