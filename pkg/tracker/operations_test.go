package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/codeGROOVE-dev/review-lottery/pkg/internal/testutil"
	"github.com/codeGROOVE-dev/review-lottery/pkg/types"
)

func newTestClient(doer HTTPDoer) *Client {
	return &Client{
		httpClient: doer,
		org:        "acme",
		token:      "test-token",
	}
}

func TestTeamMembers(t *testing.T) {
	doer := testutil.NewMockHTTPDoer()
	doer.SetResponse(http.MethodGet, "https://api.github.com/orgs/acme/teams/platform/members", http.StatusOK, []map[string]string{
		{"login": "alice"},
		{"login": "bob"},
	})

	c := newTestClient(doer)
	members, err := c.TeamMembers(context.Background(), "platform")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(members) != 2 || members[0].Login != "alice" || members[1].Login != "bob" {
		t.Errorf("unexpected members: %v", members)
	}
}

func TestTeamMembersNotFound(t *testing.T) {
	c := newTestClient(testutil.NewMockHTTPDoer())

	if _, err := c.TeamMembers(context.Background(), "ghosts"); err == nil {
		t.Error("expected error for unknown team")
	}
}

func TestPullRequest(t *testing.T) {
	doer := testutil.NewMockHTTPDoer()
	doer.SetResponse(http.MethodGet, "https://api.github.com/repos/acme/widgets/pulls/41", http.StatusOK, map[string]any{
		"number":   41,
		"title":    "add feature",
		"state":    "open",
		"html_url": "https://github.com/acme/widgets/pull/41",
		"user":     map[string]string{"login": "alice"},
		"assignee": map[string]string{"login": "bob"},
	})

	c := newTestClient(doer)
	pr, err := c.PullRequest(context.Background(), "widgets", 41)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pr.Creator != "alice" || pr.Assignee != "bob" {
		t.Errorf("unexpected identities: creator=%s assignee=%s", pr.Creator, pr.Assignee)
	}
	if pr.URL != "https://github.com/acme/widgets/pull/41" || pr.Number != 41 {
		t.Errorf("unexpected metadata: %+v", pr)
	}
}

func TestPullRequestNoAssignee(t *testing.T) {
	doer := testutil.NewMockHTTPDoer()
	doer.SetResponse(http.MethodGet, "https://api.github.com/repos/acme/widgets/pulls/41", http.StatusOK, map[string]any{
		"number":   41,
		"html_url": "https://github.com/acme/widgets/pull/41",
		"user":     map[string]string{"login": "alice"},
		"assignee": nil,
	})

	c := newTestClient(doer)
	pr, err := c.PullRequest(context.Background(), "widgets", 41)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pr.Assignee != "" {
		t.Errorf("expected empty assignee, got %q", pr.Assignee)
	}
}

func TestIssueLabels(t *testing.T) {
	doer := testutil.NewMockHTTPDoer()
	doer.SetResponse(http.MethodGet, "https://api.github.com/repos/acme/widgets/issues/41", http.StatusOK, map[string]any{
		"labels":   []map[string]string{{"name": "bug"}, {"name": "awaiting-review"}},
		"assignee": map[string]string{"login": "bob"},
	})

	c := newTestClient(doer)
	labels, err := c.IssueLabels(context.Background(), "widgets", 41)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(labels.Labels) != 2 || labels.Labels[1] != "awaiting-review" {
		t.Errorf("unexpected labels: %v", labels.Labels)
	}
	if labels.Assignee != "bob" {
		t.Errorf("unexpected assignee: %q", labels.Assignee)
	}
}

func TestPostComment(t *testing.T) {
	doer := testutil.NewMockHTTPDoer()
	doer.SetResponse(http.MethodPost, "https://api.github.com/repos/acme/widgets/issues/41/comments", http.StatusCreated, map[string]int{"id": 1})

	c := newTestClient(doer)
	if err := c.PostComment(context.Background(), "widgets", 41, "please review"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := doer.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one call, got %d", len(calls))
	}
	var payload map[string]string
	if err := json.Unmarshal(calls[0].Body, &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload["body"] != "please review" {
		t.Errorf("unexpected comment payload: %v", payload)
	}
}

func TestUpdateIssue(t *testing.T) {
	doer := testutil.NewMockHTTPDoer()
	doer.SetResponse(http.MethodPatch, "https://api.github.com/repos/acme/widgets/issues/41", http.StatusOK, map[string]int{"number": 41})

	assignee := "bob"
	c := newTestClient(doer)
	err := c.UpdateIssue(context.Background(), "widgets", 41, types.IssueUpdate{
		Assignee: &assignee,
		Labels:   []string{"bug", "awaiting-review"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := doer.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one call, got %d", len(calls))
	}
	var payload struct {
		Assignee string   `json:"assignee"`
		Labels   []string `json:"labels"`
	}
	if err := json.Unmarshal(calls[0].Body, &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.Assignee != "bob" || len(payload.Labels) != 2 {
		t.Errorf("unexpected update payload: %+v", payload)
	}
}

func TestUpdateIssueEmptyUpdateIsNoop(t *testing.T) {
	doer := testutil.NewMockHTTPDoer()
	c := newTestClient(doer)

	if err := c.UpdateIssue(context.Background(), "widgets", 41, types.IssueUpdate{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doer.Calls()) != 0 {
		t.Error("empty update should not hit the API")
	}
}

func TestDoRequestSendsTokenHeader(t *testing.T) {
	doer := testutil.NewMockHTTPDoer()
	doer.SetResponse(http.MethodGet, "https://api.github.com/orgs/acme/teams/platform/members", http.StatusOK, []map[string]string{})

	c := newTestClient(doer)
	if _, err := c.TeamMembers(context.Background(), "platform"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := doer.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one call, got %d", len(calls))
	}
	// Personal-token auth uses the "token" scheme.
	if got := calls[0].Header.Get("Authorization"); got != "token test-token" {
		t.Errorf("unexpected Authorization header: %q", got)
	}
	if got := calls[0].Header.Get("Accept"); got != "application/vnd.github.v3+json" {
		t.Errorf("unexpected Accept header: %q", got)
	}
}
