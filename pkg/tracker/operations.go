package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/codeGROOVE-dev/review-lottery/pkg/types"
)

// TeamMembers fetches the roster of an organization team.
func (c *Client) TeamMembers(ctx context.Context, team string) ([]types.TeamMember, error) {
	slog.Info("Fetching team members", "component", "api", "org", c.org, "team", team)
	apiURL := fmt.Sprintf("%s/orgs/%s/teams/%s/members", apiBase, c.org, team)

	resp, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get team members (status %d)", resp.StatusCode)
	}

	var memberData []struct {
		Login string `json:"login"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&memberData); err != nil {
		return nil, fmt.Errorf("failed to decode team members: %w", err)
	}

	members := make([]types.TeamMember, 0, len(memberData))
	for _, m := range memberData {
		members = append(members, types.TeamMember{Login: m.Login})
	}
	return members, nil
}

// PullRequest fetches the metadata the assignment workflow needs: creator,
// current assignee, title, and link.
func (c *Client) PullRequest(ctx context.Context, repo string, number int) (*types.PullRequest, error) {
	slog.Info("Fetching pull request", "component", "api", "org", c.org, "repo", repo, "pr", number)
	apiURL := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", apiBase, c.org, repo, number)

	resp, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get pull request (status %d)", resp.StatusCode)
	}

	var prData struct {
		Title string `json:"title"`
		State string `json:"state"`
		URL   string `json:"html_url"`
		User  struct {
			Login string `json:"login"`
		} `json:"user"`
		Assignee *struct {
			Login string `json:"login"`
		} `json:"assignee"`
		Number int `json:"number"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&prData); err != nil {
		return nil, fmt.Errorf("failed to decode pull request: %w", err)
	}

	pr := &types.PullRequest{
		Title:      prData.Title,
		State:      prData.State,
		URL:        prData.URL,
		Creator:    prData.User.Login,
		Repository: repo,
		Number:     prData.Number,
	}
	if prData.Assignee != nil {
		pr.Assignee = prData.Assignee.Login
	}
	return pr, nil
}

// IssueLabels fetches the current labels and assignee of an issue or PR.
func (c *Client) IssueLabels(ctx context.Context, repo string, number int) (*types.IssueLabels, error) {
	slog.Info("Fetching issue labels", "component", "api", "org", c.org, "repo", repo, "issue", number)
	apiURL := fmt.Sprintf("%s/repos/%s/%s/issues/%d", apiBase, c.org, repo, number)

	resp, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get issue (status %d)", resp.StatusCode)
	}

	var issueData struct {
		Labels []struct {
			Name string `json:"name"`
		} `json:"labels"`
		Assignee *struct {
			Login string `json:"login"`
		} `json:"assignee"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&issueData); err != nil {
		return nil, fmt.Errorf("failed to decode issue: %w", err)
	}

	labels := &types.IssueLabels{}
	for _, l := range issueData.Labels {
		labels.Labels = append(labels.Labels, l.Name)
	}
	if issueData.Assignee != nil {
		labels.Assignee = issueData.Assignee.Login
	}
	return labels, nil
}

// PostComment posts a comment on an issue or PR.
func (c *Client) PostComment(ctx context.Context, repo string, number int, body string) error {
	slog.Info("Posting comment", "component", "api", "org", c.org, "repo", repo, "issue", number)
	apiURL := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", apiBase, c.org, repo, number)

	resp, err := c.doRequest(ctx, http.MethodPost, apiURL, map[string]string{"body": body})
	if err != nil {
		return err
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("failed to post comment (status %d)", resp.StatusCode)
	}
	return nil
}

// UpdateIssue applies a partial update to an issue: assignee and/or labels.
func (c *Client) UpdateIssue(ctx context.Context, repo string, number int, update types.IssueUpdate) error {
	slog.Info("Updating issue", "component", "api", "org", c.org, "repo", repo, "issue", number)
	apiURL := fmt.Sprintf("%s/repos/%s/%s/issues/%d", apiBase, c.org, repo, number)

	payload := map[string]any{}
	if update.Assignee != nil {
		payload["assignee"] = *update.Assignee
	}
	if update.Labels != nil {
		payload["labels"] = update.Labels
	}
	if len(payload) == 0 {
		return nil
	}

	resp, err := c.doRequest(ctx, http.MethodPatch, apiURL, payload)
	if err != nil {
		return err
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to update issue (status %d)", resp.StatusCode)
	}
	return nil
}
