// Package types contains shared data structures used across the review lottery.
//
//nolint:revive // "types" is a standard Go package name for shared data structures
package types

import "time"

// TeamMember is one member of a reviewer team.
type TeamMember struct {
	Login string
}

// PullRequest holds the pull request metadata the assignment workflow needs.
type PullRequest struct {
	Title      string
	Creator    string
	Assignee   string // empty when unassigned
	URL        string
	Repository string
	State      string
	Number     int
}

// IssueLabels is the label/assignee view of an issue or pull request.
type IssueLabels struct {
	Labels   []string
	Assignee string // empty when unassigned
}

// IssueUpdate describes a partial issue mutation. Nil fields are left untouched.
type IssueUpdate struct {
	Assignee *string
	Labels   []string // nil leaves labels unchanged
}

// QueuedReview is one outstanding review awaiting completion.
type QueuedReview struct {
	SubmittedAt time.Time `json:"submitted_at"`
	Number      int       `json:"number"`
}

// AssignmentResult reports a completed reviewer assignment.
type AssignmentResult struct {
	Reviewer string
	URL      string
	Title    string
}
