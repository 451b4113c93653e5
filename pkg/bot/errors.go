package bot

import "errors"

// Workflow failure classes. Each is terminal for the command in progress:
// no retries at the workflow level, no compensation of already-applied
// external side effects.
var (
	ErrTeamLookup        = errors.New("TEAM_LOOKUP_FAILED: could not fetch team roster")
	ErrPullRequestLookup = errors.New("PULL_REQUEST_LOOKUP_FAILED: could not fetch pull request")
	ErrAssignmentUpdate  = errors.New("ASSIGNMENT_UPDATE_FAILED: could not update issue")
)
