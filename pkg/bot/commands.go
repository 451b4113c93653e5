package bot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const helpText = `review-lottery commands:
  assign <repo> <number> [please]   assign a weighted-random reviewer
  stats                             show assignment counts per reviewer
  reset stats                       clear all assignment counts
  set team <team> <repo>            use <team> for <repo> instead of the default
  clear team <repo>                 remove a repository's team override
  teams                             list team overrides
  queue                             show reviews awaiting completion
  clear queue                       drop all queued reviews
  set alias <login> <channel>       deliver <login>'s reminders to <channel>
  clear alias <login>               remove a reminder alias
  aliases                           list reminder aliases
  help                              this text`

// HandleCommand executes one chat command and returns the plain-text
// reply. Commands are case-insensitive and serialized with sweeps.
func (b *Bot) HandleCommand(ctx context.Context, line string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return helpText
	}

	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "assign":
		return b.cmdAssign(ctx, args)
	case "stats":
		return b.cmdStats()
	case "reset":
		if keyword(args, 0) == "stats" {
			return b.cmdResetStats()
		}
	case "set":
		switch keyword(args, 0) {
		case "team":
			return b.cmdSetTeam(args[1:])
		case "alias":
			return b.cmdSetAlias(args[1:])
		}
	case "clear":
		switch keyword(args, 0) {
		case "team":
			return b.cmdClearTeam(args[1:])
		case "alias":
			return b.cmdClearAlias(args[1:])
		case "queue":
			return b.cmdClearQueue()
		}
	case "teams":
		return b.cmdTeams()
	case "queue":
		return b.cmdQueue()
	case "aliases":
		return b.cmdAliases()
	case "help":
		return helpText
	}
	return "Unrecognized command. Try 'help'."
}

func (b *Bot) cmdAssign(ctx context.Context, args []string) string {
	if len(args) < 2 {
		return "Usage: assign <repo> <number> [please]"
	}
	number, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Sprintf("%q is not a pull request number.", args[1])
	}
	polite := len(args) > 2 && strings.EqualFold(args[2], "please")

	result, err := b.Assign(ctx, args[0], number, polite)
	if err != nil {
		return "Assignment failed: " + err.Error()
	}

	reply := fmt.Sprintf("%s is on it: %s", result.Reviewer, result.URL)
	if b.cfg.ShowAvatars {
		reply += fmt.Sprintf("\nhttps://github.com/%s.png", result.Reviewer)
	}
	return reply
}

func (b *Bot) cmdStats() string {
	ledger := b.state.Ledger()
	if len(ledger) == 0 {
		return "No assignments recorded yet."
	}

	type row struct {
		login string
		count int
	}
	rows := make([]row, 0, len(ledger))
	for login, count := range ledger {
		rows = append(rows, row{login, count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].login < rows[j].login
	})

	var sb strings.Builder
	sb.WriteString("Review assignments:")
	for _, r := range rows {
		fmt.Fprintf(&sb, "\n  %s: %d", r.login, r.count)
	}
	return sb.String()
}

func (b *Bot) cmdResetStats() string {
	if err := b.state.ResetLedger(); err != nil {
		return "Failed to reset stats: " + err.Error()
	}
	return "Assignment counts reset."
}

func (b *Bot) cmdSetTeam(args []string) string {
	if len(args) < 2 {
		return "Usage: set team <team> <repo>"
	}
	if err := b.state.SetTeam(args[1], args[0]); err != nil {
		return "Failed to set team: " + err.Error()
	}
	return fmt.Sprintf("Reviews for %s now go to team %s.", args[1], args[0])
}

func (b *Bot) cmdClearTeam(args []string) string {
	if len(args) < 1 {
		return "Usage: clear team <repo>"
	}
	if err := b.state.ClearTeam(args[0]); err != nil {
		return "Failed to clear team: " + err.Error()
	}
	return fmt.Sprintf("Reviews for %s now go to the default team (%s).", args[0], b.cfg.DefaultTeam)
}

func (b *Bot) cmdTeams() string {
	overrides := b.state.Teams()
	if len(overrides) == 0 {
		return fmt.Sprintf("No team overrides; every repository uses %s.", b.cfg.DefaultTeam)
	}
	var sb strings.Builder
	sb.WriteString("Team overrides:")
	for _, o := range overrides {
		fmt.Fprintf(&sb, "\n  %s -> %s", o.Key, o.Value)
	}
	return sb.String()
}

func (b *Bot) cmdQueue() string {
	queue := b.state.QueueSnapshot()
	if len(queue) == 0 {
		return "No reviews awaiting completion."
	}

	repos := make([]string, 0, len(queue))
	for repo := range queue {
		repos = append(repos, repo)
	}
	sort.Strings(repos)

	now := b.clock.Now()
	var sb strings.Builder
	sb.WriteString("Awaiting review:")
	for _, repo := range repos {
		for _, entry := range queue[repo] {
			fmt.Fprintf(&sb, "\n  %s#%d (queued %s ago)", repo, entry.Number, now.Sub(entry.SubmittedAt).Round(time.Minute))
		}
	}
	return sb.String()
}

func (b *Bot) cmdClearQueue() string {
	if err := b.state.ClearQueue(); err != nil {
		return "Failed to clear queue: " + err.Error()
	}
	return "Review queue cleared."
}

func (b *Bot) cmdSetAlias(args []string) string {
	if len(args) < 2 {
		return "Usage: set alias <login> <channel>"
	}
	if err := b.state.SetAlias(args[0], args[1]); err != nil {
		return "Failed to set alias: " + err.Error()
	}
	return fmt.Sprintf("Reminders for %s go to %s.", args[0], args[1])
}

func (b *Bot) cmdClearAlias(args []string) string {
	if len(args) < 1 {
		return "Usage: clear alias <login>"
	}
	if err := b.state.ClearAlias(args[0]); err != nil {
		return "Failed to clear alias: " + err.Error()
	}
	return fmt.Sprintf("Reminders for %s are no longer deliverable.", args[0])
}

func (b *Bot) cmdAliases() string {
	aliases := b.state.Aliases()
	if len(aliases) == 0 {
		return "No reminder aliases registered."
	}
	var sb strings.Builder
	sb.WriteString("Reminder aliases:")
	for _, o := range aliases {
		fmt.Fprintf(&sb, "\n  %s -> %s", o.Key, o.Value)
	}
	return sb.String()
}

func keyword(args []string, i int) string {
	if i >= len(args) {
		return ""
	}
	return strings.ToLower(args[i])
}
