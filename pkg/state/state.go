package state

import (
	"sort"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/review-lottery/pkg/lottery"
	"github.com/codeGROOVE-dev/review-lottery/pkg/types"
)

// State bundles the four persisted regions behind one lock. Every mutation
// writes its region back through the store before returning, so the on-disk
// view never lags a completed command.
type State struct {
	store   Store
	ledger  lottery.Ledger
	queue   map[string][]types.QueuedReview
	teams   map[string]string
	aliases map[string]string
	mu      sync.Mutex
}

// Load reads all regions from the store, starting empty for any region that
// has never been written.
func Load(store Store) (*State, error) {
	s := &State{
		store:   store,
		ledger:  lottery.Ledger{},
		queue:   map[string][]types.QueuedReview{},
		teams:   map[string]string{},
		aliases: map[string]string{},
	}

	if _, err := store.Load(RegionLedger, &s.ledger); err != nil {
		return nil, err
	}
	if _, err := store.Load(RegionQueue, &s.queue); err != nil {
		return nil, err
	}
	if _, err := store.Load(RegionTeams, &s.teams); err != nil {
		return nil, err
	}
	if _, err := store.Load(RegionAliases, &s.aliases); err != nil {
		return nil, err
	}
	return s, nil
}

// Ledger returns a copy of the fairness ledger for a lottery draw or a
// stats report. Callers never see the live map.
func (s *State) Ledger() lottery.Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Clone()
}

// RecordAssignment increments a reviewer's count by exactly 1 and persists
// the ledger.
func (s *State) RecordAssignment(login string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.Record(login)
	return s.store.Save(RegionLedger, s.ledger)
}

// ResetLedger empties the fairness ledger.
func (s *State) ResetLedger() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = lottery.Ledger{}
	return s.store.Save(RegionLedger, s.ledger)
}

// Enqueue adds a review to a repository's queue. Re-queueing an already
// queued pull request is a no-op: the original submission timestamp drives
// reminder timing and must not reset.
func (s *State) Enqueue(repo string, number int, submittedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, qr := range s.queue[repo] {
		if qr.Number == number {
			return false, nil
		}
	}
	s.queue[repo] = append(s.queue[repo], types.QueuedReview{Number: number, SubmittedAt: submittedAt})
	return true, s.store.Save(RegionQueue, s.queue)
}

// QueueSnapshot returns a deep copy of the review queue.
func (s *State) QueueSnapshot() map[string][]types.QueuedReview {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyQueue(s.queue)
}

// ReplaceQueue publishes a rebuilt queue in one step. Entries enqueued
// after the snapshot was taken (by an assignment interleaving with the
// sweep) are carried into the new queue rather than lost.
func (s *State) ReplaceQueue(rebuilt, snapshot map[string][]types.QueuedReview) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := copyQueue(rebuilt)
	for repo, entries := range s.queue {
		snapshotted := map[int]bool{}
		for _, qr := range snapshot[repo] {
			snapshotted[qr.Number] = true
		}
		for _, qr := range entries {
			if !snapshotted[qr.Number] && !queueContains(next[repo], qr.Number) {
				next[repo] = append(next[repo], qr)
			}
		}
	}
	for repo, entries := range next {
		if len(entries) == 0 {
			delete(next, repo)
		}
	}

	s.queue = next
	return s.store.Save(RegionQueue, s.queue)
}

// ClearQueue drops every queued review.
func (s *State) ClearQueue() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = map[string][]types.QueuedReview{}
	return s.store.Save(RegionQueue, s.queue)
}

// TeamFor resolves a repository's reviewer team, falling back to the
// given default when no override is registered.
func (s *State) TeamFor(repo, defaultTeam string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if team, ok := s.teams[repo]; ok {
		return team
	}
	return defaultTeam
}

// SetTeam registers a repository's reviewer team override.
func (s *State) SetTeam(repo, team string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[repo] = team
	return s.store.Save(RegionTeams, s.teams)
}

// ClearTeam removes a repository's team override.
func (s *State) ClearTeam(repo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.teams, repo)
	return s.store.Save(RegionTeams, s.teams)
}

// Teams lists registered overrides sorted by repository.
func (s *State) Teams() []Override {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedOverrides(s.teams)
}

// AliasFor resolves a tracker login to its notification channel. A miss
// means there is nowhere to deliver a reminder.
func (s *State) AliasFor(login string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	channel, ok := s.aliases[login]
	return channel, ok
}

// SetAlias registers a login's notification channel.
func (s *State) SetAlias(login, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliases[login] = channel
	return s.store.Save(RegionAliases, s.aliases)
}

// ClearAlias removes a login's notification channel.
func (s *State) ClearAlias(login string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.aliases, login)
	return s.store.Save(RegionAliases, s.aliases)
}

// Aliases lists registered aliases sorted by login.
func (s *State) Aliases() []Override {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedOverrides(s.aliases)
}

// Override is one key/value entry from the team or alias registry.
type Override struct {
	Key   string
	Value string
}

func sortedOverrides(m map[string]string) []Override {
	out := make([]Override, 0, len(m))
	for k, v := range m {
		out = append(out, Override{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func copyQueue(q map[string][]types.QueuedReview) map[string][]types.QueuedReview {
	out := make(map[string][]types.QueuedReview, len(q))
	for repo, entries := range q {
		copied := make([]types.QueuedReview, len(entries))
		copy(copied, entries)
		out[repo] = copied
	}
	return out
}

func queueContains(entries []types.QueuedReview, number int) bool {
	for _, qr := range entries {
		if qr.Number == number {
			return true
		}
	}
	return false
}
