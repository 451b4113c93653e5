package lottery

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestLedgerRecord(t *testing.T) {
	ledger := Ledger{}

	ledger.Record("alice")
	if ledger["alice"] != 1 {
		t.Errorf("expected alice count 1, got %d", ledger["alice"])
	}

	ledger.Record("alice")
	ledger.Record("bob")
	if ledger["alice"] != 2 || ledger["bob"] != 1 {
		t.Errorf("unexpected counts: %v", ledger)
	}
}

func TestWeightsFavorUnderAssigned(t *testing.T) {
	// alice and bob are tied at the maximum, carol has never reviewed.
	ledger := Ledger{"alice": 5, "bob": 5, "carol": 0}
	candidates := []Candidate{{Login: "alice"}, {Login: "bob"}, {Login: "carol"}}

	weights := Weights(candidates, ledger)

	if weights[2] != 1 {
		t.Errorf("expected weight 1 for the most-starved reviewer, got %v", weights)
	}
	if math.Abs(weights[0]-math.Exp(-5)) > 1e-9 || math.Abs(weights[1]-math.Exp(-5)) > 1e-9 {
		t.Errorf("expected weight e^-5 for reviewers at the max, got %v", weights)
	}

	probs := Probabilities(candidates, ledger)
	if probs[2] < 0.98 {
		t.Errorf("expected carol overwhelmingly favored, got %f", probs[2])
	}
	if math.Abs(probs[0]-0.0067) > 0.001 {
		t.Errorf("expected alice probability near 0.0067, got %f", probs[0])
	}
}

func TestWeightMonotonicity(t *testing.T) {
	// Fewer past assignments must always mean a strictly higher probability.
	ledgers := []Ledger{
		{"a": 0, "b": 1},
		{"a": 2, "b": 9},
		{"a": 1, "b": 2, "other": 50},
	}
	candidates := []Candidate{{Login: "a"}, {Login: "b"}}

	for _, ledger := range ledgers {
		probs := Probabilities(candidates, ledger)
		if probs[0] <= probs[1] {
			t.Errorf("ledger %v: expected p(a) > p(b), got %f <= %f", ledger, probs[0], probs[1])
		}
	}
}

func TestProbabilitiesNormalized(t *testing.T) {
	tests := []struct {
		ledger     Ledger
		name       string
		candidates []Candidate
	}{
		{name: "empty ledger", ledger: Ledger{}, candidates: []Candidate{{Login: "a"}, {Login: "b"}}},
		{name: "spread counts", ledger: Ledger{"a": 1, "b": 4, "c": 9}, candidates: []Candidate{{Login: "a"}, {Login: "b"}, {Login: "c"}}},
		{name: "single candidate", ledger: Ledger{"x": 12}, candidates: []Candidate{{Login: "a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probs := Probabilities(tt.candidates, tt.ledger)
			var sum float64
			for _, p := range probs {
				sum += p
			}
			if math.Abs(sum-1) > 1e-9 {
				t.Errorf("probabilities sum to %f, want 1", sum)
			}
		})
	}
}

func TestDrawEmptyCandidates(t *testing.T) {
	lt := New(rand.NewSource(1))

	_, err := lt.Draw(nil, Ledger{})
	if !errors.Is(err, ErrNoEligibleCandidates) {
		t.Errorf("expected ErrNoEligibleCandidates, got %v", err)
	}
}

func TestDrawSingleCandidate(t *testing.T) {
	lt := New(rand.NewSource(42))

	for range 10 {
		winner, err := lt.Draw([]Candidate{{Login: "dave"}}, Ledger{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if winner.Login != "dave" {
			t.Errorf("expected dave, got %s", winner.Login)
		}
	}
}

func TestDrawDoesNotMutateLedger(t *testing.T) {
	lt := New(rand.NewSource(7))
	ledger := Ledger{"alice": 2, "bob": 1}

	if _, err := lt.Draw([]Candidate{{Login: "alice"}, {Login: "bob"}}, ledger); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ledger["alice"] != 2 || ledger["bob"] != 1 || len(ledger) != 2 {
		t.Errorf("draw mutated the ledger: %v", ledger)
	}
}

func TestDrawDeterministicGivenSeed(t *testing.T) {
	candidates := []Candidate{{Login: "a"}, {Login: "b"}, {Login: "c"}}
	ledger := Ledger{"a": 3, "b": 1}

	first := drawSequence(t, 99, candidates, ledger, 20)
	second := drawSequence(t, 99, candidates, ledger, 20)

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("draw %d differs between identical seeds: %s vs %s", i, first[i], second[i])
		}
	}
}

func TestDrawDistributionFavorsStarved(t *testing.T) {
	// With alice and bob at 5 and carol at 0, carol should win nearly
	// every draw (expected share ~98.7%).
	lt := New(rand.NewSource(1234))
	ledger := Ledger{"alice": 5, "bob": 5, "carol": 0}
	candidates := []Candidate{{Login: "alice"}, {Login: "bob"}, {Login: "carol"}}

	wins := map[string]int{}
	const draws = 2000
	for range draws {
		winner, err := lt.Draw(candidates, ledger)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		wins[winner.Login]++
	}

	if wins["carol"] < draws*95/100 {
		t.Errorf("expected carol to win at least 95%% of draws, got %d/%d", wins["carol"], draws)
	}
}

func TestDrawHugeCountGap(t *testing.T) {
	// A count gap past ~709 would overflow exp(max-count) to +Inf and hand
	// every draw to the over-served candidate. Anchoring the exponent on
	// the candidates' minimum keeps the weights finite, so the starved
	// reviewer must still win essentially every draw.
	lt := New(rand.NewSource(1))
	ledger := Ledger{"hog": 800, "starved": 0}
	candidates := []Candidate{{Login: "starved"}, {Login: "hog"}}

	weights := Weights(candidates, ledger)
	for i, w := range weights {
		if math.IsInf(w, 0) || math.IsNaN(w) {
			t.Fatalf("weight %d is not finite: %v", i, weights)
		}
	}

	probs := Probabilities(candidates, ledger)
	for i, p := range probs {
		if math.IsNaN(p) {
			t.Fatalf("probability %d is NaN: %v", i, probs)
		}
	}
	if probs[0] <= probs[1] {
		t.Fatalf("expected p(starved) > p(hog), got %f <= %f", probs[0], probs[1])
	}

	const draws = 100
	for range draws {
		winner, err := lt.Draw(candidates, ledger)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if winner.Login != "starved" {
			t.Fatalf("over-served reviewer won a draw despite an 800-count gap")
		}
	}
}

func drawSequence(t *testing.T, seed int64, candidates []Candidate, ledger Ledger, n int) []string {
	t.Helper()
	lt := New(rand.NewSource(seed))
	out := make([]string, 0, n)
	for range n {
		winner, err := lt.Draw(candidates, ledger)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out = append(out, winner.Login)
	}
	return out
}
