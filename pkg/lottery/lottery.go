// Package lottery implements the fairness ledger and the weighted random
// reviewer draw. The draw is a pure function over its inputs: it never
// mutates the ledger, and its random source is injected so selection is
// deterministic given a seed.
package lottery

import (
	"errors"
	"math"
	"math/rand"
)

// ErrNoEligibleCandidates is returned when a draw is attempted with no candidates.
var ErrNoEligibleCandidates = errors.New("no eligible candidates")

// Ledger maps reviewer logins to cumulative assignment counts.
type Ledger map[string]int

// Record increments a reviewer's assignment count by exactly 1,
// creating the entry if absent.
func (l Ledger) Record(login string) {
	l[login]++
}

// Clone returns an independent copy of the ledger.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for login, n := range l {
		out[login] = n
	}
	return out
}

// Candidate is one reviewer eligible for the current draw.
type Candidate struct {
	Login string
}

// Weights computes the unnormalized draw weight for each candidate:
// exp(min - count), where min is the lowest count among the candidates,
// so under-assigned reviewers are favored exponentially rather than
// linearly. The most-starved candidate gets weight 1 and every other
// weight decays toward 0; anchoring on the minimum keeps the exponent
// non-positive, so an arbitrarily large count gap underflows to a zero
// weight instead of overflowing to +Inf. A reviewer missing from the
// ledger counts as 0 assignments.
func Weights(candidates []Candidate, ledger Ledger) []float64 {
	minCount := 0
	for i, c := range candidates {
		if i == 0 || ledger[c.Login] < minCount {
			minCount = ledger[c.Login]
		}
	}
	weights := make([]float64, len(candidates))
	for i, c := range candidates {
		weights[i] = math.Exp(float64(minCount - ledger[c.Login]))
	}
	return weights
}

// Probabilities normalizes Weights into a categorical distribution over the
// candidates, in candidate order.
func Probabilities(candidates []Candidate, ledger Ledger) []float64 {
	weights := Weights(candidates, ledger)
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		// The min-count candidate always carries weight 1, so this cannot
		// occur; uniform fallback kept so a zero sum can never divide below.
		for i := range weights {
			weights[i] = 1 / float64(len(weights))
		}
		return weights
	}
	for i := range weights {
		weights[i] /= total
	}
	return weights
}

// Lottery draws reviewers using an injected random source.
type Lottery struct {
	rng *rand.Rand
}

// New creates a Lottery backed by the given random source.
func New(src rand.Source) *Lottery {
	return &Lottery{rng: rand.New(src)} //nolint:gosec // selection fairness, not cryptography
}

// Draw selects one candidate using the ledger-derived categorical
// distribution: a uniform value in [0,1) is scaled by the total weight and
// the cumulative weights are walked in candidate order.
func (lt *Lottery) Draw(candidates []Candidate, ledger Ledger) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, ErrNoEligibleCandidates
	}

	weights := Weights(candidates, ledger)
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return candidates[lt.rng.Intn(len(candidates))], nil
	}

	target := lt.rng.Float64() * total
	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if target < cumulative {
			return candidates[i], nil
		}
	}
	// Floating point rounding can leave target just past the final
	// cumulative sum; the last candidate owns that sliver.
	return candidates[len(candidates)-1], nil
}
