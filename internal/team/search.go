package team

import (
	"context"
	"math"
	"math/bits"

	"gonum.org/v1/gonum/stat/combin"
)

// slotsFor returns the pool and number of free slots for p, or ok=false when
// no valid team can be formed.
func slotsFor(p Params) (mandatory Team, rest []Unit, slots int, ok bool) {
	mandatory = p.mandatory()
	if p.TeamSize <= 0 || p.TeamSize < len(mandatory) {
		return nil, nil, 0, false
	}
	rest = pool(p.Catalog, mandatory)
	slots = p.TeamSize - len(mandatory)
	if slots > len(rest) {
		return nil, nil, 0, false
	}
	return mandatory, rest, slots, true
}

// EstimateCombinations returns how many teams Exhaustive would score for p.
// Degenerate parameters yield 0.
func EstimateCombinations(p Params) float64 {
	_, rest, slots, ok := slotsFor(p)
	if !ok {
		return 0
	}
	return math.Round(combin.GeneralizedBinomial(float64(len(rest)), float64(slots)))
}

// Enumerable reports whether combin can count the search space of p exactly.
// combin.Binomial multiplies before it divides, so every intermediate product
// has to fit in an int, not just the final count. Degenerate parameters are
// enumerable (there is nothing to count).
func Enumerable(p Params) bool {
	_, rest, slots, ok := slotsFor(p)
	if !ok {
		return true
	}
	n, k := uint64(len(rest)), uint64(slots)
	if k > n/2 {
		k = n - k
	}
	b := uint64(1)
	for i := uint64(1); i <= k; i++ {
		hi, lo := bits.Mul64(n-k+i, b)
		if hi != 0 || lo > math.MaxInt64 {
			return false
		}
		b = lo / i
	}
	return true
}

// Exhaustive scores every team of p.TeamSize that contains all mandatory units
// and returns every team tied at the best activation count.
//
// ctx is polled once per combination. If it is done, the search is abandoned
// and the zero Result (with Cancelled set) is returned instead of the best so far.
// A space that is not Enumerable also yields the zero Result; callers check
// Enumerable first to tell that apart from "no teams".
func Exhaustive(ctx context.Context, p Params) Result {
	mandatory, rest, slots, ok := slotsFor(p)
	if !ok {
		return Result{}
	}
	if !Enumerable(p) {
		return Result{}
	}

	sc := newScorer(p.Thresholds, p.Headliner, mandatory, rest)
	gen := combin.NewCombinationGenerator(len(rest), slots)
	idx := make([]int, slots)
	current := make(Team, len(mandatory)+slots)
	copy(current, mandatory)
	done := ctx.Done()

	var res Result
	for gen.Next() {
		select {
		case <-done:
			return Result{Cancelled: true}
		default:
		}

		gen.Combination(idx)
		for i, j := range idx {
			current[len(mandatory)+i] = rest[j]
		}

		n := sc.count(current)
		switch {
		case n > res.Count:
			_, traits := sc.score(current)
			res.Count = n
			res.Teams = []Scored{{Team: current.Clone(), Activated: traits}}
			res.Activated = traits
		case n == res.Count:
			_, traits := sc.score(current)
			res.Teams = append(res.Teams, Scored{Team: current.Clone(), Activated: traits})
			res.Activated = traits
		}
	}
	return res
}
