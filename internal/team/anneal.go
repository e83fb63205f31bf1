package team

import (
	"errors"
	"math"
	"math/rand/v2"
)

// Schedule is a geometric cooling schedule.
type Schedule struct {
	Initial float64 `json:"initialTemperature" yaml:"initial_temperature" mapstructure:"initial_temperature"`
	Final   float64 `json:"finalTemperature" yaml:"final_temperature" mapstructure:"final_temperature"`
	Cooling float64 `json:"coolingRate" yaml:"cooling_rate" mapstructure:"cooling_rate"`
}

// DefaultSchedule runs roughly 69k iterations.
func DefaultSchedule() Schedule {
	return Schedule{Initial: 1, Final: 0.001, Cooling: 0.9999}
}

// Validate rejects schedules that would never terminate or divide by zero.
func (s Schedule) Validate() error {
	if !(s.Initial > 0) || !(s.Final > 0) {
		return errors.New("temperatures must be positive")
	}
	if !(s.Cooling > 0 && s.Cooling < 1) {
		return errors.New("cooling rate must be in (0, 1)")
	}
	return nil
}

// Steps predicts how many iterations the schedule runs.
func (s Schedule) Steps() int {
	if s.Validate() != nil || s.Initial <= s.Final {
		return 0
	}
	n := 0
	for t := s.Initial; t > s.Final; t *= s.Cooling {
		n++
	}
	return n
}

// Step is reported to Annealer.Observe after every iteration.
type Step struct {
	Iteration   int
	Temperature float64
	Current     int
	Best        int
	Accepted    bool
}

// Annealer runs simulated annealing over team compositions. All randomness
// comes from Rand, so a seeded generator makes runs reproducible.
type Annealer struct {
	Schedule Schedule
	Rand     *rand.Rand
	// Observe, when set, is called after each iteration.
	Observe func(Step)
}

// NewAnnealer returns an annealer seeded with seed, or with a random seed when seed is 0.
func NewAnnealer(s Schedule, seed uint64) *Annealer {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Annealer{
		Schedule: s,
		Rand:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Search looks for a high-scoring team. It always terminates: the loop is
// bounded by the cooling schedule alone. The result is not guaranteed optimal.
func (a *Annealer) Search(p Params) AnnealResult {
	r := a.Rand
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	mandatory := p.mandatory()

	current, ok := InitialSolution(r, p)
	if !ok {
		return AnnealResult{}
	}
	sc := newScorer(p.Thresholds, p.Headliner, mandatory, p.Catalog)
	currentScore := sc.count(current)
	best, bestScore := current, currentScore

	res := AnnealResult{}
	if a.Schedule.Validate() == nil {
		temp := a.Schedule.Initial
		for temp > a.Schedule.Final {
			neighbor := Neighbor(r, current, p.Catalog, mandatory)
			score := sc.count(neighbor)

			accepted := score > currentScore ||
				r.Float64() < acceptance(currentScore, score, temp)
			if accepted {
				current, currentScore = neighbor, score
				res.Accepted++
				if currentScore > bestScore {
					best, bestScore = current, currentScore
				}
			}
			res.Iterations++
			if a.Observe != nil {
				a.Observe(Step{
					Iteration:   res.Iterations,
					Temperature: temp,
					Current:     currentScore,
					Best:        bestScore,
					Accepted:    accepted,
				})
			}
			temp *= a.Schedule.Cooling
		}
	}

	res.Team = best
	res.Count, res.Activated = sc.score(best)
	return res
}

// acceptance is the probability of moving from a team scoring old to one scoring next.
func acceptance(old, next int, temp float64) float64 {
	if next > old {
		return 1
	}
	return math.Exp(float64(next-old) / temp)
}

// ── Generators ──────────────────────────────────────────────────────

// InitialSolution returns the mandatory units followed by a uniform random
// sample of the rest of the catalog, filled to p.TeamSize. ok is false when
// no such team exists.
func InitialSolution(r *rand.Rand, p Params) (Team, bool) {
	mandatory, rest, slots, ok := slotsFor(p)
	if !ok {
		return nil, false
	}
	t := make(Team, 0, p.TeamSize)
	t = append(t, mandatory...)
	// partial Fisher-Yates over a private copy
	for i := 0; i < slots; i++ {
		j := i + r.IntN(len(rest)-i)
		rest[i], rest[j] = rest[j], rest[i]
		t = append(t, rest[i])
	}
	return t, true
}

// Neighbor swaps one random non-mandatory member of current for a random
// catalog unit not already on the team. current is never modified. When no
// member can be swapped out, or nothing can be swapped in, the copy is
// returned unchanged.
func Neighbor(r *rand.Rand, current Team, catalog []Unit, mandatory Team) Team {
	next := current.Clone()

	var replaceable []int
	for i, u := range next {
		if !mandatory.Contains(u.Name) {
			replaceable = append(replaceable, i)
		}
	}
	if len(replaceable) == 0 {
		return next
	}
	at := replaceable[r.IntN(len(replaceable))]

	var candidates []Unit
	for _, u := range catalog {
		if !next.Contains(u.Name) {
			candidates = append(candidates, u)
		}
	}
	if len(candidates) == 0 {
		return next
	}
	next[at] = candidates[r.IntN(len(candidates))]
	return next
}
