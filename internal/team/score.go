package team

import (
	"math"
	"slices"
)

// Score counts the traits t activates under th. The headliner trait gets +1,
// but only when at least one member already carries it.
func Score(t Team, th Thresholds, headliner string) (int, []string) {
	counts := make(map[string]int)
	for _, u := range t {
		for _, trait := range u.Traits {
			counts[trait]++
		}
	}
	if headliner != "" {
		if _, ok := counts[headliner]; ok {
			counts[headliner]++
		}
	}

	var activated []string
	for trait, n := range counts {
		need, ok := th[trait]
		if ok && n >= need {
			activated = append(activated, trait)
		}
	}
	slices.Sort(activated)
	return len(activated), activated
}

// ── Compiled scorer ─────────────────────────────────────────────────

// scorer is Score specialised for one search: traits are interned to
// indices once, and the count buffer is reused between calls.
// Not safe for concurrent use.
type scorer struct {
	ids       map[string]int
	names     []string
	need      []int // math.MaxInt = trait absent from the threshold table
	headliner int   // -1 = none
	counts    []int
	touched   []int
	unitIDs   map[string][]int
}

func newScorer(th Thresholds, headliner string, units ...[]Unit) *scorer {
	s := &scorer{
		ids:       make(map[string]int),
		headliner: -1,
		unitIDs:   make(map[string][]int),
	}
	for _, group := range units {
		for _, u := range group {
			if _, ok := s.unitIDs[u.Name]; ok {
				continue
			}
			ids := make([]int, len(u.Traits))
			for i, trait := range u.Traits {
				ids[i] = s.intern(trait, th)
			}
			s.unitIDs[u.Name] = ids
		}
	}
	if headliner != "" {
		if id, ok := s.ids[headliner]; ok {
			s.headliner = id
		}
	}
	s.counts = make([]int, len(s.names))
	return s
}

func (s *scorer) intern(trait string, th Thresholds) int {
	if id, ok := s.ids[trait]; ok {
		return id
	}
	id := len(s.names)
	s.ids[trait] = id
	s.names = append(s.names, trait)
	need, ok := th[trait]
	if !ok {
		need = math.MaxInt
	}
	s.need = append(s.need, need)
	return id
}

// count returns the number of activated traits in t.
func (s *scorer) count(t Team) int {
	s.tally(t)
	n := 0
	for _, id := range s.touched {
		if s.activated(id) {
			n++
		}
	}
	s.reset()
	return n
}

// score is count plus the sorted activated trait names.
func (s *scorer) score(t Team) (int, []string) {
	s.tally(t)
	var out []string
	for _, id := range s.touched {
		if s.activated(id) {
			out = append(out, s.names[id])
		}
	}
	s.reset()
	slices.Sort(out)
	return len(out), out
}

func (s *scorer) tally(t Team) {
	for _, u := range t {
		for _, id := range s.unitIDs[u.Name] {
			if s.counts[id] == 0 {
				s.touched = append(s.touched, id)
			}
			s.counts[id]++
		}
	}
	if s.headliner >= 0 && s.counts[s.headliner] > 0 {
		s.counts[s.headliner]++
	}
}

func (s *scorer) activated(id int) bool {
	return s.counts[id] >= s.need[id]
}

func (s *scorer) reset() {
	for _, id := range s.touched {
		s.counts[id] = 0
	}
	s.touched = s.touched[:0]
}
