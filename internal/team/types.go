package team

import (
	"slices"
	"strings"
)

// Unit is a selectable catalog entry. Name is its identity.
type Unit struct {
	Name   string   `json:"name"`
	Traits []string `json:"traits"`
	Cost   int      `json:"cost"`
}

// HasTrait reports whether the unit carries trait t.
func (u Unit) HasTrait(t string) bool {
	return slices.Contains(u.Traits, t)
}

// Thresholds maps a trait to the member count needed to activate it.
type Thresholds map[string]int

// Traits returns the table's traits in sorted order.
func (th Thresholds) Traits() []string {
	out := make([]string, 0, len(th))
	for t := range th {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Team is an ordered selection of units. Order is kept for display only.
type Team []Unit

// Names returns the unit names in team order.
func (t Team) Names() []string {
	out := make([]string, len(t))
	for i, u := range t {
		out[i] = u.Name
	}
	return out
}

// Contains reports whether a unit with the given name is on the team.
func (t Team) Contains(name string) bool {
	for _, u := range t {
		if u.Name == name {
			return true
		}
	}
	return false
}

// Key is an order-insensitive fingerprint of the team.
func (t Team) Key() string {
	names := t.Names()
	slices.Sort(names)
	return strings.Join(names, "|")
}

// Clone returns a copy that does not share the backing array.
func (t Team) Clone() Team {
	if t == nil {
		return nil
	}
	c := make(Team, len(t))
	copy(c, t)
	return c
}

// Params describes one search call.
type Params struct {
	Catalog    []Unit
	TeamSize   int
	Mandatory  []Unit
	Headliner  string // "" = no headliner
	Thresholds Thresholds
}

// mandatory returns a fresh, duplicate-free copy of p.Mandatory.
func (p Params) mandatory() Team {
	out := make(Team, 0, len(p.Mandatory))
	for _, u := range p.Mandatory {
		if !out.Contains(u.Name) {
			out = append(out, u)
		}
	}
	return out
}

// pool returns catalog units that are not mandatory.
func pool(catalog []Unit, mandatory Team) []Unit {
	out := make([]Unit, 0, len(catalog))
	for _, u := range catalog {
		if !mandatory.Contains(u.Name) {
			out = append(out, u)
		}
	}
	return out
}

// Scored pairs a team with the traits it activates.
type Scored struct {
	Team      Team     `json:"team"`
	Activated []string `json:"activated"`
}

// Result is the outcome of an exhaustive search.
type Result struct {
	// Teams holds every team tied at Count, in enumeration order.
	Teams []Scored
	// Activated is the trait set of the last team appended to Teams.
	Activated []string
	Count     int
	// Cancelled is set when the search was aborted; nothing else is populated then.
	Cancelled bool
}

// BestTeams returns the teams without their per-team trait sets.
func (r Result) BestTeams() []Team {
	out := make([]Team, len(r.Teams))
	for i := range r.Teams {
		out[i] = r.Teams[i].Team
	}
	return out
}

// AnnealResult is the outcome of a simulated annealing run.
type AnnealResult struct {
	Team       Team
	Activated  []string
	Count      int
	Iterations int
	Accepted   int
}
