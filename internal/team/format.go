package team

import (
	"fmt"
	"strings"
)

// SearchHeader is the summary line printed above a set of best teams.
func SearchHeader(teams, count int) string {
	return fmt.Sprintf("There are %d Teams that Activate %d Traits\n", teams, count)
}

// CurrentHeader is the summary line printed above a hand-picked team.
func CurrentHeader(size int) string {
	return fmt.Sprintf("Team has %d Units\n", size)
}

// FormatTeams renders teams as plain text, one block per team. The headliner
// trait is marked with a trailing "**".
func FormatTeams(teams []Team, count int, header, headliner string) string {
	var b strings.Builder
	b.WriteString(header)

	for i, t := range teams {
		fmt.Fprintf(&b, "Team: %d Activates: %d traits\n", i+1, count)
		for _, u := range t {
			traits := make([]string, len(u.Traits))
			for ti, trait := range u.Traits {
				traits[ti] = trait
				if headliner != "" && trait == headliner {
					traits[ti] += "**"
				}
			}
			fmt.Fprintf(&b, "%-12s (%d) (Traits: %s)\n", u.Name, u.Cost, strings.Join(traits, ", "))
		}
		b.WriteString("\n")
	}

	return b.String()
}
