package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"team-optimizer/internal/config"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	settingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))
	cursorStyle = lipgloss.NewStyle().
			Reverse(true)
	pickedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFD166"))
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	// one colour per unit cost, 1 through 5
	costColors = []lipgloss.Color{"#BBBBBB", "#BBBBBB", "#4CAF50", "#2196F3", "#AB47BC", "#FFB300"}
)

const help = "arrows move · space pick · / filter · c clear · +/- size · m method · h headliner · 1-5 costs · r run · x cancel · q quit"

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Team Optimizer"))
	b.WriteString("\n")
	b.WriteString(settingStyle.Render(m.settingsLine()))
	b.WriteString("\n")
	if m.filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.grid())
	b.WriteString("\n\n")

	results := m.results.View()
	if m.running {
		results = m.spinner.View() + " searching, x to cancel"
	}
	panels := lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Render(m.currentText()),
		panelStyle.Render(results),
	)
	b.WriteString(panels)
	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render(help))
	return b.String()
}

func (m *Model) settingsLine() string {
	method := "Exhaustive"
	if m.strategy == config.StrategyAnnealing {
		method = "Simulated Annealing"
	}
	costs := make([]string, 0, len(allCosts))
	for _, c := range allCosts {
		if m.costs[c] {
			costs = append(costs, fmt.Sprint(c))
		} else {
			costs = append(costs, "·")
		}
	}
	return fmt.Sprintf("Method: %s   Size: %d   Headliner: %s   Costs: %s",
		method, m.size, m.headliners[m.headliner], strings.Join(costs, " "))
}

func (m *Model) grid() string {
	if len(m.visible) == 0 {
		return helpStyle.Render("no units match")
	}
	cols := m.columns()
	var rows []string
	var row []string
	for i, u := range m.visible {
		name := fitWidth(u.Name, cellWidth-2)
		cell := lipgloss.NewStyle().Width(cellWidth)
		switch {
		case m.current.Contains(u.Name):
			cell = cell.Inherit(pickedStyle)
			name = "+" + name
		case u.Cost > 0 && u.Cost < len(costColors):
			cell = cell.Foreground(costColors[u.Cost])
		}
		if i == m.cursor {
			cell = cell.Inherit(cursorStyle)
		}
		row = append(row, cell.Render(name))
		if len(row) == cols {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return strings.Join(rows, "\n")
}

// fitWidth trims whole runes off s until it spans at most width terminal cells.
func fitWidth(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r)) > width {
		r = r[:len(r)-1]
	}
	return string(r)
}
