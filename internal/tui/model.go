// Package tui is the interactive terminal front end. It follows the Elm
// architecture bubbletea uses: Model holds all state, Update turns key
// presses and finished searches into new state, View renders it.
//
// Searches run in a tea.Cmd on their own goroutine with a context the
// user can cancel, so the UI keeps redrawing while the engine works.
package tui

import (
	"context"
	"log/slog"
	"slices"
	"strconv"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"team-optimizer/internal/catalog"
	"team-optimizer/internal/config"
	"team-optimizer/internal/engine"
	"team-optimizer/internal/logging"
	"team-optimizer/internal/team"
)

const (
	gridColumns = 13
	cellWidth   = 14
	minTeamSize = 1
	maxTeamSize = 12

	noHeadliner = "No Headliner"
)

var allCosts = []int{1, 2, 3, 4, 5}

// searchDoneMsg carries a finished search back into Update.
type searchDoneMsg struct {
	id  int
	out engine.Outcome
	err error
}

// Option customizes a Model.
type Option func(*Model)

// WithLogger sets the logger. The TUI owns the terminal, so it should
// write to a file.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.log = l
		}
	}
}

// Model is the whole TUI state.
type Model struct {
	eng *engine.Engine
	log *slog.Logger

	units   []team.Unit
	visible []team.Unit
	cursor  int

	current    team.Team
	size       int
	strategy   string
	headliners []string
	headliner  int
	costs      map[int]bool

	filter    textinput.Model
	filtering bool

	spinner spinner.Model
	results viewport.Model
	running bool
	cancel  context.CancelFunc
	runID   int

	status string
	width  int
	height int
}

// New returns a model over the engine's catalog, seeded from its config.
func New(eng *engine.Engine, opts ...Option) *Model {
	cfg := eng.Config()
	cat := eng.Catalog()

	filter := textinput.New()
	filter.Placeholder = "unit or trait"
	filter.Prompt = "/ "
	filter.CharLimit = 40

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &Model{
		eng:        eng,
		log:        logging.Discard(),
		units:      cat.Units(),
		size:       clamp(cfg.Search.TeamSize, minTeamSize, maxTeamSize),
		strategy:   cfg.Search.Strategy,
		headliners: append([]string{noHeadliner}, cat.HeadlinerOptions()...),
		costs:      make(map[int]bool, len(allCosts)),
		filter:     filter,
		spinner:    sp,
		results:    viewport.New(60, 12),
	}
	for _, c := range cfg.Search.Costs {
		m.costs[c] = true
	}
	if len(m.costs) == 0 {
		for _, c := range allCosts {
			m.costs[c] = true
		}
	}
	if s, err := engine.NormalizeStrategy(m.strategy); err == nil {
		m.strategy = s
	} else {
		m.strategy = config.StrategyExhaustive
	}
	for _, opt := range opts {
		opt(m)
	}
	m.refilter()
	return m
}

func clamp(n, lo, hi int) int {
	return max(lo, min(hi, n))
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.results.Width = max(20, m.width/2-4)
		m.results.Height = max(5, m.height/2-4)
		return m, nil

	case searchDoneMsg:
		return m.finishSearch(msg), nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case "ctrl+c":
		return m.quit()
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.refilter()
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "q", "ctrl+c":
		return m.quit()
	case "up", "k":
		m.moveCursor(-m.columns())
	case "down", "j":
		m.moveCursor(m.columns())
	case "left":
		m.moveCursor(-1)
	case "right":
		m.moveCursor(1)
	case " ", "space", "enter":
		m.toggleSelected()
	case "backspace":
		if n := len(m.current); n > 0 {
			m.current = m.current[:n-1]
		}
	case "c":
		m.current = nil
		m.status = ""
	case "/":
		m.filtering = true
		return m, m.filter.Focus()
	case "+", "=":
		m.size = clamp(m.size+1, minTeamSize, maxTeamSize)
	case "-", "_":
		m.size = clamp(m.size-1, max(minTeamSize, len(m.current)), maxTeamSize)
	case "m":
		if m.strategy == config.StrategyExhaustive {
			m.strategy = config.StrategyAnnealing
		} else {
			m.strategy = config.StrategyExhaustive
		}
	case "h":
		m.headliner = (m.headliner + 1) % len(m.headliners)
	case "1", "2", "3", "4", "5":
		c, _ := strconv.Atoi(key)
		m.costs[c] = !m.costs[c]
		m.refilter()
	case "r":
		if m.running {
			return m, nil
		}
		return m, tea.Batch(m.spinner.Tick, m.startSearch())
	case "x", "esc":
		m.cancelSearch()
	case "pgup", "pgdown", "ctrl+u", "ctrl+d":
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.cancelSearch()
	return m, tea.Quit
}

func (m *Model) columns() int {
	if m.width <= 0 {
		return gridColumns
	}
	return clamp(m.width/cellWidth, 1, gridColumns)
}

func (m *Model) moveCursor(delta int) {
	if len(m.visible) == 0 {
		m.cursor = 0
		return
	}
	m.cursor = clamp(m.cursor+delta, 0, len(m.visible)-1)
}

// refilter recomputes the visible grid from the cost toggles and the text filter.
func (m *Model) refilter() {
	var pool []team.Unit
	for _, u := range m.units {
		if m.costs[u.Cost] {
			pool = append(pool, u)
		}
	}
	m.visible = catalog.Search(pool, m.filter.Value())
	m.moveCursor(0)
}

// toggleSelected adds the unit under the cursor to the current team, or
// removes it if it is already there.
func (m *Model) toggleSelected() {
	if len(m.visible) == 0 {
		return
	}
	u := m.visible[m.cursor]
	if i := slices.IndexFunc(m.current, func(c team.Unit) bool { return c.Name == u.Name }); i >= 0 {
		m.current = slices.Delete(m.current, i, i+1)
		m.status = ""
		return
	}
	if len(m.current) >= m.size {
		m.status = "Team is full; raise the size with +"
		return
	}
	m.current = append(m.current, u)
	m.status = ""
}

func (m *Model) selectedCosts() []int {
	var out []int
	for _, c := range allCosts {
		if m.costs[c] {
			out = append(out, c)
		}
	}
	return out
}

func (m *Model) request() engine.Request {
	return engine.Request{
		Strategy:  m.strategy,
		TeamSize:  m.size,
		Mandatory: m.current.Names(),
		Headliner: m.headliners[m.headliner],
		Costs:     m.selectedCosts(),
		// the user can cancel, so the unattended limit does not apply
		Force: true,
	}
}

// startSearch marks the model busy and returns the command that runs the search.
func (m *Model) startSearch() tea.Cmd {
	if len(m.selectedCosts()) == 0 {
		m.status = "Select at least one cost"
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true
	m.runID++
	m.status = "Searching..."

	id, req, eng := m.runID, m.request(), m.eng
	m.log.Info("tui search", "id", id, "strategy", req.Strategy, "size", req.TeamSize,
		"mandatory", req.Mandatory, "headliner", req.Headliner)
	return func() tea.Msg {
		defer cancel()
		out, err := eng.Run(ctx, req)
		return searchDoneMsg{id: id, out: out, err: err}
	}
}

func (m *Model) cancelSearch() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Model) finishSearch(msg searchDoneMsg) *Model {
	if msg.id != m.runID {
		return m
	}
	m.running = false
	m.cancel = nil
	switch {
	case msg.err != nil:
		m.status = "Error: " + msg.err.Error()
		m.log.Warn("tui search failed", "id", msg.id, "error", msg.err)
	case msg.out.Cancelled:
		m.status = "Search cancelled"
	default:
		m.status = "Done in " + strconv.FormatInt(msg.out.TimeMs, 10) + "ms"
		m.results.SetContent(msg.out.Text())
		m.results.GotoTop()
	}
	return m
}

// currentText renders the live current-team panel.
func (m *Model) currentText() string {
	ev, err := m.eng.Evaluate(m.current.Names(), m.headliners[m.headliner])
	if err != nil {
		return err.Error()
	}
	return ev.Text()
}
