// Package engine turns caller requests into team searches. It resolves
// names against the catalog, fills in configured defaults, refuses
// exhaustive searches that are too large to run unattended, and wraps
// every search in logging and metrics.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"team-optimizer/internal/catalog"
	"team-optimizer/internal/config"
	"team-optimizer/internal/logging"
	"team-optimizer/internal/metrics"
	"team-optimizer/internal/team"
)

// progressEvery is how often annealing progress is logged at debug level.
const progressEvery = 10000

var (
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrUnknownTrait    = errors.New("unknown headliner trait")
	ErrInvalidTeamSize = errors.New("invalid team size")
	ErrSearchTooLarge  = errors.New("search space too large")
)

// Request is a search as asked for by a UI or API caller. Zero values fall
// back to the configured defaults.
type Request struct {
	Strategy  string   `json:"strategy"`
	TeamSize  int      `json:"teamSize"`
	Mandatory []string `json:"mandatory"`
	Headliner string   `json:"headliner"`
	Costs     []int    `json:"costs"`
	Seed      uint64   `json:"seed"`
	// Force runs exhaustive searches larger than search.max_combinations.
	Force bool `json:"force"`
}

// Outcome is a finished search in a form every front end can render.
type Outcome struct {
	Strategy   string        `json:"strategy"`
	Headliner  string        `json:"headliner,omitempty"`
	Count      int           `json:"count"`
	Teams      []team.Scored `json:"teams"`
	Activated  []string      `json:"activated"`
	Cancelled  bool          `json:"cancelled"`
	Estimate   float64       `json:"estimate,omitempty"`
	Iterations int           `json:"iterations,omitempty"`
	TimeMs     int64         `json:"timeMs"`
}

// Text renders the outcome the way the result panel shows it.
func (o Outcome) Text() string {
	if o.Cancelled {
		return "Search cancelled\n"
	}
	teams := make([]team.Team, len(o.Teams))
	for i := range o.Teams {
		teams[i] = o.Teams[i].Team
	}
	return team.FormatTeams(teams, o.Count, team.SearchHeader(len(teams), o.Count), o.Headliner)
}

// Evaluation is the score of a hand-picked team.
type Evaluation struct {
	Team      team.Team `json:"team"`
	Count     int       `json:"count"`
	Activated []string  `json:"activated"`
	Headliner string    `json:"headliner,omitempty"`
}

// Text renders the evaluation with a "Team has N Units" header.
func (ev Evaluation) Text() string {
	return team.FormatTeams([]team.Team{ev.Team}, ev.Count, team.CurrentHeader(len(ev.Team)), ev.Headliner)
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine runs searches against one catalog. It is safe for concurrent use:
// every search builds its own parameters and scratch state.
type Engine struct {
	catalog *catalog.Catalog
	cfg     *config.Config
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New returns an engine over cat. A nil cfg uses config.Default().
func New(cat *catalog.Catalog, cfg *config.Config, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	e := &Engine{catalog: cat, cfg: cfg, log: logging.Discard()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the catalog searches run against.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// Config returns the engine's configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// NormalizeStrategy maps user spellings onto the config strategy names.
func NormalizeStrategy(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case config.StrategyExhaustive, "brute-force", "brute force", "bruteforce":
		return config.StrategyExhaustive, nil
	case config.StrategyAnnealing, "anneal", "simulated-annealing", "simulated annealing":
		return config.StrategyAnnealing, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// normalizeHeadliner maps the "no headliner" spellings to "".
func (e *Engine) normalizeHeadliner(h string) (string, error) {
	h = strings.TrimSpace(h)
	switch strings.ToLower(h) {
	case "", "none", "no headliner":
		return "", nil
	}
	for _, t := range e.catalog.HeadlinerOptions() {
		if strings.EqualFold(t, h) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTrait, h)
}

// resolved is a request with defaults applied and names looked up.
type resolved struct {
	strategy string
	params   team.Params
	seed     uint64
}

func (e *Engine) resolve(req Request) (resolved, error) {
	var r resolved

	strategy := req.Strategy
	if strategy == "" {
		strategy = e.cfg.Search.Strategy
	}
	s, err := NormalizeStrategy(strategy)
	if err != nil {
		return r, err
	}
	r.strategy = s

	headliner, err := e.normalizeHeadliner(req.Headliner)
	if err != nil {
		return r, err
	}

	size := req.TeamSize
	if size == 0 {
		size = e.cfg.Search.TeamSize
	}
	costs := req.Costs
	if len(costs) == 0 {
		costs = e.cfg.Search.Costs
	}

	// mandatory units come from the full catalog, the pool from the cost filter
	mandatory, err := e.catalog.Lookup(req.Mandatory...)
	if err != nil {
		return r, err
	}
	mandatory = dedupe(mandatory)
	r.params = team.Params{
		Catalog:    e.catalog.FilterByCost(costs),
		TeamSize:   size,
		Mandatory:  mandatory,
		Headliner:  headliner,
		Thresholds: e.catalog.Thresholds(),
	}

	if size <= 0 || size < len(mandatory) {
		return r, fmt.Errorf("%w: %d with %d mandatory units", ErrInvalidTeamSize, size, len(mandatory))
	}
	available := len(mandatory)
	for _, u := range r.params.Catalog {
		if !team.Team(mandatory).Contains(u.Name) {
			available++
		}
	}
	if size > available {
		return r, fmt.Errorf("%w: %d exceeds the %d units available", ErrInvalidTeamSize, size, available)
	}

	r.seed = req.Seed
	if r.seed == 0 {
		r.seed = e.cfg.Annealing.Seed
	}
	return r, nil
}

func dedupe(units []team.Unit) []team.Unit {
	out := make([]team.Unit, 0, len(units))
	for _, u := range units {
		if !slices.ContainsFunc(out, func(o team.Unit) bool { return o.Name == u.Name }) {
			out = append(out, u)
		}
	}
	return out
}

// Estimate returns the number of teams an exhaustive search for req would score.
// An exhaustive request whose space cannot be enumerated at all fails with
// ErrSearchTooLarge, whatever Force says.
func (e *Engine) Estimate(req Request) (float64, error) {
	r, err := e.resolve(req)
	if err != nil {
		return 0, err
	}
	estimate := team.EstimateCombinations(r.params)
	if r.strategy == config.StrategyExhaustive && !team.Enumerable(r.params) {
		return estimate, fmt.Errorf("%w: %.3g combinations cannot be enumerated", ErrSearchTooLarge, estimate)
	}
	return estimate, nil
}

// Run executes req. Cancelling ctx aborts an exhaustive search and yields an
// Outcome with Cancelled set; annealing runs to the end of its schedule.
func (e *Engine) Run(ctx context.Context, req Request) (Outcome, error) {
	r, err := e.resolve(req)
	if err != nil {
		e.metrics.ObserveSearch(strategyLabel(req.Strategy), metrics.OutcomeRejected, 0, 0)
		return Outcome{}, err
	}
	log := e.log.With("strategy", r.strategy, "team_size", r.params.TeamSize,
		"mandatory", len(r.params.Mandatory), "pool", len(r.params.Catalog))

	switch r.strategy {
	case config.StrategyAnnealing:
		return e.runAnnealing(r, log), nil
	default:
		return e.runExhaustive(ctx, r, req.Force, log)
	}
}

func strategyLabel(s string) string {
	if n, err := NormalizeStrategy(s); err == nil {
		return n
	}
	return "unknown"
}

func (e *Engine) runExhaustive(ctx context.Context, r resolved, force bool, log *slog.Logger) (Outcome, error) {
	estimate := team.EstimateCombinations(r.params)
	e.metrics.ObserveEstimate(estimate)
	if !team.Enumerable(r.params) {
		e.metrics.ObserveSearch(r.strategy, metrics.OutcomeRejected, 0, 0)
		return Outcome{}, fmt.Errorf("%w: %.3g combinations cannot be enumerated", ErrSearchTooLarge, estimate)
	}
	if estimate > e.cfg.Search.MaxCombinations {
		if !force {
			e.metrics.ObserveSearch(r.strategy, metrics.OutcomeRejected, 0, 0)
			return Outcome{}, fmt.Errorf("%w: %.0f combinations (limit %.0f)",
				ErrSearchTooLarge, estimate, e.cfg.Search.MaxCombinations)
		}
		log.Warn("large exhaustive search", "combinations", estimate, "limit", e.cfg.Search.MaxCombinations)
	}
	log.Info("search started", "combinations", estimate)

	start := time.Now()
	res := team.Exhaustive(ctx, r.params)
	elapsed := time.Since(start)

	out := Outcome{
		Strategy:  r.strategy,
		Headliner: r.params.Headliner,
		Count:     res.Count,
		Teams:     res.Teams,
		Activated: res.Activated,
		Cancelled: res.Cancelled,
		Estimate:  estimate,
		TimeMs:    elapsed.Milliseconds(),
	}
	switch {
	case res.Cancelled:
		log.Info("search cancelled", "elapsed", elapsed)
		e.metrics.ObserveSearch(r.strategy, metrics.OutcomeCancelled, elapsed, 0)
	case len(res.Teams) == 0:
		log.Info("search found no teams", "elapsed", elapsed)
		e.metrics.ObserveSearch(r.strategy, metrics.OutcomeEmpty, elapsed, 0)
	default:
		log.Info("search finished", "count", res.Count, "teams", len(res.Teams), "elapsed", elapsed)
		e.metrics.ObserveSearch(r.strategy, metrics.OutcomeCompleted, elapsed, res.Count)
	}
	return out, nil
}

func (e *Engine) runAnnealing(r resolved, log *slog.Logger) Outcome {
	sched := e.cfg.Annealing.Schedule
	log.Info("search started", "steps", sched.Steps(), "seed", r.seed)

	a := team.NewAnnealer(sched, r.seed)
	a.Observe = func(s team.Step) {
		if s.Iteration%progressEvery == 0 {
			log.Debug("annealing progress", "iteration", s.Iteration,
				"temperature", s.Temperature, "current", s.Current, "best", s.Best)
		}
	}

	start := time.Now()
	res := a.Search(r.params)
	elapsed := time.Since(start)

	out := Outcome{
		Strategy:   r.strategy,
		Headliner:  r.params.Headliner,
		Count:      res.Count,
		Activated:  res.Activated,
		Iterations: res.Iterations,
		TimeMs:     elapsed.Milliseconds(),
	}
	if res.Team == nil {
		log.Info("search found no teams", "elapsed", elapsed)
		e.metrics.ObserveSearch(r.strategy, metrics.OutcomeEmpty, elapsed, 0)
		return out
	}
	out.Teams = []team.Scored{{Team: res.Team, Activated: res.Activated}}
	log.Info("search finished", "count", res.Count, "iterations", res.Iterations,
		"accepted", res.Accepted, "elapsed", elapsed)
	e.metrics.ObserveSearch(r.strategy, metrics.OutcomeCompleted, elapsed, res.Count)
	return out
}

// Evaluate scores the named units as a team. Repeated names count once.
func (e *Engine) Evaluate(names []string, headliner string) (Evaluation, error) {
	h, err := e.normalizeHeadliner(headliner)
	if err != nil {
		return Evaluation{}, err
	}
	units, err := e.catalog.Lookup(names...)
	if err != nil {
		return Evaluation{}, err
	}
	t := team.Team(dedupe(units))
	n, activated := team.Score(t, e.catalog.Thresholds(), h)
	return Evaluation{Team: t, Count: n, Activated: activated, Headliner: h}, nil
}
