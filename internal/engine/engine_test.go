package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"team-optimizer/internal/catalog"
	"team-optimizer/internal/config"
	"team-optimizer/internal/metrics"
	"team-optimizer/internal/team"
)

// smallCatalog holds A{X} B{X} C{X,Y} D{Y} E{Y}, with X and Y needing 2.
// E costs 2, the rest cost 1.
func smallCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]team.Unit{
		{Name: "A", Traits: []string{"X"}, Cost: 1},
		{Name: "B", Traits: []string{"X"}, Cost: 1},
		{Name: "C", Traits: []string{"X", "Y"}, Cost: 1},
		{Name: "D", Traits: []string{"Y"}, Cost: 1},
		{Name: "E", Traits: []string{"Y"}, Cost: 2},
	}, team.Thresholds{"X": 2, "Y": 2})
	require.NoError(t, err)
	return cat
}

func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.Search.TeamSize = 3
	cfg.Search.Costs = nil
	cfg.Annealing.Schedule = team.Schedule{Initial: 1, Final: 0.01, Cooling: 0.95}
	cfg.Annealing.Seed = 7
	return cfg
}

func keys(o Outcome) []string {
	var out []string
	for _, s := range o.Teams {
		out = append(out, s.Team.Key())
	}
	return out
}

func TestRunExhaustive(t *testing.T) {
	e := New(smallCatalog(t), smallConfig())
	out, err := e.Run(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, config.StrategyExhaustive, out.Strategy)
	assert.Equal(t, 2, out.Count)
	assert.ElementsMatch(t, []string{"A|C|D", "A|C|E", "B|C|D", "B|C|E"}, keys(out))
	assert.Equal(t, 10.0, out.Estimate)
	assert.False(t, out.Cancelled)
	assert.True(t, strings.HasPrefix(out.Text(), "There are 4 Teams that Activate 2 Traits\n"))
}

func TestRunAppliesCostFilter(t *testing.T) {
	e := New(smallCatalog(t), smallConfig())
	out, err := e.Run(context.Background(), Request{Costs: []int{1}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A|C|D", "B|C|D"}, keys(out))
}

func TestMandatoryIgnoresCostFilter(t *testing.T) {
	e := New(smallCatalog(t), smallConfig())
	out, err := e.Run(context.Background(), Request{Costs: []int{1}, Mandatory: []string{"e"}})
	require.NoError(t, err)
	for _, s := range out.Teams {
		assert.True(t, s.Team.Contains("E"), "team %s lost mandatory unit", s.Team.Key())
	}
}

func TestRunHeadliner(t *testing.T) {
	e := New(smallCatalog(t), smallConfig())
	out, err := e.Run(context.Background(), Request{TeamSize: 2, Headliner: "y"})
	require.NoError(t, err)
	assert.Equal(t, "Y", out.Headliner)
	assert.Equal(t, 2, out.Count)
	assert.Contains(t, out.Text(), "**")
}

func TestRunAnnealing(t *testing.T) {
	e := New(smallCatalog(t), smallConfig())
	out, err := e.Run(context.Background(), Request{Strategy: "anneal"})
	require.NoError(t, err)
	assert.Equal(t, config.StrategyAnnealing, out.Strategy)
	require.Len(t, out.Teams, 1)
	assert.Len(t, out.Teams[0].Team, 3)
	assert.Positive(t, out.Iterations)
	n, _ := team.Score(out.Teams[0].Team, team.Thresholds{"X": 2, "Y": 2}, "")
	assert.Equal(t, n, out.Count)
}

func TestRunRejectsBadRequests(t *testing.T) {
	e := New(smallCatalog(t), smallConfig())
	cases := []struct {
		name string
		req  Request
		want error
	}{
		{"strategy", Request{Strategy: "genetic"}, ErrUnknownStrategy},
		{"headliner", Request{Headliner: "Z"}, ErrUnknownTrait},
		{"unit", Request{Mandatory: []string{"Zed"}}, catalog.ErrUnknownUnit},
		{"negative size", Request{TeamSize: -1}, ErrInvalidTeamSize},
		{"too many mandatory", Request{TeamSize: 1, Mandatory: []string{"A", "B"}}, ErrInvalidTeamSize},
		{"pool too small", Request{TeamSize: 4, Costs: []int{2}}, ErrInvalidTeamSize},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Run(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSearchTooLarge(t *testing.T) {
	cfg := smallConfig()
	cfg.Search.MaxCombinations = 5
	e := New(smallCatalog(t), cfg)

	_, err := e.Run(context.Background(), Request{})
	require.ErrorIs(t, err, ErrSearchTooLarge)

	out, err := e.Run(context.Background(), Request{Force: true})
	require.NoError(t, err)
	assert.Len(t, out.Teams, 4)
}

func TestSearchNotEnumerable(t *testing.T) {
	units := make([]team.Unit, 62)
	for i := range units {
		units[i] = team.Unit{Name: fmt.Sprintf("U%02d", i), Traits: []string{"X"}, Cost: 1}
	}
	cat, err := catalog.New(units, team.Thresholds{"X": 2})
	require.NoError(t, err)
	e := New(cat, smallConfig())

	_, err = e.Estimate(Request{TeamSize: 31})
	require.ErrorIs(t, err, ErrSearchTooLarge)

	// force lifts the configured limit, not the counting limit
	_, err = e.Run(context.Background(), Request{TeamSize: 31, Force: true})
	require.ErrorIs(t, err, ErrSearchTooLarge)

	// annealing does not enumerate, so the same request is fine
	out, err := e.Run(context.Background(), Request{TeamSize: 31, Strategy: config.StrategyAnnealing})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Count)
	require.Len(t, out.Teams, 1)
	assert.Len(t, out.Teams[0].Team, 31)
}

func TestRunCancelled(t *testing.T) {
	e := New(smallCatalog(t), smallConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := e.Run(ctx, Request{})
	require.NoError(t, err)
	assert.True(t, out.Cancelled)
	assert.Equal(t, "Search cancelled\n", out.Text())
}

func TestRunRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := smallConfig()
	cfg.Search.MaxCombinations = 5
	e := New(smallCatalog(t), cfg, WithMetrics(metrics.New(reg)))

	_, _ = e.Run(context.Background(), Request{Force: true})
	_, _ = e.Run(context.Background(), Request{})
	_, _ = e.Run(context.Background(), Request{Strategy: "genetic"})

	// exhaustive/completed, exhaustive/rejected, unknown/rejected
	n, err := testutil.GatherAndCount(reg, "teamopt_searches_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestEstimate(t *testing.T) {
	e := New(smallCatalog(t), smallConfig())
	n, err := e.Estimate(Request{Mandatory: []string{"A"}})
	require.NoError(t, err)
	assert.Equal(t, 6.0, n)
}

func TestEvaluate(t *testing.T) {
	e := New(smallCatalog(t), smallConfig())
	ev, err := e.Evaluate([]string{"a", "C", "d", "A"}, "none")
	require.NoError(t, err)
	assert.Len(t, ev.Team, 3)
	assert.Equal(t, 2, ev.Count)
	assert.Equal(t, []string{"X", "Y"}, ev.Activated)
	assert.True(t, strings.HasPrefix(ev.Text(), "Team has 3 Units\n"))

	_, err = e.Evaluate([]string{"nobody"}, "")
	assert.ErrorIs(t, err, catalog.ErrUnknownUnit)
}

func TestNormalizeStrategy(t *testing.T) {
	for in, want := range map[string]string{
		"Exhaustive":          config.StrategyExhaustive,
		"brute-force":         config.StrategyExhaustive,
		" annealing ":         config.StrategyAnnealing,
		"simulated annealing": config.StrategyAnnealing,
	} {
		got, err := NormalizeStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
