//go:build !lambda

package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"team-optimizer/internal/catalog"
	"team-optimizer/internal/engine"
	"team-optimizer/internal/server"
	"team-optimizer/internal/tui"
)

func newSearchCmd(a *app) *cobra.Command {
	var req engine.Request
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find the teams that activate the most traits",
		Example: `  team-optimizer search --size 7 --costs 1,2,3
  team-optimizer search --strategy annealing --size 9 --mandatory Jinx,Vi --seed 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.eng.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			fmt.Fprint(cmd.OutOrStdout(), out.Text())
			if !out.Cancelled {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s search: %d traits in %.1fs\n",
					out.Strategy, out.Count, float64(out.TimeMs)/1000)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&req.Strategy, "strategy", "s", "", "exhaustive or annealing (default from config)")
	f.IntVarP(&req.TeamSize, "size", "n", 0, "units per team (default from config)")
	f.StringSliceVarP(&req.Mandatory, "mandatory", "m", nil, "units every team must include")
	f.StringVar(&req.Headliner, "headliner", "", "headliner trait")
	f.IntSliceVar(&req.Costs, "costs", nil, "unit costs allowed in the pool (default from config)")
	f.Uint64Var(&req.Seed, "seed", 0, "annealing seed (0 picks one)")
	f.BoolVar(&req.Force, "force", false, "run exhaustive searches larger than search.max_combinations")
	f.BoolVar(&jsonOut, "json", false, "print the result as JSON")
	return cmd
}

func newEvaluateCmd(a *app) *cobra.Command {
	var headliner string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "evaluate UNIT...",
		Short: "Score a hand-picked team",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := a.eng.Evaluate(args, headliner)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), ev)
			}
			fmt.Fprint(cmd.OutOrStdout(), ev.Text())
			return nil
		},
	}
	cmd.Flags().StringVar(&headliner, "headliner", "", "headliner trait")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the result as JSON")
	return cmd
}

func newUnitsCmd(a *app) *cobra.Command {
	var costs []int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "units [QUERY]",
		Short: "List catalog units, optionally filtered by cost and name or trait",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			units := catalog.Search(a.eng.Catalog().FilterByCost(costs), query)
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), units)
			}
			w := cmd.OutOrStdout()
			for _, u := range units {
				fmt.Fprintf(w, "%-12s (%d) %s\n", u.Name, u.Cost, strings.Join(u.Traits, ", "))
			}
			return nil
		},
	}
	cmd.Flags().IntSliceVar(&costs, "costs", nil, "only units with these costs")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the units as JSON")
	return cmd
}

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Build and search teams interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := tui.New(a.eng, tui.WithLogger(a.log))
			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			_, err := p.Run()
			return err
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv := server.New(a.eng,
				server.WithLogger(a.log),
				server.WithMetrics(a.metrics, a.reg))
			defer srv.Close()
			return srv.ListenAndServe(cmd.Context(), a.cfg.Server.Addr)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default from config)")
	_ = a.loader.BindFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}
