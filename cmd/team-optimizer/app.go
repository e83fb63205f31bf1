//go:build !lambda

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"team-optimizer/internal/catalog"
	"team-optimizer/internal/config"
	"team-optimizer/internal/engine"
	"team-optimizer/internal/logging"
	"team-optimizer/internal/metrics"
)

// app is the state shared by every subcommand, built once the root
// command's flags are parsed.
type app struct {
	loader  *config.Loader
	cfgPath string

	cfg     *config.Config
	log     *slog.Logger
	closer  io.Closer
	reg     *prometheus.Registry
	metrics *metrics.Metrics
	eng     *engine.Engine
}

func newRootCmd() *cobra.Command {
	a := &app{loader: config.NewLoader()}

	root := &cobra.Command{
		Use:   "team-optimizer",
		Short: "Find auto-battler teams that activate the most traits",
		Long: `team-optimizer searches a unit catalog for the teams of a given size that
activate the most traits, either exhaustively or with simulated annealing.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { a.close() },
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "YAML config file")
	pf.String("catalog", "", "units JSON file (default: embedded catalog)")
	pf.String("traits", "", "trait thresholds YAML file (default: embedded table)")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.String("log-format", "", "text or json")
	pf.String("log-file", "", "write logs to this file instead of stderr")
	for key, name := range map[string]string{
		"catalog.units":  "catalog",
		"catalog.traits": "traits",
		"log.level":      "log-level",
		"log.format":     "log-format",
		"log.file":       "log-file",
	} {
		// flags are defined above, so binding cannot fail
		_ = a.loader.BindFlag(key, pf.Lookup(name))
	}

	root.AddCommand(
		newSearchCmd(a),
		newEvaluateCmd(a),
		newUnitsCmd(a),
		newTUICmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := a.loader.Load(a.cfgPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logCfg := logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
		Writer: cmd.ErrOrStderr(),
	}
	// the TUI owns the terminal
	if cmd.Name() == "tui" && logCfg.File == "" {
		logCfg.File = filepath.Join(os.TempDir(), "team-optimizer.log")
	}
	log, closer, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	a.log, a.closer = log, closer

	cat, err := catalog.Load(cfg.Catalog.Units, cfg.Catalog.Traits)
	if err != nil {
		return err
	}
	a.log.Debug("catalog loaded", "units", len(cat.Units()), "traits", len(cat.Thresholds()))

	a.reg = prometheus.NewRegistry()
	a.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.reg)
	a.eng = engine.New(cat, cfg, engine.WithLogger(a.log), engine.WithMetrics(a.metrics))
	return nil
}

func (a *app) close() {
	if a.closer != nil {
		a.closer.Close()
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
