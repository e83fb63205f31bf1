// Package config holds the tunable settings shared by the CLI, TUI, HTTP
// server and Lambda handler. Values come from built-in defaults, an optional
// YAML file, TEAMOPT_* environment variables and bound command-line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"team-optimizer/internal/team"
)

// Search strategies.
const (
	StrategyExhaustive = "exhaustive"
	StrategyAnnealing  = "annealing"
)

// EnvPrefix is prepended to every environment override, e.g. TEAMOPT_SEARCH_TEAM_SIZE.
const EnvPrefix = "TEAMOPT"

// Config is the full runtime configuration.
type Config struct {
	Search    SearchConfig    `mapstructure:"search"`
	Annealing AnnealingConfig `mapstructure:"annealing"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
}

// SearchConfig sets the defaults for a search request.
type SearchConfig struct {
	// Strategy is StrategyExhaustive or StrategyAnnealing.
	Strategy string `mapstructure:"strategy"`
	// TeamSize is the number of units per team.
	TeamSize int `mapstructure:"team_size"`
	// Costs lists the unit costs allowed into the search pool.
	Costs []int `mapstructure:"costs"`
	// MaxCombinations caps the exhaustive search space a caller may start
	// without forcing it.
	MaxCombinations float64 `mapstructure:"max_combinations"`
}

// AnnealingConfig tunes the simulated annealing strategy.
type AnnealingConfig struct {
	team.Schedule `mapstructure:",squash"`
	// Seed fixes the random source; 0 picks a fresh seed per run.
	Seed uint64 `mapstructure:"seed"`
}

// CatalogConfig points at the unit and trait files. Empty paths use the embedded data.
type CatalogConfig struct {
	Units  string `mapstructure:"units"`
	Traits string `mapstructure:"traits"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// JobRetention is how many finished async searches stay queryable.
	// Older ones are forgotten first.
	JobRetention int `mapstructure:"job_retention"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// File, when set, receives log output instead of stderr.
	File string `mapstructure:"file"`
}

var defaults = map[string]any{
	"search.strategy":               StrategyExhaustive,
	"search.team_size":              7,
	"search.costs":                  []int{1, 2, 3, 4, 5},
	"search.max_combinations":       5e7,
	"annealing.initial_temperature": team.DefaultSchedule().Initial,
	"annealing.final_temperature":   team.DefaultSchedule().Final,
	"annealing.cooling_rate":        team.DefaultSchedule().Cooling,
	"annealing.seed":                0,
	"catalog.units":                 "",
	"catalog.traits":                "",
	"server.addr":                   ":8080",
	"server.job_retention":          256,
	"log.level":                     "info",
	"log.format":                    "text",
	"log.file":                      "",
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Search: SearchConfig{
			Strategy:        StrategyExhaustive,
			TeamSize:        7,
			Costs:           []int{1, 2, 3, 4, 5},
			MaxCombinations: 5e7,
		},
		Annealing: AnnealingConfig{Schedule: team.DefaultSchedule()},
		Server:    ServerConfig{Addr: ":8080", JobRetention: 256},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Loader layers defaults, file, environment and flags.
type Loader struct {
	v *viper.Viper
}

// NewLoader returns a loader with defaults and environment overrides registered.
func NewLoader() *Loader {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// BindFlag makes flag f override key when the flag is set on the command line.
func (l *Loader) BindFlag(key string, f *pflag.Flag) error {
	if f == nil {
		return fmt.Errorf("config: no flag for %s", key)
	}
	return l.v.BindPFlag(key, f)
}

// Load reads path (if non-empty), applies overrides and validates the result.
func (l *Loader) Load(path string) (*Config, error) {
	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var c Config
	if err := l.v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load is NewLoader().Load(path).
func Load(path string) (*Config, error) {
	return NewLoader().Load(path)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains([]string{StrategyExhaustive, StrategyAnnealing}, c.Search.Strategy) {
		errs = append(errs, fmt.Errorf("search.strategy: unknown strategy %q", c.Search.Strategy))
	}
	if c.Search.TeamSize <= 0 {
		errs = append(errs, fmt.Errorf("search.team_size: must be positive, got %d", c.Search.TeamSize))
	}
	for _, cost := range c.Search.Costs {
		if cost <= 0 {
			errs = append(errs, fmt.Errorf("search.costs: must be positive, got %d", cost))
		}
	}
	if !(c.Search.MaxCombinations > 0) {
		errs = append(errs, errors.New("search.max_combinations: must be positive"))
	}
	if c.Server.JobRetention <= 0 {
		errs = append(errs, fmt.Errorf("server.job_retention: must be positive, got %d", c.Server.JobRetention))
	}
	if err := c.Annealing.Schedule.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("annealing: %w", err))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	if !slices.Contains([]string{"text", "json"}, strings.ToLower(c.Log.Format)) {
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
