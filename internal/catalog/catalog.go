// Package catalog loads the unit catalog and trait threshold table and
// answers the lookups the UI layers need before a search: cost filtering,
// text matching and resolving unit names.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"team-optimizer/data"
	"team-optimizer/internal/team"
)

// ErrUnknownUnit is returned by Lookup for names not in the catalog.
var ErrUnknownUnit = errors.New("unknown unit")

// Catalog is a read-only set of units plus their trait thresholds.
type Catalog struct {
	units      []team.Unit
	byName     map[string]int
	thresholds team.Thresholds
}

// New builds a catalog, rejecting duplicate or empty unit names.
func New(units []team.Unit, thresholds team.Thresholds) (*Catalog, error) {
	c := &Catalog{
		units:      make([]team.Unit, 0, len(units)),
		byName:     make(map[string]int, len(units)),
		thresholds: thresholds,
	}
	for _, u := range units {
		if u.Name == "" {
			return nil, errors.New("catalog: unit with empty name")
		}
		if _, dup := c.byName[strings.ToLower(u.Name)]; dup {
			return nil, fmt.Errorf("catalog: duplicate unit %q", u.Name)
		}
		c.byName[strings.ToLower(u.Name)] = len(c.units)
		c.units = append(c.units, u)
	}
	if c.thresholds == nil {
		c.thresholds = team.Thresholds{}
	}
	return c, nil
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return fromStrings(data.Champions, data.Traits)
}

// Load reads the catalog from disk. An empty path falls back to the embedded copy.
func Load(unitsPath, traitsPath string) (*Catalog, error) {
	unitsJSON := data.Champions
	if unitsPath != "" {
		b, err := os.ReadFile(unitsPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", unitsPath, err)
		}
		unitsJSON = string(b)
	}
	traitsYAML := data.Traits
	if traitsPath != "" {
		b, err := os.ReadFile(traitsPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", traitsPath, err)
		}
		traitsYAML = string(b)
	}
	return fromStrings(unitsJSON, traitsYAML)
}

func fromStrings(unitsJSON, traitsYAML string) (*Catalog, error) {
	units, err := ParseUnits(unitsJSON)
	if err != nil {
		return nil, err
	}
	th, err := ParseThresholds([]byte(traitsYAML))
	if err != nil {
		return nil, err
	}
	return New(units, th)
}

// ParseUnits decodes a JSON array of {"name", "traits", "cost"} objects.
func ParseUnits(unitsJSON string) ([]team.Unit, error) {
	if !gjson.Valid(unitsJSON) {
		return nil, errors.New("catalog: units: invalid JSON")
	}
	root := gjson.Parse(unitsJSON)
	if !root.IsArray() {
		return nil, errors.New("catalog: units: expected a JSON array")
	}

	var units []team.Unit
	var parseErr error
	i := -1
	root.ForEach(func(_, v gjson.Result) bool {
		i++
		name := strings.TrimSpace(v.Get("name").String())
		if name == "" {
			parseErr = fmt.Errorf("catalog: units[%d]: missing name", i)
			return false
		}
		cost := v.Get("cost")
		if cost.Type != gjson.Number || cost.Int() <= 0 {
			parseErr = fmt.Errorf("catalog: unit %q: cost must be a positive number", name)
			return false
		}
		var traits []string
		v.Get("traits").ForEach(func(_, t gjson.Result) bool {
			if s := strings.TrimSpace(t.String()); s != "" {
				traits = append(traits, s)
			}
			return true
		})
		units = append(units, team.Unit{Name: name, Traits: traits, Cost: int(cost.Int())})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return units, nil
}

type traitsFile struct {
	Thresholds map[string]int `yaml:"thresholds"`
}

// ParseThresholds decodes a YAML document with a top-level "thresholds" map.
func ParseThresholds(b []byte) (team.Thresholds, error) {
	var f traitsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("catalog: traits: %w", err)
	}
	th := make(team.Thresholds, len(f.Thresholds))
	for trait, n := range f.Thresholds {
		if n <= 0 {
			return nil, fmt.Errorf("catalog: trait %q: threshold must be positive, got %d", trait, n)
		}
		th[trait] = n
	}
	return th, nil
}

// Units returns every unit in catalog order.
func (c *Catalog) Units() []team.Unit {
	return slices.Clone(c.units)
}

// Thresholds returns the trait activation table.
func (c *Catalog) Thresholds() team.Thresholds {
	return c.thresholds
}

// HeadlinerOptions lists the traits that may be chosen as headliner.
func (c *Catalog) HeadlinerOptions() []string {
	return c.thresholds.Traits()
}

// Unit returns the unit with the given name, ignoring case.
func (c *Catalog) Unit(name string) (team.Unit, bool) {
	i, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return team.Unit{}, false
	}
	return c.units[i], true
}

// Lookup resolves names to units, in the order given.
func (c *Catalog) Lookup(names ...string) ([]team.Unit, error) {
	out := make([]team.Unit, 0, len(names))
	for _, n := range names {
		u, ok := c.Unit(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownUnit, n)
		}
		out = append(out, u)
	}
	return out, nil
}

// FilterByCost keeps units whose cost is in costs. An empty costs list keeps everything.
func (c *Catalog) FilterByCost(costs []int) []team.Unit {
	if len(costs) == 0 {
		return c.Units()
	}
	var out []team.Unit
	for _, u := range c.units {
		if slices.Contains(costs, u.Cost) {
			out = append(out, u)
		}
	}
	return out
}

// Match reports whether any word of query is a case-insensitive substring of
// the unit's name or one of its traits. A blank query matches every unit.
func Match(u team.Unit, query string) bool {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return true
	}
	name := strings.ToLower(u.Name)
	for _, w := range words {
		if strings.Contains(name, w) {
			return true
		}
		for _, t := range u.Traits {
			if strings.Contains(strings.ToLower(t), w) {
				return true
			}
		}
	}
	return false
}

// Search returns the units matching query, in catalog order.
func Search(units []team.Unit, query string) []team.Unit {
	var out []team.Unit
	for _, u := range units {
		if Match(u, query) {
			out = append(out, u)
		}
	}
	return out
}
