package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"pvyield_simulator/internal/model"
)

// File base names looked up in a catalog directory. Each may end in .json, .yaml or .yml.
const (
	SystemsFile   = "pv_systems"
	InvertersFile = "inverters"
	BatteriesFile = "batteries"
)

// Catalog holds the read-only hardware records, indexed by id and by display name.
type Catalog struct {
	systems   []model.PVSystem
	inverters []model.Inverter
	batteries []model.Battery

	sysByID   map[string]int
	sysByName map[string]int
	invByID   map[string]int
	invByName map[string]int
	batByID   map[string]int
	batByName map[string]int
}

// New builds a catalog from in-memory records.
func New(systems []model.PVSystem, inverters []model.Inverter, batteries []model.Battery) *Catalog {
	c := &Catalog{
		systems:   systems,
		inverters: inverters,
		batteries: batteries,
		sysByID:   make(map[string]int),
		sysByName: make(map[string]int),
		invByID:   make(map[string]int),
		invByName: make(map[string]int),
		batByID:   make(map[string]int),
		batByName: make(map[string]int),
	}
	for i, s := range systems {
		c.sysByID[s.ID] = i
		c.sysByName[s.Name] = i
	}
	for i, inv := range inverters {
		c.invByID[inv.ID] = i
		c.invByName[inv.Model] = i
	}
	for i, b := range batteries {
		c.batByID[b.ID] = i
		c.batByName[b.Model] = i
	}
	return c
}

// LoadDir reads the three catalog files from dir.
func LoadDir(dir string) (*Catalog, error) {
	var systems []model.PVSystem
	if err := loadFile(dir, SystemsFile, &systems); err != nil {
		return nil, err
	}
	var inverters []model.Inverter
	if err := loadFile(dir, InvertersFile, &inverters); err != nil {
		return nil, err
	}
	var batteries []model.Battery
	if err := loadFile(dir, BatteriesFile, &batteries); err != nil {
		return nil, err
	}
	return New(systems, inverters, batteries), nil
}

// loadFile decodes <dir>/<base>.{json,yaml,yml}. JSON input is read by the YAML decoder.
func loadFile(dir, base string, out any) error {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(dir, base+ext)
		raw, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		return nil
	}
	return fmt.Errorf("catalog %s not found in %s", base, dir)
}

// Systems returns all PV system records sorted by manufacturer and name.
func (c *Catalog) Systems() []model.PVSystem {
	out := make([]model.PVSystem, len(c.systems))
	copy(out, c.systems)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Manufacturer != out[j].Manufacturer {
			return out[i].Manufacturer < out[j].Manufacturer
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Inverters returns all inverter records.
func (c *Catalog) Inverters() []model.Inverter {
	out := make([]model.Inverter, len(c.inverters))
	copy(out, c.inverters)
	return out
}

// Batteries returns all battery records.
func (c *Catalog) Batteries() []model.Battery {
	out := make([]model.Battery, len(c.batteries))
	copy(out, c.batteries)
	return out
}

// Manufacturers lists the distinct system manufacturers.
func (c *Catalog) Manufacturers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range c.systems {
		if !seen[s.Manufacturer] {
			seen[s.Manufacturer] = true
			out = append(out, s.Manufacturer)
		}
	}
	sort.Strings(out)
	return out
}

// System finds a PV system by id or name. A non-empty manufacturer must match.
func (c *Catalog) System(key, manufacturer string) (model.PVSystem, error) {
	idx, ok := c.sysByID[key]
	if !ok {
		idx, ok = c.sysByName[key]
	}
	if !ok {
		return model.PVSystem{}, model.NewConfigError("system_name", "unknown PV system %q", key)
	}
	s := c.systems[idx]
	if manufacturer != "" && !strings.EqualFold(s.Manufacturer, manufacturer) {
		return model.PVSystem{}, model.NewConfigError("manufacturer",
			"system %q is made by %q, not %q", key, s.Manufacturer, manufacturer)
	}
	return s, nil
}

// Inverter finds an inverter by id or model name.
func (c *Catalog) Inverter(key string) (model.Inverter, error) {
	idx, ok := c.invByID[key]
	if !ok {
		idx, ok = c.invByName[key]
	}
	if !ok {
		return model.Inverter{}, model.NewConfigError("inverter_model", "unknown inverter %q", key)
	}
	return c.inverters[idx], nil
}

// Battery finds a battery by id or model name.
func (c *Catalog) Battery(key string) (model.Battery, error) {
	idx, ok := c.batByID[key]
	if !ok {
		idx, ok = c.batByName[key]
	}
	if !ok {
		return model.Battery{}, model.NewConfigError("battery_model", "unknown battery %q", key)
	}
	return c.batteries[idx], nil
}
