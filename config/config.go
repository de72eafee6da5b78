// Package config provides configuration loading for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds all simulation configuration parameters.
type Config struct {
	Seed       int64                     `yaml:"seed"`
	Grid       GridConfig                `yaml:"grid"`
	Population PopulationConfig          `yaml:"population"`
	Actor      ActorConfig               `yaml:"actor"`
	Enforcer   EnforcerConfig            `yaml:"enforcer"`
	Districts  map[string]DistrictConfig `yaml:"districts"`
	Telemetry  TelemetryConfig           `yaml:"telemetry"`
	MapGen     MapGenConfig              `yaml:"mapgen"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// GridConfig holds the grid dimensions in cells.
type GridConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// PopulationConfig holds the initial population sizes.
type PopulationConfig struct {
	Actors    int `yaml:"actors"`
	Enforcers int `yaml:"enforcers"`
}

// ActorConfig holds actor draws and utility coefficients.
type ActorConfig struct {
	SearchRadius    int     `yaml:"search_radius"`
	RiskRadius      int     `yaml:"risk_radius"`
	RiskAversion    int     `yaml:"risk_aversion"`   // exclusive upper bound of the per-actor draw
	Disconnectivity int     `yaml:"disconnectivity"` // buddy ids drawn from [0, disconnectivity]
	MinWealth       int     `yaml:"min_wealth"`
	MaxWealth       int     `yaml:"max_wealth"`
	Upkeep          int     `yaml:"upkeep"`
	ResourceWeight  float64 `yaml:"resource_weight"`
	DistanceWeight  float64 `yaml:"distance_weight"`
	WealthWeight    float64 `yaml:"wealth_weight"`
	DesperateWeight float64 `yaml:"desperate_weight"`
	RiskSentinel    float64 `yaml:"risk_sentinel"`
	NearDistance    float64 `yaml:"near_distance"`
}

// EnforcerConfig holds enforcer parameters.
type EnforcerConfig struct {
	CatchRadius int `yaml:"catch_radius"`
	Sentence    int `yaml:"sentence"`
	LockSteps   int `yaml:"lock_steps"`
}

// DistrictConfig describes one named district.
// A user file that names a district overrides only the fields it sets.
type DistrictConfig struct {
	Ceiling      float64 `yaml:"ceiling"`      // resource map value classified as this district
	Surveillance int     `yaml:"surveillance"` // risk level and enforcer patrol radius
	Center       []int   `yaml:"center"`       // [x, y] target for rebalancing moves
}

// TelemetryConfig holds statistics and logging parameters.
type TelemetryConfig struct {
	BurnIn     int `yaml:"burn_in"`
	PerfWindow int `yaml:"perf_window"`
	LogEvery   int `yaml:"log_every"`
}

// MapGenConfig holds synthetic resource map parameters.
type MapGenConfig struct {
	Scale   float64 `yaml:"scale"`   // noise frequency per cell
	Octaves int     `yaml:"octaves"` // FBM octaves
	Jitter  float64 `yaml:"jitter"`  // max noise offset added to center distances, in cells
	Coast   float64 `yaml:"coast"`   // fraction of the half-diagonal beyond which cells stay undefined
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Cells         int      // Grid.Width * Grid.Height
	DistrictNames []string // sorted keys of Districts
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		defaults := make(map[string]DistrictConfig, len(cfg.Districts))
		for name, d := range cfg.Districts {
			defaults[name] = d
		}

		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
		if err := mergeDistricts(cfg, data, defaults); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// mergeDistricts redecodes every district named in the user file on top of
// its default entry. yaml.v3 replaces map values whole, which would drop the
// fields the file leaves out.
func mergeDistricts(cfg *Config, data []byte, defaults map[string]DistrictConfig) error {
	var overlay struct {
		Districts map[string]yaml.Node `yaml:"districts"`
	}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return err
	}
	for name, node := range overlay.Districts {
		d := defaults[name]
		if err := node.Decode(&d); err != nil {
			return fmt.Errorf("district %q: %w", name, err)
		}
		cfg.Districts[name] = d
	}
	return nil
}

// Default returns the embedded defaults. Panics if they do not parse.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Validate checks the construction-time parameters.
func (c *Config) Validate() error {
	if c.Grid.Width <= 0 || c.Grid.Height <= 0 {
		return fmt.Errorf("%w: grid must be at least 1x1, got %dx%d", ErrInvalid, c.Grid.Width, c.Grid.Height)
	}

	counts := []struct {
		name  string
		value int
	}{
		{"population.actors", c.Population.Actors},
		{"population.enforcers", c.Population.Enforcers},
		{"actor.search_radius", c.Actor.SearchRadius},
		{"actor.risk_radius", c.Actor.RiskRadius},
		{"actor.risk_aversion", c.Actor.RiskAversion},
		{"actor.disconnectivity", c.Actor.Disconnectivity},
		{"actor.upkeep", c.Actor.Upkeep},
		{"enforcer.catch_radius", c.Enforcer.CatchRadius},
		{"enforcer.sentence", c.Enforcer.Sentence},
		{"enforcer.lock_steps", c.Enforcer.LockSteps},
		{"telemetry.burn_in", c.Telemetry.BurnIn},
	}
	for _, n := range counts {
		if n.value < 0 {
			return fmt.Errorf("%w: %s must be non-negative, got %d", ErrInvalid, n.name, n.value)
		}
	}

	if c.Actor.MaxWealth <= c.Actor.MinWealth {
		return fmt.Errorf("%w: actor.max_wealth (%d) must exceed actor.min_wealth (%d)",
			ErrInvalid, c.Actor.MaxWealth, c.Actor.MinWealth)
	}

	for name, d := range c.Districts {
		if len(d.Center) != 2 {
			return fmt.Errorf("%w: district %q center must be [x, y]", ErrInvalid, name)
		}
		if d.Surveillance < 0 {
			return fmt.Errorf("%w: district %q surveillance must be non-negative", ErrInvalid, name)
		}
	}

	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Cells = c.Grid.Width * c.Grid.Height

	c.Derived.DistrictNames = make([]string, 0, len(c.Districts))
	for name := range c.Districts {
		c.Derived.DistrictNames = append(c.Derived.DistrictNames, name)
	}
	sort.Strings(c.Derived.DistrictNames)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
