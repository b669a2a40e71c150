// Package config provides configuration loading and access for the simulation core.
package config

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/primordium/corerr"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all core simulation configuration, grouped by subsystem.
type Config struct {
	World      WorldConfig      `yaml:"world"`
	Physics    PhysicsConfig    `yaml:"physics"`
	Evolution  EvolutionConfig  `yaml:"evolution"`
	Ecology    EcologyConfig    `yaml:"ecology"`
	Scheduling SchedulingConfig `yaml:"scheduling"`

	// Derived holds values computed once after load.
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig controls world geometry and determinism.
type WorldConfig struct {
	Width             int    `yaml:"width"`
	Height            int    `yaml:"height"`
	Seed              uint64 `yaml:"seed"`
	Deterministic     bool   `yaml:"deterministic"`
	InitialPopulation int    `yaml:"initial_population"`
	InitialFood       int    `yaml:"initial_food"`
}

// PhysicsConfig controls Action-phase movement and crowding constants.
type PhysicsConfig struct {
	Inertia         float64 `yaml:"inertia"`
	Responsiveness  float64 `yaml:"responsiveness"`
	CrowdingK       float64 `yaml:"crowding_k"`
	BaseIdleCost    float64 `yaml:"base_idle_cost"`
	EdgeMode        string  `yaml:"edge_mode"` // "wrap" or "bounce"
}

// EvolutionConfig controls mutation and speciation parameters.
type EvolutionConfig struct {
	BaseMutationRate    float64 `yaml:"base_mutation_rate"`
	MutationAmount      float64 `yaml:"mutation_amount"`
	BottleneckThreshold int     `yaml:"bottleneck_threshold"`
	StasisThreshold     int     `yaml:"stasis_threshold"`
	SpeciationThreshold float64 `yaml:"speciation_threshold"`
}

// EcologyConfig controls environment/carbon thresholds.
type EcologyConfig struct {
	SolarRate        float64 `yaml:"solar_rate"`
	CarbonWarn       float64 `yaml:"carbon_warn"`
	CarbonCrisis     float64 `yaml:"carbon_crisis"`
	CarbonCatastrophe float64 `yaml:"carbon_catastrophe"`
}

// SchedulingConfig controls tick concurrency.
type SchedulingConfig struct {
	ThreadCount  int `yaml:"thread_count"`
	TickBudgetMS int `yaml:"tick_budget_ms"`
}

// DerivedConfig holds values computed after loading raw YAML.
type DerivedConfig struct {
	TickBudget time.Duration
}

// DefaultConfig returns the embedded default configuration.
func DefaultConfig() (*Config, error) {
	return Load(defaultsYAML)
}

// Load parses YAML bytes into a Config and computes derived fields.
func Load(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Derived.TickBudget = time.Duration(cfg.Scheduling.TickBudgetMS) * time.Millisecond
	return cfg, nil
}

// Validate enforces invariants that must hold before World can start.
// A ConfigError here is fatal at init and never raised mid-tick.
func (c *Config) Validate() error {
	if c.World.Deterministic && c.World.Seed == 0 {
		return corerr.NewConfigError("world.seed is required when world.deterministic is true")
	}
	if c.World.Width <= 0 || c.World.Height <= 0 {
		return corerr.NewConfigError("world.width and world.height must be positive")
	}
	if c.Scheduling.ThreadCount < 0 {
		return corerr.NewConfigError("scheduling.thread_count must be >= 0 (0 means GOMAXPROCS)")
	}
	if c.Physics.EdgeMode != "wrap" && c.Physics.EdgeMode != "bounce" {
		return corerr.NewConfigError("physics.edge_mode must be \"wrap\" or \"bounce\"")
	}
	return nil
}
