package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration
// Every field has a working default; a config file overrides selectively
type Config struct {
	Jobs       JobsConfig       `yaml:"jobs"`
	Streaming  StreamingConfig  `yaml:"streaming"`
	Simulation SimulationConfig `yaml:"simulation"`
}

// JobsConfig sizes the job engine
type JobsConfig struct {
	// Workers <= 0 means one per CPU minus the owner thread
	Workers       int `yaml:"workers"`
	QueueCapacity int `yaml:"queue_capacity"`
	FenceCount    int `yaml:"fence_count"`
}

// StreamingConfig sizes the sector streaming pipeline
type StreamingConfig struct {
	SectorSize             float64 `yaml:"sector_size"`
	LoadRadius             int     `yaml:"load_radius"`
	UnloadRadius           int     `yaml:"unload_radius"`
	SectorBudget           int     `yaml:"sector_budget"`
	EntityBudget           int     `yaml:"entity_budget"`
	MaxConcurrentLoads     int     `yaml:"max_concurrent_loads"`
	MaxActivationsPerFrame int     `yaml:"max_activations_per_frame"`
	MaxDespawnsPerFrame    int     `yaml:"max_despawns_per_frame"`
	FrustumBias            float64 `yaml:"frustum_bias"`
	Seed                   uint32  `yaml:"seed"`

	// Path to an authored sqlite spawn database; empty selects the
	// procedural generator
	SpawnDB string `yaml:"spawn_db"`
}

// SimulationConfig sizes the fixed tick loop
type SimulationConfig struct {
	TickHz int `yaml:"tick_hz"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Jobs: JobsConfig{
			Workers:       runtime.NumCPU() - 1,
			QueueCapacity: 256,
			FenceCount:    64,
		},
		Streaming: StreamingConfig{
			SectorSize:             32,
			LoadRadius:             4,
			UnloadRadius:           6,
			SectorBudget:           128,
			EntityBudget:           20000,
			MaxConcurrentLoads:     4,
			MaxActivationsPerFrame: 4,
			MaxDespawnsPerFrame:    64,
			FrustumBias:            2.0,
			Seed:                   1337,
		},
		Simulation: SimulationConfig{
			TickHz: 60,
		},
	}
}

// Load reads a YAML file over the defaults
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the engines cannot run with
func (c *Config) Validate() error {
	if c.Jobs.Workers < 0 {
		c.Jobs.Workers = runtime.NumCPU() - 1
	}
	if c.Jobs.QueueCapacity <= 0 {
		return fmt.Errorf("jobs.queue_capacity must be positive, got %d", c.Jobs.QueueCapacity)
	}
	if c.Jobs.FenceCount <= 0 {
		return fmt.Errorf("jobs.fence_count must be positive, got %d", c.Jobs.FenceCount)
	}
	if c.Streaming.SectorSize <= 0 {
		return fmt.Errorf("streaming.sector_size must be positive, got %v", c.Streaming.SectorSize)
	}
	if c.Streaming.LoadRadius < 0 {
		return fmt.Errorf("streaming.load_radius must not be negative, got %d", c.Streaming.LoadRadius)
	}
	if c.Streaming.UnloadRadius < c.Streaming.LoadRadius {
		// Hysteresis gap: silently widening here would hide an authoring
		// mistake, so reject instead
		return fmt.Errorf("streaming.unload_radius (%d) must be >= load_radius (%d)",
			c.Streaming.UnloadRadius, c.Streaming.LoadRadius)
	}
	if c.Streaming.SectorBudget <= 0 {
		return fmt.Errorf("streaming.sector_budget must be positive, got %d", c.Streaming.SectorBudget)
	}
	if c.Simulation.TickHz <= 0 {
		return fmt.Errorf("simulation.tick_hz must be positive, got %d", c.Simulation.TickHz)
	}
	return nil
}
