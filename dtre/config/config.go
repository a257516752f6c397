// Package config loads the ambient, non-deterministic-knob-free settings
// a replay.Builder is constructed with: checkpoint cadence and worker
// pool shape. It is read once at build time (see EngineConfig's use in
// replay.WithConfig) — there is no mid-replay reconfiguration, since a
// setting that could change between two runs of the same transaction
// sequence would undermine the determinism the rest of this module
// exists to guarantee.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WorkerProfile names one parallel-driver worker slot for operator
// observability. Workers is decoded and kept on EngineConfig, but
// nothing in replay reads or logs it; trace.PerformanceMetrics.WorkerCounts
// is keyed by how many transactions a batch ran concurrently, not by
// worker.
type WorkerProfile struct {
	Name string `yaml:"name"`
}

// EngineConfig holds the settings a replay.Builder accepts via
// WithConfig.
type EngineConfig struct {
	// CheckpointInterval is the number of transactions between automatic
	// checkpoints during Engine.ReplayWithCheckpoints. Zero is replaced
	// by DefaultCheckpointInterval (by ApplyDefaults, and by
	// ReplayWithCheckpoints for any value <= 0); Engine.Replay never
	// captures checkpoints.
	CheckpointInterval int64 `yaml:"checkpoint_interval"`

	// MaxWorkers bounds the parallel driver's concurrency. Must be at
	// least 1; Validate rejects anything less.
	MaxWorkers int `yaml:"max_workers"`

	Workers []WorkerProfile `yaml:"workers"`
}

// DefaultCheckpointInterval mirrors the teacher engine's
// DefaultMaxSteps-style "safe default that works for most callers"
// convention.
const DefaultCheckpointInterval = 1000

// DefaultMaxWorkers is the parallel driver's default concurrency when a
// caller hasn't configured one.
const DefaultMaxWorkers = 8

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *EngineConfig) ApplyDefaults() {
	if c.CheckpointInterval == 0 {
		c.CheckpointInterval = DefaultCheckpointInterval
	}
	if c.MaxWorkers == 0 {
		c.MaxWorkers = DefaultMaxWorkers
	}
}

// Validate reports whether the configuration is usable.
func (c *EngineConfig) Validate() error {
	if c.CheckpointInterval < 0 {
		return fmt.Errorf("config: checkpoint_interval must be >= 0, got %d", c.CheckpointInterval)
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("config: max_workers must be >= 1, got %d", c.MaxWorkers)
	}
	return nil
}

// Load reads, applies defaults to, and validates an EngineConfig from a
// YAML file at path.
func Load(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg EngineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns an EngineConfig with every field set to its default.
func Default() EngineConfig {
	cfg := EngineConfig{}
	cfg.ApplyDefaults()
	return cfg
}
