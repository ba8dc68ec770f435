package voxlit

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EngineConfig holds the tunables the spec leaves as "implementation
// choice" (block edge, halo padding, worker count, drain interval, job
// batch size). Zero-valued fields are filled with defaults by
// applyDefaults so a partial YAML document is always safe to load.
type EngineConfig struct {
	// BlockSizePow2 is p in S = 1 << p; S must be a power of two, p in
	// {3,4,5} per spec section 3.
	BlockSizePow2 uint `yaml:"block_size_pow2"`
	// HaloPadding is P, the halo ring width copied from neighbors.
	HaloPadding int `yaml:"halo_padding"`
	// WorkerCount is the fixed thread-pool size W.
	WorkerCount int `yaml:"worker_count"`
	// DrainIntervalMillis is the target input-queue drain period from
	// spec section 4.4 ("target: every 500 ms or on a signal").
	DrainIntervalMillis int `yaml:"drain_interval_millis"`
	// MaxJobsPerWake bounds how many jobs a worker takes per wake (M in
	// spec section 4.4); must not starve any submitted job.
	MaxJobsPerWake int `yaml:"max_jobs_per_wake"`
}

// DefaultEngineConfig returns the engine's out-of-the-box tuning: a
// 16-voxel block edge, a single-voxel halo, four workers (callers may
// override), a 500ms drain target, and 8 jobs per wake.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BlockSizePow2:       4,
		HaloPadding:         1,
		WorkerCount:         4,
		DrainIntervalMillis: 500,
		MaxJobsPerWake:      8,
	}
}

func (c *EngineConfig) applyDefaults() {
	d := DefaultEngineConfig()
	if c.BlockSizePow2 == 0 {
		c.BlockSizePow2 = d.BlockSizePow2
	}
	if c.HaloPadding == 0 {
		c.HaloPadding = d.HaloPadding
	}
	if c.WorkerCount == 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.DrainIntervalMillis == 0 {
		c.DrainIntervalMillis = d.DrainIntervalMillis
	}
	if c.MaxJobsPerWake == 0 {
		c.MaxJobsPerWake = d.MaxJobsPerWake
	}
}

// Validate checks the invariants the rest of the engine assumes hold
// for an EngineConfig (section 3's p in {3,4,5}, positive worker/halo
// counts).
func (c EngineConfig) Validate() error {
	if c.BlockSizePow2 < 3 || c.BlockSizePow2 > 5 {
		return NewError(KindInvalidPosition, "block_size_pow2 %d out of range [3,5]", c.BlockSizePow2)
	}
	if c.HaloPadding < 1 {
		return NewError(KindInvalidPosition, "halo_padding must be >= 1, got %d", c.HaloPadding)
	}
	if c.WorkerCount < 1 {
		return NewError(KindInvalidPosition, "worker_count must be >= 1, got %d", c.WorkerCount)
	}
	return nil
}

// BlockSize returns S = 1 << BlockSizePow2.
func (c EngineConfig) BlockSize() int {
	return 1 << c.BlockSizePow2
}

// LoadConfig reads a YAML document from path into an EngineConfig,
// applying defaults to any field left unset in the document.
func LoadConfig(path string) (EngineConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("voxlit: read config %s: %w", path, err)
	}
	var cfg EngineConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("voxlit: parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return EngineConfig{}, err
	}
	return cfg, nil
}
