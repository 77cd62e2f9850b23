// Package config loads the indexer configuration from a YAML file, with
// sane defaults for everything so a bare invocation works out of the box.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backend names accepted in the config file.
const (
	StorageDisk   = "disk"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config holds all tunables of the background indexer.
type Config struct {
	// Workers is the indexing worker pool size.
	Workers int `yaml:"workers"`

	// RebuildPeriod batches published-snapshot rebuilds. Zero republishes
	// after every file.
	RebuildPeriod time.Duration `yaml:"rebuild_period"`

	// Storage selects the shard persistence backend: disk, sqlite or
	// memory.
	Storage string `yaml:"storage"`

	// Debounce is how long the file watcher coalesces change bursts.
	Debounce time.Duration `yaml:"debounce"`

	// Extensions lists the file suffixes indexed when no compilation
	// database is found.
	Extensions []string `yaml:"extensions"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Workers:       runtime.NumCPU(),
		RebuildPeriod: 5 * time.Second,
		Storage:       StorageDisk,
		Debounce:      500 * time.Millisecond,
		Extensions:    []string{".c", ".h", ".cc", ".cpp", ".hpp"},
	}
}

// Load reads a YAML config file, applying defaults for absent fields. A
// missing file is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the indexer cannot run with.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}
	if c.RebuildPeriod < 0 {
		return fmt.Errorf("rebuild_period must be non-negative, got %s", c.RebuildPeriod)
	}
	switch c.Storage {
	case StorageDisk, StorageSQLite, StorageMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage)
	}
	return nil
}
