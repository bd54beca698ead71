// Package config loads the optional regionlens configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/meintsot/regionlens/pkg/chunk"
	"github.com/meintsot/regionlens/pkg/codec"
	"github.com/meintsot/regionlens/pkg/common/log"
)

// ErrInvalidConfig marks configuration values that cannot be used.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the tool configuration. Every field has a working default;
// a config file only needs the fields it overrides, and flags override
// file values.
type Config struct {
	// Strict turns lenient-mode decode warnings into failures.
	Strict bool `yaml:"strict"`

	// VoxelOrder and LevelOrder name the packed nibble conventions for
	// voxel index arrays and level arrays: "even-high" or "even-low".
	VoxelOrder string `yaml:"voxel_order"`
	LevelOrder string `yaml:"level_order"`

	// MaxExemplars caps the per-section voxel exemplars a diff report
	// keeps. Zero keeps counts only.
	MaxExemplars int `yaml:"max_exemplars"`

	// IndexPath is the default sqlite index database path.
	IndexPath string `yaml:"index_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	palette := codec.DefaultPaletteOptions()
	return &Config{
		Strict:       false,
		VoxelOrder:   palette.VoxelOrder.String(),
		LevelOrder:   palette.LevelOrder.String(),
		MaxExemplars: chunk.DefaultDiffOptions().MaxExemplars,
		IndexPath:    "regionlens.db",
		LogLevel:     "info",
	}
}

// Load reads a YAML config file over the defaults. Unknown keys are
// rejected. An empty file yields the defaults unchanged.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := codec.ParseNibbleOrder(c.VoxelOrder); err != nil {
		return fmt.Errorf("%w: voxel_order: %v", ErrInvalidConfig, err)
	}
	if _, err := codec.ParseNibbleOrder(c.LevelOrder); err != nil {
		return fmt.Errorf("%w: level_order: %v", ErrInvalidConfig, err)
	}
	if c.MaxExemplars < 0 {
		return fmt.Errorf("%w: max_exemplars must not be negative", ErrInvalidConfig)
	}
	if c.IndexPath == "" {
		return fmt.Errorf("%w: index_path must not be empty", ErrInvalidConfig)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ChunkOptions converts the configured conventions to decode options.
func (c *Config) ChunkOptions() (chunk.Options, error) {
	voxel, err := codec.ParseNibbleOrder(c.VoxelOrder)
	if err != nil {
		return chunk.Options{}, fmt.Errorf("%w: voxel_order: %v", ErrInvalidConfig, err)
	}
	level, err := codec.ParseNibbleOrder(c.LevelOrder)
	if err != nil {
		return chunk.Options{}, fmt.Errorf("%w: level_order: %v", ErrInvalidConfig, err)
	}
	return chunk.Options{VoxelOrder: voxel, LevelOrder: level, Strict: c.Strict}, nil
}

// DiffOptions converts the configured exemplar cap to diff options.
func (c *Config) DiffOptions() chunk.DiffOptions {
	return chunk.DiffOptions{MaxExemplars: c.MaxExemplars}
}

// Level parses the configured log level.
func (c *Config) Level() (log.Level, error) {
	return log.ParseLevel(c.LogLevel)
}
