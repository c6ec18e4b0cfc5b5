// Package config provides configuration loading and management for segcaliper.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"segcaliper/pkg/kernel"
	"segcaliper/pkg/segmentation"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Brush parameters of the smart brush tool
	Brush struct {
		// Radius is the brush radius in voxels
		Radius int `yaml:"radius"`

		// Sensitivity scales the accepted intensity band around the seed
		Sensitivity float64 `yaml:"sensitivity"`
	} `yaml:"brush"`

	// Active-contour coefficients
	Refine struct {
		MaxIterations   int     `yaml:"maxIterations"`
		Tension         float64 `yaml:"tension"`
		FidelityInside  float64 `yaml:"fidelityInside"`
		FidelityOutside float64 `yaml:"fidelityOutside"`
		TimeStep        float64 `yaml:"timeStep"`
	} `yaml:"refine"`

	// Slice propagation parameters
	Propagation struct {
		// Enabled runs propagation after every brush stroke
		Enabled bool `yaml:"enabled"`

		// MinArea is the voxel count below which propagation stops
		MinArea int `yaml:"minArea"`
	} `yaml:"propagation"`

	// Diameter measurement parameters
	Measurement struct {
		// Delta is the sampling step along the diameter in voxels
		Delta float64 `yaml:"delta"`

		// AutoDiameter measures every slice and keeps the longest diameter
		AutoDiameter bool `yaml:"autoDiameter"`
	} `yaml:"measurement"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// LogFile, when set, receives log output with rotation
		LogFile string `yaml:"logFile"`

		// LogMaxSize is the size in megabytes before a log file is rotated
		LogMaxSize int `yaml:"logMaxSize"`

		// LogMaxAge is the number of days rotated logs are kept
		LogMaxAge int `yaml:"logMaxAge"`

		// OverlayDir is where modified slices are rendered as PNG
		OverlayDir string `yaml:"overlayDir"`

		// OverlayScale is the nearest-neighbour upscale factor of overlays
		OverlayScale int `yaml:"overlayScale"`
	} `yaml:"output"`

	// Segments maps segment indices to display names
	Segments map[int32]string `yaml:"segments"`

	// LockedSegments lists segments that operations never overwrite
	LockedSegments []int32 `yaml:"lockedSegments"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Brush.Radius = 10
	cfg.Brush.Sensitivity = 1.0

	params := kernel.DefaultRefineParams()
	cfg.Refine.MaxIterations = params.MaxIterations
	cfg.Refine.Tension = params.Tension
	cfg.Refine.FidelityInside = params.FidelityInside
	cfg.Refine.FidelityOutside = params.FidelityOutside
	cfg.Refine.TimeStep = params.TimeStep

	cfg.Propagation.Enabled = true
	cfg.Propagation.MinArea = 20

	cfg.Measurement.Delta = 0.1
	cfg.Measurement.AutoDiameter = true

	cfg.Output.Verbose = true
	cfg.Output.LogMaxSize = 10
	cfg.Output.LogMaxAge = 7
	cfg.Output.OverlayDir = "overlays"
	cfg.Output.OverlayScale = 4

	cfg.Segments = map[int32]string{1: "Segment 1"}

	return cfg
}

// Validate checks value ranges
func (c *Config) Validate() error {
	var errs []error
	if c.Brush.Radius < 1 {
		errs = append(errs, fmt.Errorf("brush.radius must be at least 1, got %d", c.Brush.Radius))
	}
	if c.Brush.Sensitivity < 0 {
		errs = append(errs, fmt.Errorf("brush.sensitivity must not be negative, got %g", c.Brush.Sensitivity))
	}
	if c.Refine.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("refine.maxIterations must be at least 1, got %d", c.Refine.MaxIterations))
	}
	if c.Refine.TimeStep <= 0 {
		errs = append(errs, fmt.Errorf("refine.timeStep must be positive, got %g", c.Refine.TimeStep))
	}
	if c.Propagation.MinArea < 0 {
		errs = append(errs, fmt.Errorf("propagation.minArea must not be negative, got %d", c.Propagation.MinArea))
	}
	if c.Measurement.Delta <= 0 {
		errs = append(errs, fmt.Errorf("measurement.delta must be positive, got %g", c.Measurement.Delta))
	}
	if c.Output.OverlayScale < 1 {
		errs = append(errs, fmt.Errorf("output.overlayScale must be at least 1, got %d", c.Output.OverlayScale))
	}
	for idx := range c.Segments {
		if idx <= 0 {
			errs = append(errs, fmt.Errorf("segment index %d must be positive", idx))
		}
	}
	return errors.Join(errs...)
}

// EngineOptions converts the configuration into segmentation engine options
func (c *Config) EngineOptions() segmentation.Options {
	opts := segmentation.DefaultOptions()
	opts.Refine = kernel.RefineParams{
		MaxIterations:   c.Refine.MaxIterations,
		Tension:         c.Refine.Tension,
		FidelityInside:  c.Refine.FidelityInside,
		FidelityOutside: c.Refine.FidelityOutside,
		TimeStep:        c.Refine.TimeStep,
	}
	opts.MinArea = c.Propagation.MinArea
	opts.Delta = c.Measurement.Delta
	opts.Locked = append([]int32(nil), c.LockedSegments...)
	opts.Segments = make(map[int32]string, len(c.Segments))
	for k, v := range c.Segments {
		opts.Segments[k] = v
	}
	return opts
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
