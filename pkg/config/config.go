// Package config provides configuration loading and management for hyperspectral.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"hyperspectral/pkg/models"
	"hyperspectral/pkg/pca"
	"hyperspectral/pkg/sam"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"processing"`

	// PCA parameters
	PCA struct {
		// CoverageFraction is the explained-variance fraction the retained
		// components must reach, in (0, 1]
		CoverageFraction float64 `yaml:"coverageFraction"`

		// Method selects the solver: "svd" or "eigen"
		Method string `yaml:"method"`

		// ImagTolerance bounds the imaginary residue accepted from the eigen solver
		ImagTolerance float64 `yaml:"imagTolerance"`
	} `yaml:"pca"`

	// Clustering parameters
	Clustering struct {
		// Clusters is the number of k-means clusters
		Clusters int `yaml:"clusters"`

		// MaxIterations caps the number of k-means passes
		MaxIterations int `yaml:"maxIterations"`

		// Seed drives the choice of initial centroids
		Seed int64 `yaml:"seed"`
	} `yaml:"clustering"`

	// Angle map parameters
	AngleMap struct {
		// Border is "undefined" or "replicate"
		Border string `yaml:"border"`
	} `yaml:"angleMap"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.Verbose = false

	// Set default PCA parameters
	cfg.PCA.CoverageFraction = pca.DefaultCoverage
	cfg.PCA.Method = pca.SVD.String()
	cfg.PCA.ImagTolerance = pca.DefaultImagTolerance

	// Set default clustering parameters
	cfg.Clustering.Clusters = 5
	cfg.Clustering.MaxIterations = 100
	cfg.Clustering.Seed = 0

	cfg.AngleMap.Border = sam.BorderUndefined.String()

	return cfg
}

// Validate checks that every value is usable. The returned error wraps
// models.ErrInvalidParams.
func (c *Config) Validate() error {
	if c.Processing.NumCores < 0 {
		return fmt.Errorf("%w: numCores must not be negative, got %d", models.ErrInvalidParams, c.Processing.NumCores)
	}
	if c.PCA.CoverageFraction <= 0 || c.PCA.CoverageFraction > 1 {
		return fmt.Errorf("%w: coverageFraction must be in (0, 1], got %g", models.ErrInvalidParams, c.PCA.CoverageFraction)
	}
	if _, err := pca.ParseMethod(c.PCA.Method); err != nil {
		return err
	}
	if c.PCA.ImagTolerance < 0 {
		return fmt.Errorf("%w: imagTolerance must not be negative, got %g", models.ErrInvalidParams, c.PCA.ImagTolerance)
	}
	if c.Clustering.Clusters < 1 {
		return fmt.Errorf("%w: clusters must be at least 1, got %d", models.ErrInvalidParams, c.Clustering.Clusters)
	}
	if c.Clustering.MaxIterations < 1 {
		return fmt.Errorf("%w: maxIterations must be at least 1, got %d", models.ErrInvalidParams, c.Clustering.MaxIterations)
	}
	if _, err := sam.ParseBorder(c.AngleMap.Border); err != nil {
		return err
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Keys missing from the file keep their defaults
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
	// Create directory if it doesn't exist
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
