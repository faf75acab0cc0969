// Package config provides configuration loading and management for intcal.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"intcal/pkg/attenuation"
	"intcal/pkg/calibration"
	"intcal/pkg/tissue"
	"intcal/pkg/transform"
	"intcal/pkg/volume"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumWorkers specifies how many goroutines to use for parallel processing
		NumWorkers int `yaml:"numWorkers"`

		// Interpolation is the attenuation table interpolation method:
		// linear, fritsch-butland or akima
		Interpolation string `yaml:"interpolation"`

		// WaterDensity is the density of water in g/cm³
		WaterDensity float64 `yaml:"waterDensity"`
	} `yaml:"processing"`

	// Labels are the mask values of the reference tissues
	Labels tissue.Labels `yaml:"labels"`

	// Output parameters
	Output struct {
		// K2HPO4Suffix is appended to the image name for the K2HPO4-equivalent volume
		K2HPO4Suffix string `yaml:"k2hpo4Suffix"`

		// ArchimedeanSuffix is appended to the image name for the Archimedean density volume
		ArchimedeanSuffix string `yaml:"archimedeanSuffix"`

		// ReportSuffix is appended to the image name for the parameter report
		ReportSuffix string `yaml:"reportSuffix"`

		// Codec compresses the written volumes: none, zstd, s2 or lz4
		Codec string `yaml:"codec"`

		// SavePreviews writes JPEG slices of the calibrated volumes
		SavePreviews bool `yaml:"savePreviews"`

		// PreviewStep is the slice spacing of the previews
		PreviewStep int `yaml:"previewStep"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumWorkers = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.Interpolation = string(attenuation.Linear)
	cfg.Processing.WaterDensity = 1.0

	cfg.Labels = tissue.DefaultLabels()

	// Set default output parameters
	cfg.Output.K2HPO4Suffix = transform.K2HPO4Equivalent.Suffix()
	cfg.Output.ArchimedeanSuffix = transform.Archimedean.Suffix()
	cfg.Output.ReportSuffix = "_IntCalibParameters.txt"
	cfg.Output.Codec = string(volume.Zstd)
	cfg.Output.SavePreviews = false
	cfg.Output.PreviewStep = 10
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
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

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
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

// Validate checks that every value can be used by the pipeline
func (c *Config) Validate() error {
	if c.Processing.NumWorkers < 0 {
		return fmt.Errorf("numWorkers must not be negative, got %d", c.Processing.NumWorkers)
	}
	if _, err := attenuation.ParseMethod(c.Processing.Interpolation); err != nil {
		return err
	}
	if !(c.Processing.WaterDensity > 0) {
		return fmt.Errorf("waterDensity must be positive, got %g", c.Processing.WaterDensity)
	}
	if err := c.Labels.Validate(); err != nil {
		return err
	}
	if _, err := volume.ParseCodec(c.Output.Codec); err != nil {
		return err
	}

	suffixes := map[string]string{}
	for name, suffix := range map[string]string{
		"k2hpo4Suffix":      c.Output.K2HPO4Suffix,
		"archimedeanSuffix": c.Output.ArchimedeanSuffix,
		"reportSuffix":      c.Output.ReportSuffix,
	} {
		if suffix == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
		if other, ok := suffixes[suffix]; ok {
			return fmt.Errorf("%s and %s are both %q", other, name, suffix)
		}
		suffixes[suffix] = name
	}

	if c.Output.SavePreviews && c.Output.PreviewStep <= 0 {
		return fmt.Errorf("previewStep must be positive, got %d", c.Output.PreviewStep)
	}
	return nil
}

// Calibration returns the solver settings
func (c *Config) Calibration() (calibration.Config, error) {
	method, err := attenuation.ParseMethod(c.Processing.Interpolation)
	if err != nil {
		return calibration.Config{}, err
	}
	return calibration.Config{
		Method:       method,
		Workers:      c.Processing.NumWorkers,
		WaterDensity: c.Processing.WaterDensity,
	}, nil
}

// Suffix returns the file name suffix of a calibrated volume
func (c *Config) Suffix(s transform.Scale) string {
	switch s {
	case transform.K2HPO4Equivalent:
		return c.Output.K2HPO4Suffix
	case transform.Archimedean:
		return c.Output.ArchimedeanSuffix
	}
	return s.Suffix()
}
