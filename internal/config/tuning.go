package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/radiolocate/robust"
)

// DefaultConfigPath is the path to the canonical estimator defaults file.
// This is the single source of truth for CLI tuning values; the library
// itself carries compiled-in defaults and never reads it.
const DefaultConfigPath = "config/estimator.defaults.json"

// TuningConfig holds the tunable estimator parameters the CLI tools
// accept. Fields omitted from the JSON file retain their defaults, so
// partial configs are safe.
type TuningConfig struct {
	Method        *string  `json:"method,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`
	MaxIterations *int     `json:"max_iterations,omitempty"`
	ProgressDelta *float64 `json:"progress_delta,omitempty"`

	// Residual thresholds in the modality's natural unit.
	RangingThreshold *float64 `json:"ranging_threshold,omitempty"`
	RSSIThreshold    *float64 `json:"rssi_threshold,omitempty"`
	StopThreshold    *float64 `json:"stop_threshold,omitempty"`

	DisableRefinement *bool `json:"disable_refinement,omitempty"`
	KeepCovariance    *bool `json:"keep_covariance,omitempty"`

	InitialTransmittedPowerdBm *float64 `json:"initial_transmitted_power_dbm,omitempty"`
	InitialPathLossExponent    *float64 `json:"initial_path_loss_exponent,omitempty"`

	RandomSeed *int64 `json:"random_seed,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must
// have a .json extension and stay under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configured values are usable.
func (c *TuningConfig) Validate() error {
	if c.Method != nil {
		if _, err := robust.ParseMethod(*c.Method); err != nil {
			return err
		}
	}
	if c.Confidence != nil {
		if *c.Confidence <= 0 || *c.Confidence >= 1 {
			return fmt.Errorf("confidence must be in (0,1), got %f", *c.Confidence)
		}
	}
	if c.MaxIterations != nil && *c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", *c.MaxIterations)
	}
	if c.RangingThreshold != nil && *c.RangingThreshold <= 0 {
		return fmt.Errorf("ranging_threshold must be positive, got %f", *c.RangingThreshold)
	}
	if c.RSSIThreshold != nil && *c.RSSIThreshold <= 0 {
		return fmt.Errorf("rssi_threshold must be positive, got %f", *c.RSSIThreshold)
	}
	if c.InitialPathLossExponent != nil && *c.InitialPathLossExponent <= 0 {
		return fmt.Errorf("initial_path_loss_exponent must be positive, got %f", *c.InitialPathLossExponent)
	}
	return nil
}

// GetMethod parses the configured method, defaulting when unset.
func (c *TuningConfig) GetMethod() robust.Method {
	if c.Method == nil {
		return robust.DefaultMethod
	}
	m, err := robust.ParseMethod(*c.Method)
	if err != nil {
		return robust.DefaultMethod
	}
	return m
}

func (c *TuningConfig) GetConfidence() float64 {
	if c.Confidence == nil {
		return robust.DefaultConfidence
	}
	return *c.Confidence
}

func (c *TuningConfig) GetMaxIterations() int {
	if c.MaxIterations == nil {
		return robust.DefaultMaxIterations
	}
	return *c.MaxIterations
}

func (c *TuningConfig) GetProgressDelta() float64 {
	if c.ProgressDelta == nil {
		return robust.DefaultProgressDelta
	}
	return *c.ProgressDelta
}

func (c *TuningConfig) GetRangingThreshold() float64 {
	if c.RangingThreshold == nil {
		return robust.DefaultRangingThreshold
	}
	return *c.RangingThreshold
}

func (c *TuningConfig) GetRSSIThreshold() float64 {
	if c.RSSIThreshold == nil {
		return robust.DefaultRSSIThreshold
	}
	return *c.RSSIThreshold
}

func (c *TuningConfig) GetStopThreshold() float64 {
	if c.StopThreshold == nil {
		return robust.DefaultStopThreshold
	}
	return *c.StopThreshold
}

func (c *TuningConfig) GetDisableRefinement() bool {
	return c.DisableRefinement != nil && *c.DisableRefinement
}

func (c *TuningConfig) GetKeepCovariance() bool {
	// Covariance retention is on by default for the CLI: recording runs
	// without uncertainty makes them hard to compare later.
	return c.KeepCovariance == nil || *c.KeepCovariance
}

func (c *TuningConfig) GetInitialTransmittedPowerdBm() float64 {
	if c.InitialTransmittedPowerdBm == nil {
		return 0
	}
	return *c.InitialTransmittedPowerdBm
}

func (c *TuningConfig) GetInitialPathLossExponent() float64 {
	if c.InitialPathLossExponent == nil {
		return 2.0
	}
	return *c.InitialPathLossExponent
}

func (c *TuningConfig) GetRandomSeed() int64 {
	if c.RandomSeed == nil {
		return 0
	}
	return *c.RandomSeed
}
