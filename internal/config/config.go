package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/skypro1111/energy-vad/internal/vad"
)

// Config represents the complete detector configuration
type Config struct {
	Framing    FramingConfig    `yaml:"framing"`
	GMM        GMMConfig        `yaml:"gmm"`
	Decision   DecisionConfig   `yaml:"decision"`
	Morphology MorphologyConfig `yaml:"morphology"`
	Augment    AugmentConfig    `yaml:"augment"`
	Batch      BatchConfig      `yaml:"batch"`
	HTTP       HTTPConfig       `yaml:"http"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// FramingConfig contains frame slicing parameters
type FramingConfig struct {
	Window int `yaml:"window"` // samples
	Shift  int `yaml:"shift"`  // samples
}

// GMMConfig contains mixture model training parameters
type GMMConfig struct {
	Iterations int             `yaml:"iterations"`
	Tolerance  float64         `yaml:"tolerance"` // 0 disables early stopping
	MinStdDev  float64         `yaml:"min_stddev"`
	MinCount   float64         `yaml:"min_count"`
	Components []vad.Component `yaml:"components"` // initial mixture
}

// DecisionConfig contains the posterior threshold
type DecisionConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// MorphologyConfig contains mask cleanup parameters
type MorphologyConfig struct {
	Size int `yaml:"size"` // structuring element length in samples
}

// AugmentConfig contains defaults for the augment command
type AugmentConfig struct {
	NoiseSigma float64 `yaml:"noise_sigma"`
	Seed       uint64  `yaml:"seed"`
}

// BatchConfig contains defaults for the batch command
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port         int    `yaml:"port"`
	Address      string `yaml:"address"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	d := vad.DefaultConfig()
	return Config{
		Framing: FramingConfig{
			Window: d.Window,
			Shift:  d.Shift,
		},
		GMM: GMMConfig{
			Iterations: d.Train.Iterations,
			Tolerance:  d.Train.Tolerance,
			MinStdDev:  d.Train.MinStdDev,
			MinCount:   d.Train.MinCount,
			Components: d.Train.Init.Clone().Components,
		},
		Decision:   DecisionConfig{Threshold: d.Threshold},
		Morphology: MorphologyConfig{Size: d.MorphSize},
		Augment:    AugmentConfig{NoiseSigma: 0.01, Seed: 1},
		Batch:      BatchConfig{MaxConcurrent: 4},
		HTTP: HTTPConfig{
			Port:         8080,
			Address:      "0.0.0.0",
			MaxBodyBytes: 64 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads and parses the configuration file. Keys missing from the file
// keep their default values.
func Load(path string) (*Config, error) {
	config := Default()
	if path == "" {
		return &config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Framing.Validate(); err != nil {
		return fmt.Errorf("framing config: %w", err)
	}

	if err := c.GMM.Validate(); err != nil {
		return fmt.Errorf("gmm config: %w", err)
	}

	if err := c.Decision.Validate(); err != nil {
		return fmt.Errorf("decision config: %w", err)
	}

	if err := c.Morphology.Validate(); err != nil {
		return fmt.Errorf("morphology config: %w", err)
	}

	if err := c.Augment.Validate(); err != nil {
		return fmt.Errorf("augment config: %w", err)
	}

	if err := c.Batch.Validate(); err != nil {
		return fmt.Errorf("batch config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates framing configuration
func (f *FramingConfig) Validate() error {
	if f.Window < 1 {
		return fmt.Errorf("window must be at least 1 sample, got %d", f.Window)
	}

	if f.Shift < 1 || f.Shift > f.Window {
		return fmt.Errorf("shift must be between 1 and window (%d), got %d", f.Window, f.Shift)
	}

	return nil
}

// Validate validates mixture configuration
func (g *GMMConfig) Validate() error {
	if g.Iterations < 1 {
		return fmt.Errorf("iterations must be at least 1, got %d", g.Iterations)
	}

	if g.Tolerance < 0 {
		return fmt.Errorf("tolerance cannot be negative, got %f", g.Tolerance)
	}

	if g.MinStdDev < 0 {
		return fmt.Errorf("min_stddev cannot be negative, got %f", g.MinStdDev)
	}

	if g.MinCount < 0 {
		return fmt.Errorf("min_count cannot be negative, got %f", g.MinCount)
	}

	if len(g.Components) < 2 {
		return fmt.Errorf("components must list at least 2 gaussians, got %d", len(g.Components))
	}

	return vad.Model{Components: g.Components}.Validate()
}

// Validate validates decision configuration
func (d *DecisionConfig) Validate() error {
	if d.Threshold < 0 || d.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", d.Threshold)
	}

	return nil
}

// Validate validates morphology configuration
func (m *MorphologyConfig) Validate() error {
	if m.Size < 0 {
		return fmt.Errorf("size cannot be negative, got %d", m.Size)
	}

	return nil
}

// Validate validates augmentation configuration
func (a *AugmentConfig) Validate() error {
	if a.NoiseSigma < 0 {
		return fmt.Errorf("noise_sigma cannot be negative, got %f", a.NoiseSigma)
	}

	return nil
}

// Validate validates batch configuration
func (b *BatchConfig) Validate() error {
	if b.MaxConcurrent < 1 || b.MaxConcurrent > 256 {
		return fmt.Errorf("max_concurrent must be between 1 and 256, got %d", b.MaxConcurrent)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("http address cannot be empty")
	}

	if h.MaxBodyBytes < 1024 {
		return fmt.Errorf("max_body_bytes must be at least 1024, got %d", h.MaxBodyBytes)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Output may also be a file path

	return nil
}

// VADConfig converts the configuration into detector parameters
func (c *Config) VADConfig() vad.Config {
	train := vad.DefaultTrainOptions()
	train.Iterations = c.GMM.Iterations
	train.Tolerance = c.GMM.Tolerance
	train.MinStdDev = c.GMM.MinStdDev
	train.MinCount = c.GMM.MinCount
	train.Init = vad.Model{Components: c.GMM.Components}.Clone()

	return vad.Config{
		Window:    c.Framing.Window,
		Shift:     c.Framing.Shift,
		Threshold: c.Decision.Threshold,
		MorphSize: c.Morphology.Size,
		Train:     train,
	}
}
