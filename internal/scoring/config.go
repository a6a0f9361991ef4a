// SPDX-License-Identifier: MIT

// Package scoring folds the analysis pipeline results into a weighted
// liveness score and a verdict. The weight and threshold set is server
// private; clients only ever see the aggregate and per-metric scores.
package scoring

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Weights gives each evidence source its share of the aggregate. Tremor is a
// single weighted metric fed by the stronger of the cursor and accelerometer
// sub-scores.
type Weights struct {
	TransferFn      float64 `yaml:"transferFn"`
	Tremor          float64 `yaml:"tremor"`
	OneOverF        float64 `yaml:"oneOverF"`
	SignalDepNoise  float64 `yaml:"signalDepNoise"`
	CrossAxis       float64 `yaml:"crossAxis"`
	PulseResponse   float64 `yaml:"pulseResponse"`
	CogInterference float64 `yaml:"cogInterference"`
	MinJerk         float64 `yaml:"minJerk"`
}

// Thresholds are the verdict cut points on the aggregate score.
type Thresholds struct {
	Biological    float64 `yaml:"biological"`
	Uncertain     float64 `yaml:"uncertain"`
	EmbedVerified float64 `yaml:"embedVerified"`
}

// Config is the full scoring parameter set.
type Config struct {
	Weights    Weights    `yaml:"weights"`
	Thresholds Thresholds `yaml:"thresholds"`
}

// Default returns the compiled-in parameter set.
func Default() Config {
	return Config{
		Weights: Weights{
			TransferFn:      3.0,
			Tremor:          2.5,
			OneOverF:        2.0,
			SignalDepNoise:  2.5,
			CrossAxis:       2.0,
			PulseResponse:   3.0,
			CogInterference: 2.0,
			MinJerk:         1.5,
		},
		Thresholds: Thresholds{
			Biological:    0.65,
			Uncertain:     0.35,
			EmbedVerified: 0.60,
		},
	}
}

// Load reads a YAML override on top of the defaults. An empty path keeps the
// defaults; fields absent from the file keep their default values. The result
// is immutable for the process lifetime.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read scoring config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse scoring config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Thresholds.Biological <= c.Thresholds.Uncertain {
		return fmt.Errorf("scoring config: biological threshold %.2f must exceed uncertain %.2f",
			c.Thresholds.Biological, c.Thresholds.Uncertain)
	}
	for name, w := range map[string]float64{
		"transferFn":      c.Weights.TransferFn,
		"tremor":          c.Weights.Tremor,
		"oneOverF":        c.Weights.OneOverF,
		"signalDepNoise":  c.Weights.SignalDepNoise,
		"crossAxis":       c.Weights.CrossAxis,
		"pulseResponse":   c.Weights.PulseResponse,
		"cogInterference": c.Weights.CogInterference,
		"minJerk":         c.Weights.MinJerk,
	} {
		if w < 0 {
			return fmt.Errorf("scoring config: negative weight for %s", name)
		}
	}
	return nil
}

// Marshal renders the config as YAML, fronted by a short header comment.
func (c Config) Marshal() ([]byte, error) {
	body, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal scoring config: %w", err)
	}
	header := "# clnp scoring parameters. Server private: never serve this file.\n"
	return append([]byte(header), body...), nil
}
