// Package config loads classifier configuration from YAML files.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognitext/taxon/pkg/taxon/internalerr"
	"github.com/cognitext/taxon/pkg/taxon/model"
)

// Config is the full classifier configuration.
type Config struct {
	// Language is the ISO 639-1 code selecting the stemmer (default "en").
	Language string `yaml:"language"`
	// MaxGram is the maximum term n-gram length (default 2).
	MaxGram int `yaml:"max_gram"`
	// ByteBudget bounds the serialized index size; zero disables eviction.
	ByteBudget int64 `yaml:"byte_budget"`
	// WeightExponent scales multi-text query weights (default 1).
	WeightExponent float64 `yaml:"weight_exponent"`
	// ModelPath is where the file store keeps the model.
	ModelPath string `yaml:"model_path"`
	// RemoteURL optionally points at a pre-trained model to import when no
	// local model exists.
	RemoteURL string `yaml:"remote_url"`
	// CreateIfMissing lets the classifier start from an empty index when no
	// model can be loaded.
	CreateIfMissing bool `yaml:"create_if_missing"`
	// CacheSize bounds the prediction result cache.
	CacheSize int `yaml:"cache_size"`

	// Exclusions lists terms (surface forms allowed) that never become
	// terms or category labels.
	Exclusions []string `yaml:"exclusions"`
	// Weights overrides the ensemble algorithm weights.
	Weights *model.EnsembleWeights `yaml:"weights"`
	// Groups declares gravitational groups: name → member terms.
	Groups map[string][]string `yaml:"groups"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Language:       "en",
		MaxGram:        2,
		WeightExponent: 1,
	}
}

// Load reads a YAML configuration file, applying defaults for absent fields.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", internalerr.ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.Language == "" {
		c.Language = "en"
	}
	if c.MaxGram < 1 {
		return fmt.Errorf("%w: max_gram must be >= 1, got %d", internalerr.ErrInvalidConfig, c.MaxGram)
	}
	if c.ByteBudget < 0 {
		return fmt.Errorf("%w: byte_budget must be >= 0", internalerr.ErrInvalidConfig)
	}
	if c.WeightExponent == 0 {
		c.WeightExponent = 1
	}
	return nil
}
