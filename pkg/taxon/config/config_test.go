package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cognitext/taxon/pkg/taxon/internalerr"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taxon.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "model_path: /tmp/model.json.gz\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Language != "en" || cfg.MaxGram != 2 || cfg.WeightExponent != 1 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.ModelPath != "/tmp/model.json.gz" {
		t.Errorf("ModelPath = %q", cfg.ModelPath)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
language: es
max_gram: 3
byte_budget: 1048576
weight_exponent: 2
cache_size: 64
create_if_missing: true
exclusions: [promo, spam]
weights:
  prior: 0.5
  cross_entropy: 1
  pearson: 1
  weighted_tfidf: 1
  missing_penalty: 0
  cosine: 1
  jaccard: 1
  gravity: 2
groups:
  science: [quantum, physics]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Language != "es" || cfg.MaxGram != 3 || cfg.ByteBudget != 1<<20 {
		t.Errorf("fields not parsed: %+v", cfg)
	}
	if cfg.Weights == nil || cfg.Weights.Prior != 0.5 || cfg.Weights.Gravity != 2 {
		t.Errorf("weights not parsed: %+v", cfg.Weights)
	}
	if cfg.Weights.MissingPenalty != 0 {
		t.Errorf("explicit zero weight not honored: %+v", cfg.Weights)
	}
	if len(cfg.Groups["science"]) != 2 {
		t.Errorf("groups not parsed: %v", cfg.Groups)
	}
	if len(cfg.Exclusions) != 2 {
		t.Errorf("exclusions not parsed: %v", cfg.Exclusions)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "language: [unterminated\n")

	_, err := Load(path)
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestValidateRejectsBadRanges(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero max_gram", Config{MaxGram: 0, WeightExponent: 1}},
		{"negative byte_budget", Config{MaxGram: 2, ByteBudget: -1, WeightExponent: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); !errors.Is(err, internalerr.ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Error("missing file must fail")
	}
	if errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Error("a missing file is an IO error, not an invalid config")
	}
}
