package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.Confidence != 0.9 {
		t.Errorf("expected default confidence 0.9, got %v", cfg.Confidence)
	}
	if cfg.Threshold != 0.7 {
		t.Errorf("expected default threshold 0.7, got %v", cfg.Threshold)
	}
	if !cfg.RemoveIDDuplicates {
		t.Error("expected identifier pass to be enabled by default")
	}
	if cfg.IDField != "patient_id" {
		t.Errorf("expected default id field patient_id, got %s", cfg.IDField)
	}
	if diff := cmp.Diff([]string{"full_name", "full_address", "born_age"}, cfg.GroupingFields); diff != "" {
		t.Errorf("grouping fields mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DEDUP_GROUPING_FIELDS", "state, surname ,")
	t.Setenv("DEDUP_THRESHOLD", "0.5")
	t.Setenv("DEDUP_REMOVE_ID_DUPLICATES", "false")
	t.Setenv("DEDUP_METRIC", "gestalt")
	t.Setenv("DEDUP_WORKERS", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"state", "surname"}, cfg.GroupingFields); diff != "" {
		t.Errorf("grouping fields mismatch (-want +got):\n%s", diff)
	}
	if cfg.Threshold != 0.5 {
		t.Errorf("expected threshold 0.5, got %v", cfg.Threshold)
	}
	if cfg.RemoveIDDuplicates {
		t.Error("expected identifier pass to be disabled")
	}

	dc, err := cfg.DedupConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dc.Workers != 4 || dc.DuplicateRatioThreshold != 0.5 || dc.Metric == nil {
		t.Errorf("unexpected engine config %+v", dc)
	}
	if dc.Metric.Similarity("abcd", "bcde") != 0.75 {
		t.Error("expected gestalt metric to be selected")
	}
}

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedup.yaml")
	content := "DEDUP_GROUPING_FIELDS:\n  - localisation\n  - full_name\nDEDUP_CONFIDENCE: 0.85\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"localisation", "full_name"}, cfg.GroupingFields); diff != "" {
		t.Errorf("grouping fields mismatch (-want +got):\n%s", diff)
	}
	if cfg.Confidence != 0.85 {
		t.Errorf("expected confidence 0.85, got %v", cfg.Confidence)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Env:             "development",
			Confidence:      0.9,
			Threshold:       0.7,
			ThresholdFields: []string{"surname"},
			Workers:         1,
			Metric:          "jaro-winkler",
			DBMaxConns:      10,
			DBMinConns:      1,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"confidence out of range", func(c *Config) { c.Confidence = 1.2 }},
		{"threshold out of range", func(c *Config) { c.Threshold = -1 }},
		{"no threshold fields", func(c *Config) { c.ThresholdFields = nil }},
		{"no workers", func(c *Config) { c.Workers = 0 }},
		{"unknown metric", func(c *Config) { c.Metric = "cosine" }},
		{"production without secret", func(c *Config) { c.Env = "production" }},
		{"min conns above max", func(c *Config) { c.DBMinConns = 20 }},
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfig_IsDev(t *testing.T) {
	c := &Config{Env: "development"}
	if !c.IsDev() {
		t.Error("expected IsDev() to return true for development")
	}

	c.Env = "production"
	if c.IsDev() {
		t.Error("expected IsDev() to return false for production")
	}
	if !c.IsProduction() {
		t.Error("expected IsProduction() to return true for production")
	}
}
