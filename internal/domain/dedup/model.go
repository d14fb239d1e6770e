package dedup

import (
	"errors"
	"fmt"

	"github.com/ehr/dedup/internal/platform/dataset"
	"github.com/ehr/dedup/internal/platform/similarity"
)

// Defaults applied by DefaultConfig.
const (
	DefaultSimilarityConfidence    = 0.9
	DefaultDuplicateRatioThreshold = 0.7
	DefaultIDField                 = dataset.ColPatientID
)

// ErrInvalidConfig is wrapped by every *ConfigError.
var ErrInvalidConfig = errors.New("invalid deduplication config")

// ConfigError reports a configuration problem detected before any pass runs.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidConfig, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidConfig, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// Config is fixed for the lifetime of one Deduplicate call.
type Config struct {
	// ThresholdFields are counted in the agreement ratio.
	ThresholdFields []string `json:"threshold_fields" yaml:"threshold_fields"`
	// SimilarityFields are compared with Metric instead of strict equality.
	SimilarityFields []string `json:"similarity_fields" yaml:"similarity_fields"`
	// GroupingFields are processed in order, one pass each.
	GroupingFields []string `json:"grouping_fields" yaml:"grouping_fields"`

	SimilarityConfidence    float64 `json:"similarity_confidence" yaml:"similarity_confidence"`
	DuplicateRatioThreshold float64 `json:"duplicate_ratio_threshold" yaml:"duplicate_ratio_threshold"`
	RemoveIDDuplicates      bool    `json:"remove_id_duplicates" yaml:"remove_id_duplicates"`

	// IDField links patient rows to test results and keys the final pass.
	IDField string `json:"id_field" yaml:"id_field"`
	// Metric defaults to Jaro-Winkler when nil.
	Metric similarity.Metric `json:"-" yaml:"-"`
	// Workers bounds how many grouping values of one pass are evaluated
	// concurrently. Values below 1 mean sequential.
	Workers int `json:"workers" yaml:"workers"`
}

// DefaultConfig returns a config with the standard confidence, threshold and
// identifier settings and no fields selected.
func DefaultConfig() Config {
	return Config{
		SimilarityConfidence:    DefaultSimilarityConfidence,
		DuplicateRatioThreshold: DefaultDuplicateRatioThreshold,
		RemoveIDDuplicates:      true,
		IDField:                 DefaultIDField,
		Metric:                  similarity.Default(),
		Workers:                 1,
	}
}

// Validate checks value ranges and that every referenced field is one of
// columns. The identifier field may be absent: rows are then untested and the
// identifier pass is skipped.
func (c Config) Validate(columns []string) error {
	if c.SimilarityConfidence < 0 || c.SimilarityConfidence > 1 {
		return &ConfigError{Field: "similarity_confidence", Reason: fmt.Sprintf("%v is outside [0,1]", c.SimilarityConfidence)}
	}
	if c.DuplicateRatioThreshold < 0 || c.DuplicateRatioThreshold > 1 {
		return &ConfigError{Field: "duplicate_ratio_threshold", Reason: fmt.Sprintf("%v is outside [0,1]", c.DuplicateRatioThreshold)}
	}
	if len(c.ThresholdFields) == 0 {
		return &ConfigError{Field: "threshold_fields", Reason: "at least one field is required"}
	}

	known := make(map[string]bool, len(columns))
	for _, col := range columns {
		known[col] = true
	}
	check := func(setting string, fields []string) error {
		for _, f := range fields {
			if !known[f] {
				return &ConfigError{Field: setting, Reason: fmt.Sprintf("column %q does not exist", f)}
			}
		}
		return nil
	}
	if err := check("threshold_fields", c.ThresholdFields); err != nil {
		return err
	}
	if err := check("similarity_fields", c.SimilarityFields); err != nil {
		return err
	}
	return check("grouping_fields", c.GroupingFields)
}

// Cluster holds the row indices sharing one grouping value, in ascending order.
type Cluster []int

// MatchMatrix maps each non-reference row of a cluster to its per-field
// agreement with the reference row.
type MatchMatrix map[int]map[string]bool

// PassStats summarizes one pass.
type PassStats struct {
	Field      string `json:"field" yaml:"field"`
	Candidates int    `json:"candidates" yaml:"candidates"`
	Removed    int    `json:"removed" yaml:"removed"`
}

// Result is the outcome of a deduplication run.
type Result struct {
	Dataset     *dataset.Dataset
	InputRows   int
	RemovalRate float64
	Removed     dataset.IndexSet
	Passes      []PassStats
}
