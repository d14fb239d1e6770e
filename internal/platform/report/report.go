// Package report renders deduplication runs as YAML documents and console
// summaries.
package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ehr/dedup/internal/domain/dedup"
	"github.com/ehr/dedup/internal/platform/history"
)

// Settings records the engine configuration a run used.
type Settings struct {
	GroupingFields          []string `yaml:"grouping_fields"`
	SimilarityFields        []string `yaml:"similarity_fields"`
	ThresholdFields         []string `yaml:"threshold_fields"`
	SimilarityConfidence    float64  `yaml:"similarity_confidence"`
	DuplicateRatioThreshold float64  `yaml:"duplicate_ratio_threshold"`
	RemoveIDDuplicates      bool     `yaml:"remove_id_duplicates"`
	IDField                 string   `yaml:"id_field"`
	Metric                  string   `yaml:"metric"`
	Workers                 int      `yaml:"workers"`
}

// Report describes one completed run.
type Report struct {
	RunID       string            `yaml:"run_id"`
	Source      string            `yaml:"source"`
	StartedAt   time.Time         `yaml:"started_at"`
	FinishedAt  time.Time         `yaml:"finished_at"`
	InputRows   int               `yaml:"input_rows"`
	OutputRows  int               `yaml:"output_rows"`
	RemovalRate float64           `yaml:"removal_rate"`
	Passes      []dedup.PassStats `yaml:"passes"`
	Removed     []int             `yaml:"removed_indices,flow"`
	Settings    Settings          `yaml:"settings"`
}

// FromResult builds a report for res produced under cfg.
func FromResult(meta dedup.RunMeta, cfg dedup.Config, res *dedup.Result) Report {
	r := Report{
		RunID:       meta.ID,
		Source:      meta.Source,
		StartedAt:   meta.StartedAt.UTC(),
		FinishedAt:  meta.FinishedAt.UTC(),
		InputRows:   res.InputRows,
		RemovalRate: res.RemovalRate,
		Passes:      append([]dedup.PassStats(nil), res.Passes...),
		Removed:     res.Removed.Sorted(),
		Settings: Settings{
			GroupingFields:          cfg.GroupingFields,
			SimilarityFields:        cfg.SimilarityFields,
			ThresholdFields:         cfg.ThresholdFields,
			SimilarityConfidence:    cfg.SimilarityConfidence,
			DuplicateRatioThreshold: cfg.DuplicateRatioThreshold,
			RemoveIDDuplicates:      cfg.RemoveIDDuplicates,
			IDField:                 cfg.IDField,
			Metric:                  meta.Metric,
			Workers:                 cfg.Workers,
		},
	}
	if res.Dataset != nil {
		r.OutputRows = res.Dataset.Len()
	}
	return r
}

// FromRun rebuilds a report from a history record. Field lists and removed
// indices are not kept in the history and stay empty.
func FromRun(run history.Run) Report {
	r := Report{
		RunID:       run.ID,
		Source:      run.Source,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		InputRows:   run.InputRows,
		OutputRows:  run.OutputRows,
		RemovalRate: run.RemovalRate,
		Settings:    Settings{Metric: run.Settings["metric"]},
	}
	for _, p := range run.Passes {
		r.Passes = append(r.Passes, dedup.PassStats{Field: p.Field, Candidates: p.Candidates, Removed: p.Removed})
	}
	return r
}

// WriteYAML encodes r to w.
func WriteYAML(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

// SaveYAML writes r to path.
func SaveYAML(path string, r Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := WriteYAML(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadYAML reads a report written by SaveYAML.
func LoadYAML(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}
