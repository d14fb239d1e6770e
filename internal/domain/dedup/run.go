package dedup

import (
	"context"
	"strconv"
	"time"

	"github.com/ehr/dedup/internal/platform/history"
)

// RunRepository stores completed runs. *history.Store implements it.
type RunRepository interface {
	Record(ctx context.Context, run history.Run) (history.Run, error)
	List(ctx context.Context, limit, offset int) ([]history.Run, int, error)
	Get(ctx context.Context, id string) (history.Run, error)
}

// RunMeta identifies a run and where its rows came from.
type RunMeta struct {
	ID         string
	RequestID  string
	Source     string
	Metric     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunRecord summarizes res for the run history.
func RunRecord(meta RunMeta, cfg Config, res *Result) history.Run {
	passes := make([]history.Pass, len(res.Passes))
	for i, p := range res.Passes {
		passes[i] = history.Pass{Field: p.Field, Candidates: p.Candidates, Removed: p.Removed}
	}
	run := history.Run{
		ID:          meta.ID,
		RequestID:   meta.RequestID,
		Source:      meta.Source,
		StartedAt:   meta.StartedAt,
		FinishedAt:  meta.FinishedAt,
		InputRows:   res.InputRows,
		RemovalRate: res.RemovalRate,
		Passes:      passes,
		Settings: map[string]string{
			"metric":                    meta.Metric,
			"similarity_confidence":     strconv.FormatFloat(cfg.SimilarityConfidence, 'f', -1, 64),
			"duplicate_ratio_threshold": strconv.FormatFloat(cfg.DuplicateRatioThreshold, 'f', -1, 64),
			"remove_id_duplicates":      strconv.FormatBool(cfg.RemoveIDDuplicates),
		},
	}
	if res.Dataset != nil {
		run.OutputRows = res.Dataset.Len()
	}
	return run
}
