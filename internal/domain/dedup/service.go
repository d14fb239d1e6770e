package dedup

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/dedup/internal/platform/dataset"
	"github.com/ehr/dedup/internal/platform/similarity"
)

// Deduplicator runs the cascading deduplication passes.
type Deduplicator struct {
	cfg    Config
	logger zerolog.Logger
}

// NewDeduplicator creates a Deduplicator that discards its logs.
func NewDeduplicator(cfg Config) *Deduplicator {
	return NewDeduplicatorWithLogger(cfg, zerolog.Nop())
}

// NewDeduplicatorWithLogger creates a Deduplicator that logs pass progress to
// logger.
func NewDeduplicatorWithLogger(cfg Config, logger zerolog.Logger) *Deduplicator {
	if cfg.Metric == nil {
		cfg.Metric = similarity.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	cfg.ThresholdFields = append([]string(nil), cfg.ThresholdFields...)
	cfg.SimilarityFields = append([]string(nil), cfg.SimilarityFields...)
	cfg.GroupingFields = append([]string(nil), cfg.GroupingFields...)
	return &Deduplicator{cfg: cfg, logger: logger.With().Str("component", "dedup").Logger()}
}

// Config returns the effective configuration.
func (d *Deduplicator) Config() Config {
	return d.cfg
}

// Deduplicate removes duplicate patient rows from ds. One pass runs per
// grouping field, in order, each on the output of the previous one; then, if
// enabled, every row sharing an identifier with another row is removed. The
// input dataset is never modified.
func (d *Deduplicator) Deduplicate(ctx context.Context, ds *dataset.Dataset, results *dataset.TestResults) (*Result, error) {
	if ds == nil {
		return nil, fmt.Errorf("deduplicate: dataset is required")
	}
	if err := d.cfg.Validate(ds.Columns()); err != nil {
		return nil, err
	}

	res := &Result{
		Dataset:   ds,
		InputRows: ds.Len(),
		Removed:   make(dataset.IndexSet),
	}
	if len(d.cfg.GroupingFields) == 0 {
		return res, nil
	}

	policy := NewFieldPolicy(ds.Columns(), d.cfg.SimilarityFields, d.cfg.Metric, d.cfg.SimilarityConfidence)

	working := ds
	for _, field := range d.cfg.GroupingFields {
		candidates, remove, err := d.pass(ctx, working, field, policy, results)
		if err != nil {
			return nil, fmt.Errorf("deduplicate pass %q: %w", field, err)
		}
		working = working.Drop(remove)
		res.Removed.Union(remove)
		res.Passes = append(res.Passes, PassStats{Field: field, Candidates: candidates, Removed: len(remove)})

		d.logger.Info().
			Str("field", field).
			Int("candidates", candidates).
			Int("removed", len(remove)).
			Int("remaining", working.Len()).
			Msg("pass complete")
	}

	if d.cfg.RemoveIDDuplicates {
		if working.HasColumn(d.cfg.IDField) {
			ids, err := working.DuplicatedRows(d.cfg.IDField)
			if err != nil {
				return nil, fmt.Errorf("deduplicate identifiers: %w", err)
			}
			working = working.Drop(ids)
			res.Removed.Union(ids)
			res.Passes = append(res.Passes, PassStats{Field: d.cfg.IDField, Candidates: len(ids), Removed: len(ids)})

			d.logger.Info().
				Str("field", d.cfg.IDField).
				Int("removed", len(ids)).
				Int("remaining", working.Len()).
				Msg("identifier pass complete")
		} else {
			d.logger.Warn().Str("field", d.cfg.IDField).Msg("identifier column missing, skipping identifier pass")
		}
	}

	res.Dataset = working
	res.RemovalRate = RemovalRate(res.InputRows, working.Len())
	return res, nil
}

// pass evaluates every duplicated value of field against one snapshot of the
// working dataset. Values are independent, so up to Workers of them run at
// once; results are merged in candidate order.
func (d *Deduplicator) pass(ctx context.Context, working *dataset.Dataset, field string, policy FieldPolicy, results *dataset.TestResults) (int, dataset.IndexSet, error) {
	values, err := working.DuplicatedValues(field)
	if err != nil {
		return 0, nil, err
	}
	groups := groupRows(working, field)

	found := make([]dataset.IndexSet, len(values))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for i, value := range values {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			found[i] = d.evaluate(working, field, value, groups[value.Text()], policy, results)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, nil, err
	}

	remove := make(dataset.IndexSet)
	for _, s := range found {
		remove.Union(s)
	}
	return len(values), remove, nil
}

// evaluate runs reference selection, matching, scoring and classification for
// one cluster.
func (d *Deduplicator) evaluate(working *dataset.Dataset, field string, value dataset.Value, cluster Cluster, policy FieldPolicy, results *dataset.TestResults) dataset.IndexSet {
	if len(cluster) < 2 {
		return nil
	}

	ref, resolution := SelectReference(cluster, working, d.cfg.IDField, results)
	if resolution == ResolutionAmbiguous {
		d.logger.Debug().
			Str("field", field).
			Str("value", value.Text()).
			Int("reference", ref).
			Msg("several tested rows without a positive result, using the first tested row")
	}

	matrix := Match(working, cluster, ref, policy)
	ratios := Score(matrix, d.cfg.ThresholdFields)
	return Classify(ratios, d.cfg.DuplicateRatioThreshold)
}

// RemovalRate is the share of input rows removed, rounded half to even at two
// decimals. An empty input has a rate of 0.
func RemovalRate(input, output int) float64 {
	if input == 0 {
		return 0
	}
	return math.RoundToEven((1-float64(output)/float64(input))*100) / 100
}
