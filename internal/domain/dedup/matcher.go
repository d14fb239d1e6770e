package dedup

import (
	"strings"

	"github.com/ehr/dedup/internal/platform/dataset"
	"github.com/ehr/dedup/internal/platform/similarity"
)

// Comparator decides whether a row value agrees with the reference value.
type Comparator interface {
	Agree(ref, v dataset.Value) bool
}

// Exact agrees on strict (normalized) equality. Null agrees only with null.
type Exact struct{}

// Agree implements Comparator.
func (Exact) Agree(ref, v dataset.Value) bool {
	return ref.Equal(v)
}

// Fuzzy agrees when the case-folded similarity of both values is strictly
// above Confidence. Null agrees only with null.
type Fuzzy struct {
	Metric     similarity.Metric
	Confidence float64
}

// Agree implements Comparator.
func (f Fuzzy) Agree(ref, v dataset.Value) bool {
	if ref.IsNull() || v.IsNull() {
		return ref.IsNull() && v.IsNull()
	}
	return f.Metric.Similarity(strings.ToLower(ref.Text()), strings.ToLower(v.Text())) > f.Confidence
}

// FieldPolicy maps each column to the comparator used for it.
type FieldPolicy map[string]Comparator

// NewFieldPolicy resolves, once per run, which columns are compared fuzzily.
// Columns listed in similarityFields use metric with the given confidence;
// all others use exact equality. A nil metric means Jaro-Winkler.
func NewFieldPolicy(columns, similarityFields []string, metric similarity.Metric, confidence float64) FieldPolicy {
	if metric == nil {
		metric = similarity.Default()
	}
	fuzzy := Fuzzy{Metric: metric, Confidence: confidence}

	policy := make(FieldPolicy, len(columns))
	for _, col := range columns {
		policy[col] = Exact{}
	}
	for _, col := range similarityFields {
		policy[col] = fuzzy
	}
	return policy
}

// comparator returns the policy entry for col, exact when unspecified.
func (p FieldPolicy) comparator(col string) Comparator {
	if c, ok := p[col]; ok {
		return c
	}
	return Exact{}
}

// Match compares every non-reference row of the cluster with the reference on
// every column of ds.
func Match(ds *dataset.Dataset, cluster Cluster, ref int, policy FieldPolicy) MatchMatrix {
	columns := ds.Columns()
	refRow, ok := ds.Row(ref)
	if !ok {
		return MatchMatrix{}
	}

	matrix := make(MatchMatrix, len(cluster))
	for _, idx := range cluster {
		if idx == ref {
			continue
		}
		row, ok := ds.Row(idx)
		if !ok {
			continue
		}
		agree := make(map[string]bool, len(columns))
		for i, col := range columns {
			agree[col] = policy.comparator(col).Agree(refRow[i], row[i])
		}
		matrix[idx] = agree
	}
	return matrix
}
