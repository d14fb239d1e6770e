package dedup

import "github.com/ehr/dedup/internal/platform/dataset"

// Resolution records which rule picked a cluster's reference row.
type Resolution int

const (
	// ResolutionUntested: no row has a test result; the first row wins.
	ResolutionUntested Resolution = iota
	// ResolutionSingleTested: exactly one row has a test result.
	ResolutionSingleTested
	// ResolutionPositive: several rows are tested and one has a positive result.
	ResolutionPositive
	// ResolutionAmbiguous: several rows are tested, none positive; the first
	// tested row wins.
	ResolutionAmbiguous
)

func (r Resolution) String() string {
	switch r {
	case ResolutionSingleTested:
		return "single-tested"
	case ResolutionPositive:
		return "positive"
	case ResolutionAmbiguous:
		return "ambiguous"
	default:
		return "untested"
	}
}

// SelectReference picks the authoritative row of a cluster. Rows are visited
// in ascending index order, so every tie resolves to the smallest index:
//
//  1. no tested row: the first row;
//  2. one tested row: that row;
//  3. several tested rows: the first whose identifier has a positive result,
//     otherwise the first tested row.
//
// The cluster must not be empty.
func SelectReference(cluster Cluster, ds *dataset.Dataset, idField string, results *dataset.TestResults) (int, Resolution) {
	var tested []int
	for _, idx := range cluster {
		id, ok := ds.Value(idx, idField)
		if ok && results.Tested(id) {
			tested = append(tested, idx)
		}
	}

	switch len(tested) {
	case 0:
		return cluster[0], ResolutionUntested
	case 1:
		return tested[0], ResolutionSingleTested
	}

	for _, idx := range tested {
		id, _ := ds.Value(idx, idField)
		if results.Positive(id) {
			return idx, ResolutionPositive
		}
	}
	return tested[0], ResolutionAmbiguous
}
