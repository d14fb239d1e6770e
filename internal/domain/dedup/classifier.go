package dedup

import "github.com/ehr/dedup/internal/platform/dataset"

// Classify returns the rows whose ratio reaches threshold (inclusive).
func Classify(ratios map[int]float64, threshold float64) dataset.IndexSet {
	dupes := make(dataset.IndexSet)
	for idx, r := range ratios {
		if r >= threshold {
			dupes.Add(idx)
		}
	}
	return dupes
}
