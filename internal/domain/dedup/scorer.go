package dedup

// Score computes, for every row of the matrix, the share of thresholdFields on
// which the row agrees with the reference. Other fields stay in the matrix but
// do not count.
func Score(matrix MatchMatrix, thresholdFields []string) map[int]float64 {
	ratios := make(map[int]float64, len(matrix))
	if len(thresholdFields) == 0 {
		return ratios
	}
	for idx, agree := range matrix {
		n := 0
		for _, f := range thresholdFields {
			if agree[f] {
				n++
			}
		}
		ratios[idx] = float64(n) / float64(len(thresholdFields))
	}
	return ratios
}
