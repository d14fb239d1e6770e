package similarity

// LevenshteinDistance returns the number of single-rune insertions, deletions
// and substitutions needed to turn a into b.
func LevenshteinDistance(a, b string) int {
	s1 := []rune(a)
	s2 := []rune(b)
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	// Two rolling rows instead of the full matrix.
	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(s2)]
}

// LevenshteinRatio normalizes the edit distance by the longer string length.
func LevenshteinRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	n := len([]rune(a))
	if m := len([]rune(b)); m > n {
		n = m
	}
	return 1.0 - float64(LevenshteinDistance(a, b))/float64(n)
}

// Gestalt computes the Ratcliff/Obershelp pattern-matching ratio: twice the
// number of matched runes divided by the total rune count. Matching blocks are
// found by recursively taking the longest common substring.
func Gestalt(a, b string) float64 {
	s1 := []rune(a)
	s2 := []rune(b)
	total := len(s1) + len(s2)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchingRunes(s1, s2)) / float64(total)
}

func matchingRunes(s1, s2 []rune) int {
	i, j, size := longestCommon(s1, s2)
	if size == 0 {
		return 0
	}
	return size +
		matchingRunes(s1[:i], s2[:j]) +
		matchingRunes(s1[i+size:], s2[j+size:])
}

// longestCommon finds the longest common substring, preferring the earliest
// start in s1 and then in s2.
func longestCommon(s1, s2 []rune) (int, int, int) {
	bestI, bestJ, bestSize := 0, 0, 0
	lengths := make([]int, len(s2)+1)
	for i := 1; i <= len(s1); i++ {
		next := make([]int, len(s2)+1)
		for j := 1; j <= len(s2); j++ {
			if s1[i-1] != s2[j-1] {
				continue
			}
			next[j] = lengths[j-1] + 1
			if next[j] > bestSize {
				bestSize = next[j]
				bestI = i - bestSize
				bestJ = j - bestSize
			}
		}
		lengths = next
	}
	return bestI, bestJ, bestSize
}
