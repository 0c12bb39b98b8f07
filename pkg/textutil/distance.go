package textutil

// Levenshtein is the edit distance between two token sequences.
func Levenshtein[T comparable](a, b []T) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// EditSimilarity is 1 - distance/maxLen over the runes of a and b, 1 when
// both are empty.
func EditSimilarity(a, b string) float64 {
	return SequenceSimilarity([]rune(a), []rune(b))
}

// SequenceSimilarity is EditSimilarity over arbitrary token sequences.
func SequenceSimilarity[T comparable](a, b []T) float64 {
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1
	}
	return float64(maxLen-Levenshtein(a, b)) / float64(maxLen)
}
