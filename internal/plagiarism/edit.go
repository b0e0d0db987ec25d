package plagiarism

// EditDistance computes the optimal string alignment distance between two
// token sequences: insertion, deletion, substitution and transposition of two
// adjacent tokens all cost 1.
func EditDistance(seqA, seqB []string) int {
	m, n := len(seqA), len(seqB)
	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	// Rows i-2, i-1 and i of the (m+1)x(n+1) table
	prev2 := make([]int, n+1)
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 1
			if seqA[i-1] == seqB[j-1] {
				cost = 0
			}

			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)

			if i > 1 && j > 1 && seqA[i-1] == seqB[j-2] && seqA[i-2] == seqB[j-1] {
				curr[j] = min(curr[j], prev2[j-2]+cost) // transposition
			}
		}
		prev2, prev, curr = prev, curr, prev2
	}

	return prev[n]
}

// EditSimilarity is 1 - distance / max(len). Two empty sequences are identical.
func EditSimilarity(seqA, seqB []string) float64 {
	maxLen := max(len(seqA), len(seqB))
	if maxLen == 0 {
		return 1.0
	}
	return clamp01(1.0 - float64(EditDistance(seqA, seqB))/float64(maxLen))
}
