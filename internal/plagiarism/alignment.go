package plagiarism

import "slices"

// Block is a contiguous run of equal tokens: a[A:A+Size] == b[B:B+Size].
type Block struct {
	A    int
	B    int
	Size int
}

// blockMatcher finds longest matching blocks between two token sequences.
type blockMatcher struct {
	a   []string
	b   []string
	b2j map[string][]int
}

func newBlockMatcher(a, b []string) *blockMatcher {
	m := &blockMatcher{a: a, b: b, b2j: make(map[string][]int, len(b))}
	for j, tok := range b {
		m.b2j[tok] = append(m.b2j[tok], j)
	}
	return m
}

// longestMatch returns the longest block inside a[alo:ahi] and b[blo:bhi],
// preferring the earliest start in a, then in b.
func (m *blockMatcher) longestMatch(alo, ahi, blo, bhi int) Block {
	best := Block{A: alo, B: blo}
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		next := make(map[int]int)
		for _, j := range m.b2j[m.a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > best.Size {
				best = Block{A: i - k + 1, B: j - k + 1, Size: k}
			}
		}
		j2len = next
	}
	return best
}

// blocks decomposes both sequences into matching blocks. Sub-ranges left and
// right of each match are queued on a work-list instead of recursing.
func (m *blockMatcher) blocks() []Block {
	type span struct{ alo, ahi, blo, bhi int }

	queue := []span{{0, len(m.a), 0, len(m.b)}}
	var found []Block
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		match := m.longestMatch(s.alo, s.ahi, s.blo, s.bhi)
		if match.Size == 0 {
			continue
		}
		found = append(found, match)

		if s.alo < match.A && s.blo < match.B {
			queue = append(queue, span{s.alo, match.A, s.blo, match.B})
		}
		if match.A+match.Size < s.ahi && match.B+match.Size < s.bhi {
			queue = append(queue, span{match.A + match.Size, s.ahi, match.B + match.Size, s.bhi})
		}
	}

	slices.SortFunc(found, func(x, y Block) int { return x.A - y.A })
	return found
}

// MatchingBlocks returns the matching blocks of a against b ordered by position in a.
func MatchingBlocks(a, b []string) []Block {
	return newBlockMatcher(a, b).blocks()
}

// AlignmentSimilarity is 2*M / (len(a)+len(b)) where M is the total size of the
// matching blocks. Two empty sequences are identical.
func AlignmentSimilarity(seqA, seqB []string) float64 {
	total := len(seqA) + len(seqB)
	if total == 0 {
		return 1.0
	}

	// Tie-breaking in longestMatch depends on argument order; a canonical
	// order keeps the ratio symmetric.
	if compareSequences(seqA, seqB) > 0 {
		seqA, seqB = seqB, seqA
	}

	matched := 0
	for _, block := range MatchingBlocks(seqA, seqB) {
		matched += block.Size
	}
	return clamp01(2.0 * float64(matched) / float64(total))
}

// compareSequences orders sequences by length, then lexicographically.
func compareSequences(a, b []string) int {
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	return slices.Compare(a, b)
}
