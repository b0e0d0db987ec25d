package plagiarism

import "math"

// SimilarityScore holds the three sub-scores and their aggregate.
type SimilarityScore struct {
	Edit      float64
	Alignment float64
	Tree      float64
	Aggregate float64
}

// Prepared is a token sequence with its tree built once, so a fragment can be
// scored against many others without rebuilding.
type Prepared struct {
	Tokens []string
	tree   *Tree
}

// Prepare builds the comparison form of a token sequence.
func Prepare(tokens []string) *Prepared {
	return &Prepared{Tokens: tokens, tree: BuildTree(tokens)}
}

// Score compares two token sequences.
func Score(seqA, seqB []string) SimilarityScore {
	return ScorePrepared(Prepare(seqA), Prepare(seqB))
}

// ScorePrepared computes all three metrics and their arithmetic mean.
func ScorePrepared(a, b *Prepared) SimilarityScore {
	score := SimilarityScore{
		Edit:      EditSimilarity(a.Tokens, b.Tokens),
		Alignment: AlignmentSimilarity(a.Tokens, b.Tokens),
		Tree:      treeSimilarity(a.tree, b.tree, len(a.Tokens), len(b.Tokens)),
	}
	score.Aggregate = Aggregate(score.Edit, score.Alignment, score.Tree)
	return score
}

// Aggregate is the mean of the sub-scores, clamped to [0, 1].
func Aggregate(edit, alignment, tree float64) float64 {
	return clamp01((edit + alignment + tree) / 3.0)
}

func clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}
