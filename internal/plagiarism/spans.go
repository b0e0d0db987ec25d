package plagiarism

import (
	"github.com/dacharyc/diffx"
)

// Span is a run of equal tokens: a[AStart:AEnd] == b[BStart:BEnd].
type Span struct {
	AStart int
	AEnd   int
	BStart int
	BEnd   int
}

// MatchedSpans aligns two token sequences and returns the shared runs in order.
func MatchedSpans(seqA, seqB []string) []Span {
	spans := make([]Span, 0)
	for _, op := range diffx.DiffHistogram(seqA, seqB) {
		if op.Type != diffx.Equal || op.AEnd == op.AStart {
			continue
		}
		spans = append(spans, Span{AStart: op.AStart, AEnd: op.AEnd, BStart: op.BStart, BEnd: op.BEnd})
	}
	return spans
}
