package plagiarism

import (
	"github.com/RishiKendai/cellguard/internal/models"
)

// Explain scores two raw fragments and lists the token runs they share.
func Explain(tokenizer *Tokenizer, sourceA, sourceB, language string) (*models.ExplainResponse, error) {
	tokensA, err := tokenizer.Tokenize(sourceA, language)
	if err != nil {
		return nil, err
	}
	tokensB, err := tokenizer.Tokenize(sourceB, language)
	if err != nil {
		return nil, err
	}

	score := Score(tokensA, tokensB)

	spans := make([]models.TokenSpan, 0)
	for _, sp := range MatchedSpans(tokensA, tokensB) {
		spans = append(spans, models.TokenSpan{
			AStart: sp.AStart,
			AEnd:   sp.AEnd,
			BStart: sp.BStart,
			BEnd:   sp.BEnd,
			Tokens: tokensA[sp.AStart:sp.AEnd],
		})
	}

	return &models.ExplainResponse{
		Edit:      score.Edit,
		Alignment: score.Alignment,
		Tree:      score.Tree,
		Aggregate: score.Aggregate,
		TokensA:   len(tokensA),
		TokensB:   len(tokensB),
		Spans:     spans,
	}, nil
}
