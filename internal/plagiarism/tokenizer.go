package plagiarism

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
)

// Placeholders emitted when literal normalization is enabled.
const (
	StringLiteralToken = "STRING_LITERAL"
	NumberLiteralToken = "NUMBER_LITERAL"
)

// Tokenizer turns source code into a comment and whitespace free token sequence.
type Tokenizer struct {
	normalizeLiterals bool
}

// NewTokenizer creates a tokenizer. With normalizeLiterals, fragments that differ
// only in string or numeric literal values produce the same sequence.
func NewTokenizer(normalizeLiterals bool) *Tokenizer {
	return &Tokenizer{normalizeLiterals: normalizeLiterals}
}

// Supports reports whether a lexer exists for the language tag.
func (t *Tokenizer) Supports(language string) bool {
	return lexerFor(language) != nil
}

// Tokenize lexes code with the lexer registered for language.
func (t *Tokenizer) Tokenize(code, language string) ([]string, error) {
	lexer := lexerFor(language)
	if lexer == nil {
		return nil, &UnsupportedLanguageError{Language: language}
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return nil, fmt.Errorf("failed to tokenise %s source: %w", language, err)
	}

	tokens := make([]string, 0)
	inString := false
	for _, tok := range iterator.Tokens() {
		if tok.Type.InCategory(chroma.Comment) {
			inString = false
			continue
		}

		value := strings.TrimSpace(tok.Value)
		if value == "" {
			continue
		}

		if t.normalizeLiterals {
			switch {
			case tok.Type.InSubCategory(chroma.LiteralString):
				// "abc" lexes as quote, body, quote; collapse the run
				if !inString {
					tokens = append(tokens, StringLiteralToken)
					inString = true
				}
				continue
			case tok.Type.InSubCategory(chroma.LiteralNumber):
				value = NumberLiteralToken
			}
		}

		inString = false
		if tok.Type.InCategory(chroma.Punctuation) && len(value) > 1 {
			// Brackets must stand alone for tree building
			for _, r := range value {
				if !unicode.IsSpace(r) {
					tokens = append(tokens, string(r))
				}
			}
			continue
		}
		tokens = append(tokens, value)
	}

	return tokens, nil
}

func lexerFor(language string) chroma.Lexer {
	language = strings.TrimSpace(language)
	if language == "" {
		return nil
	}
	return lexers.Get(language)
}
