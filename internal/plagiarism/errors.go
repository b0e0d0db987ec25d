package plagiarism

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a document version has no stored content or relation.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedLanguage indicates no lexer exists for a language tag.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrInvalidThreshold indicates a threshold outside [0, 1].
	ErrInvalidThreshold = errors.New("threshold must be within [0, 1]")
)

// UnsupportedLanguageError carries the rejected language tag.
type UnsupportedLanguageError struct {
	Language string
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("unsupported language %q", e.Language)
}

func (e *UnsupportedLanguageError) Is(target error) bool {
	return target == ErrUnsupportedLanguage
}
