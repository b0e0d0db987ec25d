package preprocess

import (
	"context"
	"fmt"

	"github.com/RishiKendai/cellguard/internal/models"
	"github.com/RishiKendai/cellguard/internal/plagiarism"
	"github.com/rs/zerolog/log"
)

// Warmer extracts fragments ahead of the first check of a version.
type Warmer interface {
	Ensure(ctx context.Context, documentVersionID string) ([]models.CodeFragment, error)
}

type Service struct {
	cache Warmer
}

func NewService(cache Warmer) *Service {
	return &Service{
		cache: cache,
	}
}

var _ Warmer = (*plagiarism.FragmentCache)(nil)

// processes an uploaded version by caching its code fragments
func (s *Service) ProcessVersion(ctx context.Context, event *models.VersionEvent) error {
	if event.DocumentVersionID == "" {
		return fmt.Errorf("event has no document version id")
	}

	fragments, err := s.cache.Ensure(ctx, event.DocumentVersionID)
	if err != nil {
		return fmt.Errorf("failed to cache fragments: %w", err)
	}

	log.Debug().
		Str("documentVersionId", event.DocumentVersionID).
		Int("cells", len(fragments)).
		Msg("Version pre-warmed")

	return nil
}
