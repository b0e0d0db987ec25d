package plagiarism

import (
	"context"
	"fmt"
	"time"

	"github.com/RishiKendai/cellguard/internal/metrics"
	"github.com/RishiKendai/cellguard/internal/models"
	"github.com/RishiKendai/cellguard/internal/observability"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

// CacheState is the extraction state of one document version.
type CacheState string

const (
	StateNotExtracted CacheState = "not_extracted"
	StateExtracting   CacheState = "extracting"
	StateCached       CacheState = "cached"
)

const defaultPopulateTimeout = 2 * time.Minute

// FragmentCache extracts and persists the fragments of a document version at most once.
type FragmentCache struct {
	repo            FragmentRepository
	fetcher         ObjectFetcher
	extractor       Extractor
	locker          VersionLocker
	group           singleflight.Group
	populateTimeout time.Duration
}

// NewFragmentCache creates a cache. A nil locker falls back to an in-process lock.
func NewFragmentCache(repo FragmentRepository, fetcher ObjectFetcher, extractor Extractor, locker VersionLocker) *FragmentCache {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &FragmentCache{
		repo:            repo,
		fetcher:         fetcher,
		extractor:       extractor,
		locker:          locker,
		populateTimeout: defaultPopulateTimeout,
	}
}

// Ensure returns the fragments of a version ordered by cell number, extracting
// and storing them first when the version has never been extracted.
func (c *FragmentCache) Ensure(ctx context.Context, documentVersionID string) ([]models.CodeFragment, error) {
	ctx, span := observability.Tracer().Start(ctx, "FragmentCache.Ensure")
	span.SetAttributes(attribute.String("document_version_id", documentVersionID))
	defer span.End()

	fragments, cached, err := c.repo.ListFragments(ctx, documentVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fragments: %w", err)
	}
	if cached {
		return fragments, nil
	}

	// Callers in this process share one extraction; the shared call must not
	// die with whichever request started it.
	ch := c.group.DoChan(documentVersionID, func() (interface{}, error) {
		popCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.populateTimeout)
		defer cancel()
		return c.populate(popCtx, documentVersionID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			span.RecordError(res.Err)
			return nil, res.Err
		}
		return res.Val.([]models.CodeFragment), nil
	}
}

func (c *FragmentCache) populate(ctx context.Context, documentVersionID string) ([]models.CodeFragment, error) {
	unlock, err := c.locker.Lock(ctx, documentVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock version %s: %w", documentVersionID, err)
	}
	defer unlock()

	// Another process may have finished while we waited for the lock
	fragments, cached, err := c.repo.ListFragments(ctx, documentVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fragments: %w", err)
	}
	if cached {
		return fragments, nil
	}

	log.Debug().
		Str("documentVersionId", documentVersionID).
		Str("state", string(StateExtracting)).
		Msg("Extracting fragments")

	raw, err := c.fetcher.Fetch(ctx, documentVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch version %s: %w", documentVersionID, err)
	}

	sources := c.extractor.ExtractFragments(raw)
	if err := c.repo.InsertFragments(ctx, documentVersionID, sources); err != nil {
		return nil, fmt.Errorf("failed to store fragments: %w", err)
	}
	metrics.FragmentsExtracted.Add(float64(len(sources)))

	fragments, _, err = c.repo.ListFragments(ctx, documentVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fragments: %w", err)
	}

	log.Debug().
		Str("documentVersionId", documentVersionID).
		Str("state", string(StateCached)).
		Int("cells", len(fragments)).
		Msg("Fragments cached")

	return fragments, nil
}
