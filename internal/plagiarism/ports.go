package plagiarism

import (
	"context"

	"github.com/RishiKendai/cellguard/internal/models"
)

// Extractor turns raw notebook bytes into ordered code-cell sources.
// Malformed content yields an empty slice.
type Extractor interface {
	ExtractFragments(raw []byte) []string
}

// ObjectFetcher loads the raw content of a document version.
// Implementations return an error wrapping ErrNotFound when the object is absent.
type ObjectFetcher interface {
	Fetch(ctx context.Context, documentVersionID string) ([]byte, error)
}

// FragmentRepository persists extracted fragments.
type FragmentRepository interface {
	// ListFragments returns the cached fragments ordered by cell number.
	// cached is false when the version was never extracted, which is distinct
	// from a cached version with zero code cells.
	ListFragments(ctx context.Context, documentVersionID string) (fragments []models.CodeFragment, cached bool, err error)

	// InsertFragments stores the fragment set of a version in one atomic step.
	// Inserting a set that already exists is a no-op.
	InsertFragments(ctx context.Context, documentVersionID string, sources []string) error
}

// RelationRepository resolves the checkpoint grouping of document versions.
type RelationRepository interface {
	CheckpointOf(ctx context.Context, documentVersionID string) (string, error)
	SiblingVersions(ctx context.Context, checkpointID, excludeVersionID string) ([]string, error)
}

// VersionLocker guards fragment extraction of a single version.
type VersionLocker interface {
	Lock(ctx context.Context, documentVersionID string) (func(), error)
}

// StatusReporter publishes the progress of a check.
type StatusReporter interface {
	Report(ctx context.Context, documentVersionID string, step models.Step) error
}

type noopStatus struct{}

func (noopStatus) Report(context.Context, string, models.Step) error { return nil }
