// Package memory keeps fragments and checkpoint relations in process memory.
// It backs the CLI and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/RishiKendai/cellguard/internal/models"
	"github.com/RishiKendai/cellguard/internal/plagiarism"
	"github.com/google/uuid"
)

type relation struct {
	checkpointID string
}

// Store is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	fragments map[string][]models.CodeFragment
	versions  map[string]relation
	inserts   map[string]int
}

var (
	_ plagiarism.FragmentRepository = (*Store)(nil)
	_ plagiarism.RelationRepository = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		fragments: make(map[string][]models.CodeFragment),
		versions:  make(map[string]relation),
		inserts:   make(map[string]int),
	}
}

// AddVersion places a version in a checkpoint
func (s *Store) AddVersion(documentVersionID, checkpointID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[documentVersionID] = relation{checkpointID: checkpointID}
}

func (s *Store) ListFragments(ctx context.Context, documentVersionID string) ([]models.CodeFragment, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	fragments, ok := s.fragments[documentVersionID]
	if !ok {
		return nil, false, nil
	}
	out := make([]models.CodeFragment, len(fragments))
	copy(out, fragments)
	return out, true, nil
}

func (s *Store) InsertFragments(ctx context.Context, documentVersionID string, sources []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.fragments[documentVersionID]; ok {
		return nil
	}

	now := time.Now()
	fragments := make([]models.CodeFragment, 0, len(sources))
	for i, source := range sources {
		fragments = append(fragments, models.CodeFragment{
			ID:                uuid.New().String(),
			DocumentVersionID: documentVersionID,
			CellNumber:        i,
			Source:            source,
			CreatedAt:         now,
		})
	}
	s.fragments[documentVersionID] = fragments
	s.inserts[documentVersionID]++
	return nil
}

// InsertCount reports how many fragment sets were written for a version
func (s *Store) InsertCount(documentVersionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inserts[documentVersionID]
}

func (s *Store) CheckpointOf(ctx context.Context, documentVersionID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rel, ok := s.versions[documentVersionID]
	if !ok {
		return "", fmt.Errorf("document version %s: %w", documentVersionID, plagiarism.ErrNotFound)
	}
	return rel.checkpointID, nil
}

func (s *Store) SiblingVersions(ctx context.Context, checkpointID, excludeVersionID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	siblings := make([]string, 0)
	for id, rel := range s.versions {
		if rel.checkpointID == checkpointID && id != excludeVersionID {
			siblings = append(siblings, id)
		}
	}
	sort.Strings(siblings)
	return siblings, nil
}
