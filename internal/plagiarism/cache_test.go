package plagiarism

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RishiKendai/cellguard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo is a minimal FragmentRepository that counts writes.
type fakeRepo struct {
	mu      sync.Mutex
	sets    map[string][]models.CodeFragment
	inserts int
	listErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{sets: make(map[string][]models.CodeFragment)}
}

func (r *fakeRepo) ListFragments(_ context.Context, id string) ([]models.CodeFragment, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, false, r.listErr
	}
	set, ok := r.sets[id]
	return set, ok, nil
}

func (r *fakeRepo) InsertFragments(_ context.Context, id string, sources []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if _, ok := r.sets[id]; ok {
		return nil
	}
	set := make([]models.CodeFragment, 0, len(sources))
	for i, src := range sources {
		set = append(set, models.CodeFragment{DocumentVersionID: id, CellNumber: i, Source: src})
	}
	r.sets[id] = set
	return nil
}

// fakeFetcher serves raw content by id, optionally slowly.
type fakeFetcher struct {
	content map[string]string
	delay   time.Duration
	calls   atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, id string) ([]byte, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	raw, ok := f.content[id]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", id, ErrNotFound)
	}
	return []byte(raw), nil
}

// lineExtractor treats every non-empty line as one cell.
type lineExtractor struct{}

func (lineExtractor) ExtractFragments(raw []byte) []string {
	cells := make([]string, 0)
	for _, line := range strings.Split(string(raw), "\n") {
		if line != "" {
			cells = append(cells, line)
		}
	}
	return cells
}

func TestFragmentCache_EnsureExtractsOnce(t *testing.T) {
	repo := newFakeRepo()
	fetcher := &fakeFetcher{content: map[string]string{"v1": "x = 1\ny = 2"}}
	cache := NewFragmentCache(repo, fetcher, lineExtractor{}, nil)
	ctx := context.Background()

	first, err := cache.Ensure(ctx, "v1")
	require.NoError(t, err)
	second, err := cache.Ensure(ctx, "v1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first, 2)
	assert.Equal(t, 0, first[0].CellNumber)
	assert.Equal(t, "y = 2", first[1].Source)
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, 1, repo.inserts)
}

func TestFragmentCache_EmptyNotebookIsCached(t *testing.T) {
	repo := newFakeRepo()
	fetcher := &fakeFetcher{content: map[string]string{"empty": ""}}
	cache := NewFragmentCache(repo, fetcher, lineExtractor{}, nil)

	for i := 0; i < 3; i++ {
		fragments, err := cache.Ensure(context.Background(), "empty")
		require.NoError(t, err)
		assert.Empty(t, fragments)
	}
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestFragmentCache_ConcurrentEnsureInsertsOnce(t *testing.T) {
	repo := newFakeRepo()
	fetcher := &fakeFetcher{content: map[string]string{"v1": "a\nb\nc"}, delay: 20 * time.Millisecond}
	cache := NewFragmentCache(repo, fetcher, lineExtractor{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fragments, err := cache.Ensure(context.Background(), "v1")
			assert.NoError(t, err)
			assert.Len(t, fragments, 3)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, repo.inserts)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestFragmentCache_SeparateCachesShareLock(t *testing.T) {
	// Two caches stand in for two processes sharing one store and one lock
	repo := newFakeRepo()
	locker := NewLocalLocker()
	fetcher := &fakeFetcher{content: map[string]string{"v1": "a\nb"}, delay: 20 * time.Millisecond}
	caches := []*FragmentCache{
		NewFragmentCache(repo, fetcher, lineExtractor{}, locker),
		NewFragmentCache(repo, fetcher, lineExtractor{}, locker),
	}

	var wg sync.WaitGroup
	for _, c := range caches {
		wg.Add(1)
		go func(c *FragmentCache) {
			defer wg.Done()
			_, err := c.Ensure(context.Background(), "v1")
			assert.NoError(t, err)
		}(c)
	}
	wg.Wait()

	assert.Equal(t, 1, repo.inserts)
}

func TestFragmentCache_MissingObject(t *testing.T) {
	cache := NewFragmentCache(newFakeRepo(), &fakeFetcher{}, lineExtractor{}, nil)

	_, err := cache.Ensure(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFragmentCache_RepositoryError(t *testing.T) {
	repo := newFakeRepo()
	repo.listErr = errors.New("connection refused")
	cache := NewFragmentCache(repo, &fakeFetcher{}, lineExtractor{}, nil)

	_, err := cache.Ensure(context.Background(), "v1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestFragmentCache_CallerCancelDoesNotAbortExtraction(t *testing.T) {
	repo := newFakeRepo()
	fetcher := &fakeFetcher{content: map[string]string{"v1": "a"}, delay: 50 * time.Millisecond}
	cache := NewFragmentCache(repo, fetcher, lineExtractor{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := cache.Ensure(ctx, "v1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The shared extraction keeps running and a later caller sees its result
	assert.Eventually(t, func() bool {
		_, cached, _ := repo.ListFragments(context.Background(), "v1")
		return cached
	}, time.Second, 10*time.Millisecond)
}
