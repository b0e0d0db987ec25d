package plagiarism_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/RishiKendai/cellguard/internal/models"
	"github.com/RishiKendai/cellguard/internal/plagiarism"
	"github.com/RishiKendai/cellguard/internal/preprocess"
	"github.com/RishiKendai/cellguard/internal/repository/memory"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	forLoop   = "for i in range(3):\n    print(i)"
	classStub = "class Foo:\n    pass"
)

type notebookFetcher struct {
	mu      sync.Mutex
	objects map[string][]byte
	onFetch func(id string)
}

func (f *notebookFetcher) Fetch(_ context.Context, id string) ([]byte, error) {
	if f.onFetch != nil {
		f.onFetch(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.objects[id]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", id, plagiarism.ErrNotFound)
	}
	return raw, nil
}

type cell struct {
	CellType string   `json:"cell_type"`
	Source   []string `json:"source"`
}

func notebook(t *testing.T, cells ...cell) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"cells": cells, "nbformat": 4})
	require.NoError(t, err)
	return raw
}

func code(src string) cell {
	return cell{CellType: "code", Source: []string{src}}
}

func markdown(src string) cell {
	return cell{CellType: "markdown", Source: []string{src}}
}

type jobFunc func(ctx context.Context) error

func (f jobFunc) Execute(ctx context.Context) error { return f(ctx) }

type fixture struct {
	store   *memory.Store
	fetcher *notebookFetcher
	status  *plagiarism.LocalStatus
	pool    *plagiarism.WorkerPool
	service *plagiarism.Service
}

// runOnPool queues a marker job and reports whether a worker ran it before
// timeout. With a single worker the marker also waits for every job queued
// ahead of it.
func (f *fixture) runOnPool(t *testing.T, timeout time.Duration) bool {
	t.Helper()
	ran := make(chan struct{})
	err := f.pool.Submit(context.Background(), jobFunc(func(context.Context) error {
		close(ran)
		return nil
	}))
	if !assert.NoError(t, err) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-time.After(timeout):
		return false
	}
}

func newFixture(t *testing.T, workers int) *fixture {
	t.Helper()

	store := memory.NewStore()
	fetcher := &notebookFetcher{objects: make(map[string][]byte)}
	status := plagiarism.NewLocalStatus()
	cache := plagiarism.NewFragmentCache(store, fetcher, preprocess.NewNotebookExtractor(), nil)
	pool := plagiarism.NewWorkerPool(context.Background(), workers)
	t.Cleanup(pool.Close)

	return &fixture{
		store:   store,
		fetcher: fetcher,
		status:  status,
		pool:    pool,
		service: plagiarism.NewService(cache, store, plagiarism.NewTokenizer(true), pool, status),
	}
}

func (f *fixture) add(id, checkpoint string, raw []byte) {
	f.store.AddVersion(id, checkpoint)
	f.fetcher.objects[id] = raw
}

func TestCheck_FlagsIdenticalCell(t *testing.T) {
	f := newFixture(t, 2)
	f.add("t", "cp1", notebook(t, code(forLoop), markdown("# notes")))
	f.add("s1", "cp1", notebook(t, code(forLoop)))
	f.add("s2", "cp1", notebook(t, code(classStub)))
	f.add("other", "cp2", notebook(t, code(forLoop)))

	result, err := f.service.Check(context.Background(), "t", "python", 0.5)

	require.NoError(t, err)
	assert.False(t, result.Incomplete)
	assert.Equal(t, 2, result.SiblingsCompared)
	assert.Empty(t, result.Skipped)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, 0, result.Matches[0].CellNumber)
	assert.Equal(t, "s1", result.Matches[0].RelatedDocVersionID)
	assert.InDelta(t, 1.0, result.Matches[0].Similarity, 1e-9)

	step, err := f.status.Get(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, models.StepCompleted, step)
}

func TestCheck_ResultOrderFollowsSiblings(t *testing.T) {
	f := newFixture(t, 4)
	f.add("t", "cp1", notebook(t, code(forLoop), code(classStub)))
	for _, id := range []string{"s3", "s1", "s2"} {
		f.add(id, "cp1", notebook(t, code(classStub), code(forLoop)))
	}

	result, err := f.service.Check(context.Background(), "t", "python", 0.9)

	require.NoError(t, err)
	got := make([]string, 0, len(result.Matches))
	for _, m := range result.Matches {
		got = append(got, fmt.Sprintf("%s/%d", m.RelatedDocVersionID, m.CellNumber))
	}
	assert.Equal(t, []string{"s1/0", "s1/1", "s2/0", "s2/1", "s3/0", "s3/1"}, got)
}

func TestCheck_NoSiblings(t *testing.T) {
	f := newFixture(t, 2)
	f.add("t", "cp1", notebook(t, code(forLoop)))

	result, err := f.service.Check(context.Background(), "t", "python", 0.5)

	require.NoError(t, err)
	assert.NotNil(t, result.Matches)
	assert.Empty(t, result.Matches)
	assert.Zero(t, result.SiblingsCompared)
}

func TestCheck_ThresholdIsStrict(t *testing.T) {
	f := newFixture(t, 2)
	f.add("t", "cp1", notebook(t, code(forLoop)))
	f.add("s1", "cp1", notebook(t, code(forLoop)))

	result, err := f.service.Check(context.Background(), "t", "python", 1.0)

	require.NoError(t, err)
	assert.Empty(t, result.Matches)
	assert.Equal(t, 1, result.SiblingsCompared)
}

func TestCheck_MissingSiblingIsSkipped(t *testing.T) {
	f := newFixture(t, 2)
	f.add("t", "cp1", notebook(t, code(forLoop)))
	f.add("s1", "cp1", notebook(t, code(forLoop)))
	f.store.AddVersion("s2", "cp1")

	result, err := f.service.Check(context.Background(), "t", "python", 0.5)

	require.NoError(t, err)
	assert.Equal(t, 1, result.SiblingsCompared)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "s2", result.Skipped[0].DocumentVersionID)
	assert.Contains(t, result.Skipped[0].Reason, "not found")
	require.Len(t, result.Matches, 1)
}

func TestCheck_EmptyNotebookSibling(t *testing.T) {
	f := newFixture(t, 2)
	f.add("t", "cp1", notebook(t, code(forLoop)))
	f.add("s1", "cp1", []byte("not a notebook"))

	result, err := f.service.Check(context.Background(), "t", "python", 0.0)

	require.NoError(t, err)
	assert.Equal(t, 1, result.SiblingsCompared)
	assert.Empty(t, result.Matches)
}

func TestCheck_ExtractsEachVersionOnce(t *testing.T) {
	f := newFixture(t, 2)
	f.add("t", "cp1", notebook(t, code(forLoop)))
	f.add("s1", "cp1", notebook(t, code(forLoop)))

	for i := 0; i < 3; i++ {
		_, err := f.service.Check(context.Background(), "t", "python", 0.5)
		require.NoError(t, err)
	}
	_, err := f.service.Check(context.Background(), "s1", "python", 0.5)
	require.NoError(t, err)

	assert.Equal(t, 1, f.store.InsertCount("t"))
	assert.Equal(t, 1, f.store.InsertCount("s1"))
}

func TestCheck_Errors(t *testing.T) {
	f := newFixture(t, 2)
	f.add("t", "cp1", notebook(t, code(forLoop)))
	f.fetcher.objects["orphan"] = notebook(t, code(forLoop))

	tests := []struct {
		name      string
		versionID string
		language  string
		threshold float64
		wantErr   error
	}{
		{name: "unsupported language", versionID: "t", language: "brainfudge", threshold: 0.5, wantErr: plagiarism.ErrUnsupportedLanguage},
		{name: "empty language", versionID: "t", language: "", threshold: 0.5, wantErr: plagiarism.ErrUnsupportedLanguage},
		{name: "threshold above one", versionID: "t", language: "python", threshold: 1.5, wantErr: plagiarism.ErrInvalidThreshold},
		{name: "negative threshold", versionID: "t", language: "python", threshold: -0.1, wantErr: plagiarism.ErrInvalidThreshold},
		{name: "missing target", versionID: "ghost", language: "python", threshold: 0.5, wantErr: plagiarism.ErrNotFound},
		{name: "target without checkpoint", versionID: "orphan", language: "python", threshold: 0.5, wantErr: plagiarism.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.service.Check(context.Background(), tt.versionID, tt.language, tt.threshold)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, result)
		})
	}

	step, err := f.status.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, models.StepFailed, step)
}

func TestCheck_CancelledMidCheck(t *testing.T) {
	f := newFixture(t, 1)
	f.service.SetFetchConcurrency(1)
	f.add("t", "cp1", notebook(t, code(forLoop)))
	for _, id := range []string{"s1", "s2", "s3"} {
		f.add(id, "cp1", notebook(t, code(forLoop)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.fetcher.onFetch = func(id string) {
		if id == "s2" {
			// s1 has been scored once the marker behind it runs
			f.runOnPool(t, 5*time.Second)
			cancel()
		}
	}

	result, err := f.service.Check(ctx, "t", "python", 0.5)

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.True(t, result.Incomplete)
	require.NotEmpty(t, result.Matches)
	assert.Equal(t, "s1", result.Matches[0].RelatedDocVersionID)
	for _, m := range result.Matches {
		assert.NotEqual(t, "s3", m.RelatedDocVersionID)
	}
}

func TestCheck_SiblingFetchDoesNotHoldWorkers(t *testing.T) {
	f := newFixture(t, 1)
	f.add("t", "cp1", notebook(t, code(forLoop)))
	f.add("s1", "cp1", notebook(t, code(forLoop)))
	f.add("s2", "cp1", notebook(t, code(classStub)))

	var workerFree bool
	f.fetcher.onFetch = func(id string) {
		if id == "s1" {
			// The only worker must stay available while storage is slow
			workerFree = f.runOnPool(t, 2*time.Second)
		}
	}

	result, err := f.service.Check(context.Background(), "t", "python", 0.5)

	require.NoError(t, err)
	assert.True(t, workerFree)
	assert.Equal(t, 2, result.SiblingsCompared)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "s1", result.Matches[0].RelatedDocVersionID)
}

func TestCheck_FetchConcurrencyIsBounded(t *testing.T) {
	f := newFixture(t, 2)
	f.service.SetFetchConcurrency(2)
	f.add("t", "cp1", notebook(t, code(forLoop)))
	for i := 0; i < 6; i++ {
		f.add(fmt.Sprintf("s%d", i), "cp1", notebook(t, code(forLoop)))
	}

	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	f.fetcher.onFetch = func(id string) {
		if id == "t" {
			return
		}
		mu.Lock()
		inFlight++
		peak = max(peak, inFlight)
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
	}

	result, err := f.service.Check(context.Background(), "t", "python", 0.5)

	require.NoError(t, err)
	assert.Len(t, result.Matches, 6)
	assert.LessOrEqual(t, peak, 2)
}
