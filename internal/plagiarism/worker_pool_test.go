package plagiarism

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	count *atomic.Int32
	done  chan struct{}
}

func (j *countingJob) Execute(context.Context) error {
	j.count.Add(1)
	j.done <- struct{}{}
	return nil
}

func TestWorkerPool_RunsJobs(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 3)
	defer pool.Close()

	assert.Equal(t, 3, pool.Size())

	var count atomic.Int32
	done := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(context.Background(), &countingJob{count: &count, done: done}))
	}
	for i := 0; i < 10; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("job did not run")
		}
	}
	assert.Equal(t, int32(10), count.Load())
}

func TestWorkerPool_CPUSized(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 0)
	defer pool.Close()

	assert.GreaterOrEqual(t, pool.Size(), 1)
}

func TestWorkerPool_SubmitAfterClose(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1)
	pool.Close()

	select {
	case <-pool.Done():
	default:
		t.Fatal("Done should be closed after Close")
	}

	// Fill the queue so a send can never win the select
	for i := 0; i < 2; i++ {
		pool.jobQueue <- &countingJob{}
	}
	err := pool.Submit(context.Background(), &countingJob{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWorkerPool_SubmitHonoursCallerContext(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1)
	defer pool.Close()

	block := make(chan struct{})
	defer close(block)
	require.NoError(t, pool.Submit(context.Background(), blockingJob(block)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var err error
	for i := 0; i < 4 && err == nil; i++ {
		err = pool.Submit(ctx, blockingJob(block))
	}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type blockingJob chan struct{}

func (j blockingJob) Execute(ctx context.Context) error {
	select {
	case <-j:
	case <-ctx.Done():
	}
	return nil
}
