package llm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWorkerPool_Process_SubmissionOrder(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{MaxConcurrent: 3}, zap.NewNop())

	items := []WorkItem[string]{
		{ID: "slow", Execute: func(ctx context.Context) (string, error) {
			time.Sleep(20 * time.Millisecond)
			return "first", nil
		}},
		{ID: "fast", Execute: func(ctx context.Context) (string, error) { return "second", nil }},
	}

	results := Process(context.Background(), pool, items)

	require.Len(t, results, 2)
	assert.Equal(t, "slow", results[0].ID)
	assert.Equal(t, "first", results[0].Result)
	assert.Equal(t, "fast", results[1].ID)
	assert.Equal(t, "second", results[1].Result)
}

func TestWorkerPool_Process_FailureDoesNotStopSiblings(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{MaxConcurrent: 2}, zap.NewNop())

	saveFailed := errors.New("connection reset")
	items := []WorkItem[string]{
		{ID: "objectives_goal", Execute: func(ctx context.Context) (string, error) { return "ok", nil }},
		{ID: "objectives_problem", Execute: func(ctx context.Context) (string, error) { return "", saveFailed }},
		{ID: "objectives_success", Execute: func(ctx context.Context) (string, error) { return "ok", nil }},
	}

	results := Process(context.Background(), pool, items)

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, saveFailed)
	assert.NoError(t, results[2].Err)
}

func TestWorkerPool_Process_EmptyItems(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{MaxConcurrent: 2}, zap.NewNop())

	assert.Nil(t, Process(context.Background(), pool, []WorkItem[int]{}))
}

func TestWorkerPool_Process_BoundsConcurrencyAcrossCalls(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{MaxConcurrent: 2}, zap.NewNop())

	var current, peak int32
	work := func(ctx context.Context) (int, error) {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return int(n), nil
	}

	items := make([]WorkItem[int], 4)
	for i := range items {
		items[i] = WorkItem[int]{ID: string(rune('a' + i)), Execute: work}
	}

	// Two wizards leaving a category at the same time share the pool.
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Len(t, Process(context.Background(), pool, items), 4)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestWorkerPool_Process_CancelledContext(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{MaxConcurrent: 1}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []WorkItem[string]{
		{ID: "a", Execute: func(ctx context.Context) (string, error) { return "", ctx.Err() }},
		{ID: "b", Execute: func(ctx context.Context) (string, error) { return "", ctx.Err() }},
	}

	results := Process(ctx, pool, items)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled, r.ID)
	}
}

func TestNewWorkerPool_DefaultsCapacity(t *testing.T) {
	assert.Equal(t, 8, NewWorkerPool(WorkerPoolConfig{}, zap.NewNop()).Capacity())
	assert.Equal(t, 3, NewWorkerPool(WorkerPoolConfig{MaxConcurrent: 3}, zap.NewNop()).Capacity())
}
