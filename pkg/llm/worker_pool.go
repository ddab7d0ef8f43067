package llm

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// WorkerPoolConfig configures the worker pool.
type WorkerPoolConfig struct {
	MaxConcurrent int // Maximum concurrent calls (default: 8)
}

// DefaultWorkerPoolConfig returns sensible defaults.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		MaxConcurrent: 8,
	}
}

// WorkerPool runs independent calls with bounded parallelism and waits for
// all of them to settle. One failing or slow item never cancels its siblings.
// The slots are shared by every Process call on the same pool.
type WorkerPool struct {
	slots  chan struct{}
	logger *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(config WorkerPoolConfig, logger *zap.Logger) *WorkerPool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultWorkerPoolConfig().MaxConcurrent
	}
	return &WorkerPool{
		slots:  make(chan struct{}, config.MaxConcurrent),
		logger: logger.Named("worker-pool"),
	}
}

// Capacity is the number of calls that may run at once.
func (p *WorkerPool) Capacity() int {
	return cap(p.slots)
}

// WorkItem is one independent call.
type WorkItem[T any] struct {
	ID      string
	Execute func(ctx context.Context) (T, error)
}

// WorkResult is the settled outcome of a work item.
type WorkResult[T any] struct {
	ID     string
	Result T
	Err    error
}

// Process runs every item and returns once all have settled. Results are in
// submission order. Items still waiting for a slot when ctx ends settle with
// ctx.Err() without running.
func Process[T any](ctx context.Context, pool *WorkerPool, items []WorkItem[T]) []WorkResult[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]WorkResult[T], len(items))
	start := time.Now()

	var wg sync.WaitGroup
	for i, item := range items {
		results[i].ID = item.ID
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case pool.slots <- struct{}{}:
				defer func() { <-pool.slots }()
			case <-ctx.Done():
				results[i].Err = ctx.Err()
				return
			}

			results[i].Result, results[i].Err = item.Execute(ctx)
			if results[i].Err != nil {
				pool.logger.Debug("Work item failed", zap.String("id", item.ID), zap.Error(results[i].Err))
			}
		}()
	}
	wg.Wait()

	pool.logger.Debug("Work items settled",
		zap.Int("count", len(items)),
		zap.Duration("duration", time.Since(start)))
	return results
}
