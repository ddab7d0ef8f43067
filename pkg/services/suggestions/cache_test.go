package suggestions

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCache_LastWriterWins(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_, ok := c.Get(ctx, "q1")
	assert.False(t, ok)

	c.Put(ctx, "q1", "first")
	c.Put(ctx, "q1", "second")

	text, ok := c.Get(ctx, "q1")
	assert.True(t, ok)
	assert.Equal(t, "second", text)
}

func TestMemoryCache_SnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	c.Put(ctx, "q1", "one")

	snap := c.Snapshot(ctx)
	snap["q1"] = "mutated"
	snap["q2"] = "added"

	text, _ := c.Get(ctx, "q1")
	assert.Equal(t, "one", text)
	_, ok := c.Get(ctx, "q2")
	assert.False(t, ok)
}

func TestMemoryCache_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Put(ctx, fmt.Sprintf("q%d", i%5), fmt.Sprintf("v%d", i))
		}(i)
	}
	wg.Wait()

	assert.Len(t, c.Snapshot(ctx), 5)
}
