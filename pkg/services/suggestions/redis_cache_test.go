//go:build integration

package suggestions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-briefs/pkg/testhelpers"
)

func TestRedisCache_WriteThroughAndResume(t *testing.T) {
	r := testhelpers.GetTestRedis(t)
	ctx := context.Background()
	draftID := uuid.New()
	t.Cleanup(func() { r.Client.Del(ctx, RedisKey(draftID)) })

	first := NewRedisCache(r.Client, draftID, time.Hour, zap.NewNop())
	first.Put(ctx, "objectives_goal", "Grow bookings")
	first.Put(ctx, "objectives_goal", "Double bookings")
	first.Put(ctx, "audience_primary", "Pet owners")

	ttl, err := r.Client.TTL(ctx, RedisKey(draftID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	// a new session on another instance sees the same suggestions
	resumed := NewRedisCache(r.Client, draftID, time.Hour, zap.NewNop())
	text, ok := resumed.Get(ctx, "objectives_goal")
	require.True(t, ok)
	assert.Equal(t, "Double bookings", text)

	assert.Equal(t, map[string]string{
		"objectives_goal":  "Double bookings",
		"audience_primary": "Pet owners",
	}, resumed.Snapshot(ctx))

	_, ok = resumed.Get(ctx, "brand_voice")
	assert.False(t, ok)
}

func TestRedisCache_RedisDownFallsBackToMemory(t *testing.T) {
	r := testhelpers.GetTestRedis(t)
	ctx := context.Background()

	// a client pointed at a closed port
	cache := NewRedisCache(r.Client, uuid.New(), time.Minute, zap.NewNop())
	cache.rdb = newUnreachableClient()

	cache.Put(ctx, "q1", "kept locally")
	text, ok := cache.Get(ctx, "q1")
	require.True(t, ok)
	assert.Equal(t, "kept locally", text)
	assert.Equal(t, map[string]string{"q1": "kept locally"}, cache.Snapshot(ctx))
}

func newUnreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
}
