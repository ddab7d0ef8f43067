package suggestions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "briefs:suggestions:"

// RedisKey returns the hash holding a draft's suggestions, one field per question.
func RedisKey(draftID uuid.UUID) string {
	return fmt.Sprintf("%s%s", redisKeyPrefix, draftID)
}

// RedisCache keeps suggestions in memory and writes them through to a Redis
// hash so a resumed session on another instance sees them. Redis failures are
// logged and never surface to the caller; the in-memory copy stays authoritative
// for the lifetime of the session.
type RedisCache struct {
	local  *MemoryCache
	rdb    *redis.Client
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache creates a cache for one draft. A zero ttl keeps entries forever.
func NewRedisCache(rdb *redis.Client, draftID uuid.UUID, ttl time.Duration, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		local:  NewMemoryCache(),
		rdb:    rdb,
		key:    RedisKey(draftID),
		ttl:    ttl,
		logger: logger.Named("suggestion-cache").With(zap.String("draft_id", draftID.String())),
	}
}

func (c *RedisCache) Get(ctx context.Context, questionID string) (string, bool) {
	if text, ok := c.local.Get(ctx, questionID); ok {
		return text, true
	}

	text, err := c.rdb.HGet(ctx, c.key, questionID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		c.logger.Warn("Failed to read suggestion from Redis", zap.String("question_id", questionID), zap.Error(err))
		return "", false
	}
	c.local.Put(ctx, questionID, text)
	return text, true
}

func (c *RedisCache) Put(ctx context.Context, questionID, text string) {
	c.local.Put(ctx, questionID, text)

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, c.key, questionID, text)
	if c.ttl > 0 {
		pipe.Expire(ctx, c.key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Failed to write suggestion to Redis", zap.String("question_id", questionID), zap.Error(err))
	}
}

// Snapshot merges Redis entries under the local ones.
func (c *RedisCache) Snapshot(ctx context.Context) map[string]string {
	out, err := c.rdb.HGetAll(ctx, c.key).Result()
	if err != nil {
		c.logger.Warn("Failed to read suggestions from Redis", zap.Error(err))
		out = make(map[string]string)
	}
	for k, v := range c.local.Snapshot(ctx) {
		out[k] = v
	}
	return out
}

var _ Cache = (*RedisCache)(nil)
