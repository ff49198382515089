package persistence

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/metricas-service/internal/domain"
)

const (
	aggregateCacheKey = "metricas:global_average"
	aggregateCacheTTL = 30 * time.Second
)

// AggregateCache caches the team-wide average in Redis. The store
// remains the source of truth; every cache path is best-effort and a
// miss or Redis failure just falls through to the database.
type AggregateCache struct {
	redis  *Redis
	logger *zap.Logger
}

// NewAggregateCache builds a cache over the shared Redis client.
func NewAggregateCache(redis *Redis, logger *zap.Logger) *AggregateCache {
	return &AggregateCache{redis: redis, logger: logger}
}

// Get returns the cached aggregate, if present.
func (c *AggregateCache) Get(ctx context.Context) (*domain.AggregateMetrics, bool) {
	if c == nil || c.redis == nil || c.redis.Client == nil {
		return nil, false
	}
	payload, err := c.redis.Client.Get(ctx, aggregateCacheKey).Bytes()
	if err != nil {
		return nil, false
	}
	var agg domain.AggregateMetrics
	if err := json.Unmarshal(payload, &agg); err != nil {
		c.logger.Debug("discarding unreadable aggregate cache entry", zap.Error(err))
		return nil, false
	}
	return &agg, true
}

// Set stores the aggregate with a short TTL.
func (c *AggregateCache) Set(ctx context.Context, agg *domain.AggregateMetrics) {
	if c == nil || c.redis == nil || c.redis.Client == nil || agg == nil {
		return
	}
	payload, err := json.Marshal(agg)
	if err != nil {
		return
	}
	if err := c.redis.Client.Set(ctx, aggregateCacheKey, payload, aggregateCacheTTL).Err(); err != nil {
		c.logger.Debug("aggregate cache set failed", zap.Error(err))
	}
}

// Invalidate drops the cached aggregate after any snapshot write.
func (c *AggregateCache) Invalidate(ctx context.Context) {
	if c == nil || c.redis == nil || c.redis.Client == nil {
		return
	}
	if err := c.redis.Client.Del(ctx, aggregateCacheKey).Err(); err != nil {
		c.logger.Debug("aggregate cache invalidation failed", zap.Error(err))
	}
}
