package stock

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const statsCacheKey = "meridian:inventory:stats"

// RedisStatsCache keeps the stats aggregate in Redis with a short TTL so
// repeated dashboard polls skip the aggregate query. Writers drop the key
// after commit; the TTL covers anything that slips through.
type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatsCache constructs the cache. A zero ttl defaults to 30s.
func NewRedisStatsCache(client *redis.Client, ttl time.Duration) *RedisStatsCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisStatsCache{client: client, ttl: ttl}
}

func (c *RedisStatsCache) Get(ctx context.Context) (InventoryStats, bool) {
	data, err := c.client.Get(ctx, statsCacheKey).Bytes()
	if err != nil {
		return InventoryStats{}, false
	}
	var stats InventoryStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return InventoryStats{}, false
	}
	return stats, true
}

func (c *RedisStatsCache) Set(ctx context.Context, stats InventoryStats) {
	data, err := json.Marshal(stats)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, statsCacheKey, data, c.ttl).Err()
}

func (c *RedisStatsCache) Invalidate(ctx context.Context) {
	_ = c.client.Del(ctx, statsCacheKey).Err()
}
