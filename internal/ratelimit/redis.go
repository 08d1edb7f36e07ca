package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounters implements CounterStore with a pipelined INCR + EXPIRE.
// Redis serializes the increments, which is the atomicity the limiter
// depends on; the EXPIRE is refreshed on every increment, which is harmless
// because the window number is part of the key.
type RedisCounters struct {
	client *redis.Client
}

func NewRedisCounters(client *redis.Client) *RedisCounters {
	return &RedisCounters{client: client}
}

func (c *RedisCounters) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := c.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis pipeline: %w", err)
	}
	return incr.Val(), nil
}

var _ CounterStore = (*RedisCounters)(nil)
