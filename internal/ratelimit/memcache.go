package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheCounters implements CounterStore with memcached's Add/Increment
// pair: Add creates the counter with the window's expiry, and when the key
// already exists, Increment bumps it. Increment does not touch the TTL, so
// the window is pinned by the first request in it.
type MemcacheCounters struct {
	client *memcache.Client
}

func NewMemcacheCounters(client *memcache.Client) *MemcacheCounters {
	return &MemcacheCounters{client: client}
}

func (c *MemcacheCounters) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	seconds := int32(ttl.Seconds())
	if seconds < 1 {
		seconds = 1
	}

	err := c.client.Add(&memcache.Item{Key: key, Value: []byte("1"), Expiration: seconds})
	if err == nil {
		return 1, nil
	}
	if err != memcache.ErrNotStored {
		return 0, fmt.Errorf("memcache add: %w", err)
	}

	count, err := c.client.Increment(key, 1)
	if err != nil {
		return 0, fmt.Errorf("memcache increment: %w", err)
	}
	return int64(count), nil
}

var _ CounterStore = (*MemcacheCounters)(nil)
