package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheStore implements Store on a memcached connection.
type MemcacheStore struct {
	client *memcache.Client
}

func NewMemcacheStore(client *memcache.Client) *MemcacheStore {
	return &MemcacheStore{client: client}
}

func (s *MemcacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	item, err := s.client.Get(key)
	if err == memcache.ErrCacheMiss {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("memcache get: %w", err)
	}
	return item.Value, true, nil
}

func (s *MemcacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	seconds := int32(ttl.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	err := s.client.Set(&memcache.Item{Key: key, Value: value, Expiration: seconds})
	if err != nil {
		return fmt.Errorf("memcache set: %w", err)
	}
	return nil
}

func (s *MemcacheStore) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := s.client.Delete(key); err != nil && err != memcache.ErrCacheMiss {
			return fmt.Errorf("memcache delete: %w", err)
		}
	}
	return nil
}

var _ Store = (*MemcacheStore)(nil)
