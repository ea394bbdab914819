package storage

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cached struct {
	next  WeightStorage
	cache *lru.Cache[string, []byte]
}

// NewCached keeps the size most recently used blobs in memory. Writes go
// through to next before the cache is updated.
func NewCached(next WeightStorage, size int) (WeightStorage, error) {
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}

	return &cached{next: next, cache: cache}, nil
}

func (c *cached) Write(ctx context.Context, key string, blob []byte) error {
	if err := c.next.Write(ctx, key, blob); err != nil {
		c.cache.Remove(key)

		return err
	}
	c.cache.Add(key, append([]byte(nil), blob...))

	return nil
}

func (c *cached) Read(ctx context.Context, key string) ([]byte, error) {
	if blob, ok := c.cache.Get(key); ok {
		return append([]byte(nil), blob...), nil
	}

	blob, err := c.next.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, append([]byte(nil), blob...))

	return blob, nil
}
