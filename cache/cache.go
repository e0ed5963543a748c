// Package cache provides named byte caches and an advisor caching method results.
package cache

import (
	"context"
	"time"
)

// Cache is a named byte cache. A zero ttl keeps the entry until evicted.
type Cache interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Evict(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Backend creates the cache for a name.
type Backend func(name string) (Cache, error)
