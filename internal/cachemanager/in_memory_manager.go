package cachemanager

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/jacksonlee411/registry-console/internal/logging"
)

const DefaultExpiration = 10 * time.Minute
const DefaultCleanupInterval = 30 * time.Minute

// NewInMemoryCacheManager returns a go-cache backed manager. useCase is
// attached to log lines.
func NewInMemoryCacheManager[K ~string, V any](useCase string, defaultExpiration, cleanupInterval time.Duration) *InMemoryCacheManager[K, V] {
	return &InMemoryCacheManager[K, V]{
		useCase: useCase,
		cache:   gocache.New(defaultExpiration, cleanupInterval),
	}
}

type InMemoryCacheManager[K ~string, V any] struct {
	useCase string
	cache   *gocache.Cache
}

func (c *InMemoryCacheManager[K, V]) Get(_ context.Context, key K) (V, bool) {
	var zero V

	value, found := c.cache.Get(string(key))
	if !found {
		return zero, false
	}
	v, ok := value.(V)
	if !ok {
		logging.Error(logging.CatCache, "wrong type assertion when getting value", "use_case", c.useCase, "key", string(key))
		return zero, false
	}

	logging.Debug(logging.CatCache, "cache hit", "use_case", c.useCase, "key", string(key))
	return v, true
}

// Set stores value. A ttl <= 0 uses the manager's default expiration.
func (c *InMemoryCacheManager[K, V]) Set(_ context.Context, key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.cache.Set(string(key), value, ttl)
}

func (c *InMemoryCacheManager[K, V]) Delete(_ context.Context, keys ...K) {
	for _, key := range keys {
		c.cache.Delete(string(key))
	}
}

func (c *InMemoryCacheManager[K, V]) Flush(_ context.Context) {
	c.cache.Flush()
	logging.Debug(logging.CatCache, "cache flushed", "use_case", c.useCase)
}

func (c *InMemoryCacheManager[K, V]) Len() int {
	return c.cache.ItemCount()
}
