package services

import (
	"context"
	"time"

	"github.com/jacksonlee411/registry-console/internal/cachemanager"
	"github.com/jacksonlee411/registry-console/internal/logging"
	"github.com/jacksonlee411/registry-console/modules/registry/domain/types"
)

const allRecordsKey = "all"

// staleCountRetention is how long a count stays available to skip-count
// reads after its TTL has passed. Freshness is judged by the count TTL.
const staleCountRetention = 24 * time.Hour

type stamped[V any] struct {
	value V
	at    time.Time
}

// RegistryCache memoizes the all-records list and per-filter counts for one
// registry. An entry is valid while now-at < ttl. Every mutation must call
// Invalidate before returning.
type RegistryCache struct {
	allTTL   time.Duration
	countTTL time.Duration
	now      func() time.Time
	all      cachemanager.CacheManager[string, stamped[[]types.Record]]
	counts   cachemanager.CacheManager[string, stamped[int]]
	mirror   Mirror
}

func NewRegistryCache(schema types.Schema, mirror Mirror) *RegistryCache {
	return &RegistryCache{
		allTTL:   schema.AllTTL,
		countTTL: schema.CountTTL,
		now:      func() time.Time { return time.Now().UTC() },
		all:      cachemanager.NewInMemoryCacheManager[string, stamped[[]types.Record]](schema.Name+".all", schema.AllTTL, cachemanager.DefaultCleanupInterval),
		counts:   cachemanager.NewInMemoryCacheManager[string, stamped[int]](schema.Name+".counts", staleCountRetention, cachemanager.DefaultCleanupInterval),
		mirror:   mirror,
	}
}

// WithClock replaces the validity clock.
func (c *RegistryCache) WithClock(now func() time.Time) *RegistryCache {
	c.now = now
	return c
}

func (c *RegistryCache) fresh(at time.Time, ttl time.Duration) bool {
	return c.now().Sub(at) < ttl
}

func (c *RegistryCache) All(ctx context.Context) ([]types.Record, bool) {
	if s, ok := c.all.Get(ctx, allRecordsKey); ok && c.fresh(s.at, c.allTTL) {
		return s.value, true
	}
	if c.mirror == nil {
		return nil, false
	}
	records, at, ok, err := c.mirror.Load()
	if err != nil {
		logging.Warn(logging.CatCache, "mirror load failed", "err", err)
		return nil, false
	}
	if !ok || !c.fresh(at, c.allTTL) {
		return nil, false
	}
	c.all.Set(ctx, allRecordsKey, stamped[[]types.Record]{value: records, at: at}, c.allTTL)
	return records, true
}

func (c *RegistryCache) SetAll(ctx context.Context, records []types.Record) {
	at := c.now()
	c.all.Set(ctx, allRecordsKey, stamped[[]types.Record]{value: records, at: at}, c.allTTL)
	if c.mirror != nil {
		if err := c.mirror.Save(records, at); err != nil {
			logging.Warn(logging.CatCache, "mirror save failed", "err", err)
		}
	}
}

// Count returns the cached count for key. With allowStale, a count older
// than the count TTL is returned too, as long as it is retained.
func (c *RegistryCache) Count(ctx context.Context, key string, allowStale bool) (int, bool) {
	s, ok := c.counts.Get(ctx, key)
	if !ok {
		return 0, false
	}
	if !allowStale && !c.fresh(s.at, c.countTTL) {
		return 0, false
	}
	return s.value, true
}

func (c *RegistryCache) SetCount(ctx context.Context, key string, n int) {
	c.counts.Set(ctx, key, stamped[int]{value: n, at: c.now()}, staleCountRetention)
}

// Invalidate clears both caches and the persisted mirror.
func (c *RegistryCache) Invalidate(ctx context.Context) {
	c.all.Flush(ctx)
	c.counts.Flush(ctx)
	if c.mirror != nil {
		if err := c.mirror.Remove(); err != nil {
			logging.Warn(logging.CatCache, "mirror remove failed", "err", err)
		}
	}
}
