package cachemanager

import (
	"context"
	"errors"
	"sync"
	"time"
)

// maxLoadAttempts bounds how often Get reloads a key that keeps being
// invalidated while it loads.
const maxLoadAttempts = 3

// ErrInvalidatedDuringLoad is returned when every load attempt raced with
// Forget.
var ErrInvalidatedDuringLoad = errors.New("cachemanager: key invalidated during load")

// ReadThroughCache loads missing keys through fn and stores the result.
// Errors are never cached. A load that overlaps Forget of the same key is
// discarded, so an invalidated value is never written back.
type ReadThroughCache[K ~string, V any, I any] struct {
	cache CacheManager[K, V]
	fn    func(ctx context.Context, input I) (V, error)
	ttl   time.Duration

	mu       sync.Mutex
	epoch    uint64
	gens     map[K]uint64
	onStore  func(ctx context.Context, key K, value V) error
	onForget func(ctx context.Context, key K)
}

func NewReadThroughCache[K ~string, V any, I any](
	cache CacheManager[K, V],
	fn func(ctx context.Context, input I) (V, error),
	ttl time.Duration,
) *ReadThroughCache[K, V, I] {
	return &ReadThroughCache[K, V, I]{cache: cache, fn: fn, ttl: ttl, gens: map[K]uint64{}}
}

// OnStore registers a hook run under the cache lock right before a loaded
// value is cached. A hook error aborts the store.
func (r *ReadThroughCache[K, V, I]) OnStore(fn func(ctx context.Context, key K, value V) error) *ReadThroughCache[K, V, I] {
	r.onStore = fn
	return r
}

// OnForget registers a hook run under the cache lock for every forgotten key.
func (r *ReadThroughCache[K, V, I]) OnForget(fn func(ctx context.Context, key K)) *ReadThroughCache[K, V, I] {
	r.onForget = fn
	return r
}

func (r *ReadThroughCache[K, V, I]) Get(ctx context.Context, key K, input I) (V, error) {
	var zero V
	for attempt := 0; attempt < maxLoadAttempts; attempt++ {
		if value, ok := r.cache.Get(ctx, key); ok {
			return value, nil
		}

		gen := r.generation(key)
		value, err := r.fn(ctx, input)
		if err != nil {
			return zero, err
		}

		r.mu.Lock()
		if r.epoch+r.gens[key] != gen {
			r.mu.Unlock()
			continue
		}
		if r.onStore != nil {
			if err := r.onStore(ctx, key, value); err != nil {
				r.mu.Unlock()
				return zero, err
			}
		}
		r.cache.Set(ctx, key, value, r.ttl)
		r.mu.Unlock()
		return value, nil
	}
	return zero, ErrInvalidatedDuringLoad
}

func (r *ReadThroughCache[K, V, I]) generation(key K) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epoch + r.gens[key]
}

func (r *ReadThroughCache[K, V, I]) Forget(ctx context.Context, keys ...K) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		r.gens[k]++
		r.cache.Delete(ctx, k)
		if r.onForget != nil {
			r.onForget(ctx, k)
		}
	}
}

// ForgetAll drops every entry. OnForget is not called since the keys are
// unknown.
func (r *ReadThroughCache[K, V, I]) ForgetAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epoch++
	r.cache.Flush(ctx)
}
