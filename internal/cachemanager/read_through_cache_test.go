package cachemanager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadThroughCache_LoadsOnce(t *testing.T) {
	ctx := context.Background()
	calls := 0
	rt := NewReadThroughCache[string, []string, string](
		NewInMemoryCacheManager[string, []string]("perms", DefaultExpiration, DefaultCleanupInterval),
		func(_ context.Context, role string) ([]string, error) {
			calls++
			return []string{role + ".view"}, nil
		},
		DefaultExpiration,
	)

	got, err := rt.Get(ctx, "editor", "cancer")
	require.NoError(t, err)
	require.Equal(t, []string{"cancer.view"}, got)

	got, err = rt.Get(ctx, "editor", "ignored")
	require.NoError(t, err)
	require.Equal(t, []string{"cancer.view"}, got)
	require.Equal(t, 1, calls)

	rt.Forget(ctx, "editor")
	_, err = rt.Get(ctx, "editor", "ips")
	require.NoError(t, err)
	require.Equal(t, 2, calls)

	rt.ForgetAll(ctx)
	_, err = rt.Get(ctx, "editor", "ips")
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestReadThroughCache_ErrorsNotCached(t *testing.T) {
	ctx := context.Background()
	calls := 0
	rt := NewReadThroughCache[string, int, struct{}](
		NewInMemoryCacheManager[string, int]("counts", DefaultExpiration, DefaultCleanupInterval),
		func(context.Context, struct{}) (int, error) {
			calls++
			if calls == 1 {
				return 0, errors.New("boom")
			}
			return 42, nil
		},
		DefaultExpiration,
	)

	_, err := rt.Get(ctx, "k", struct{}{})
	require.Error(t, err)

	got, err := rt.Get(ctx, "k", struct{}{})
	require.NoError(t, err)
	require.Equal(t, 42, got)
	require.Equal(t, 2, calls)
}

func TestReadThroughCache_ForgetDuringLoadDiscardsValue(t *testing.T) {
	ctx := context.Background()
	var (
		mu      sync.Mutex
		version = 1
		calls   int
	)
	loaded := make(chan struct{})
	release := make(chan struct{})
	var stored, forgotten []string

	rt := NewReadThroughCache[string, int, struct{}](
		NewInMemoryCacheManager[string, int]("roles", DefaultExpiration, DefaultCleanupInterval),
		func(context.Context, struct{}) (int, error) {
			mu.Lock()
			v := version
			calls++
			first := calls == 1
			mu.Unlock()
			if first {
				close(loaded)
				<-release
			}
			return v, nil
		},
		DefaultExpiration,
	).OnStore(func(_ context.Context, key string, v int) error {
		stored = append(stored, fmt.Sprintf("%s=%d", key, v))
		return nil
	}).OnForget(func(_ context.Context, key string) {
		forgotten = append(forgotten, key)
	})

	done := make(chan int)
	go func() {
		v, _ := rt.Get(ctx, "clerk", struct{}{})
		done <- v
	}()

	<-loaded
	mu.Lock()
	version = 2
	mu.Unlock()
	rt.Forget(ctx, "clerk")
	close(release)

	require.Equal(t, 2, <-done)
	require.Equal(t, []string{"clerk=2"}, stored)
	require.Equal(t, []string{"clerk"}, forgotten)

	got, err := rt.Get(ctx, "clerk", struct{}{})
	require.NoError(t, err)
	require.Equal(t, 2, got)
	require.Equal(t, 2, calls)
}

func TestReadThroughCache_StoreHookErrorNotCached(t *testing.T) {
	ctx := context.Background()
	fail := true
	rt := NewReadThroughCache[string, int, struct{}](
		NewInMemoryCacheManager[string, int]("roles", DefaultExpiration, DefaultCleanupInterval),
		func(context.Context, struct{}) (int, error) { return 7, nil },
		DefaultExpiration,
	).OnStore(func(context.Context, string, int) error {
		if fail {
			return errors.New("policy")
		}
		return nil
	})

	_, err := rt.Get(ctx, "k", struct{}{})
	require.Error(t, err)
	fail = false
	got, err := rt.Get(ctx, "k", struct{}{})
	require.NoError(t, err)
	require.Equal(t, 7, got)
}
