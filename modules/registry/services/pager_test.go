package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/jacksonlee411/registry-console/modules/registry/domain/ports"
	"github.com/jacksonlee411/registry-console/modules/registry/infrastructure/persistence"
	"github.com/jacksonlee411/registry-console/pkg/httperr"
)

func seedCancer(t testingT, store *persistence.MemoryStore, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		d, err := store.Insert(context.Background(), "cancer_cases", cancerRow(fmt.Sprint(1000+i)))
		require.NoError(t, err)
		ids = append(ids, d.ID)
	}
	return ids
}

func reversed(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}

func recordIDs(p PageResult) []string {
	out := make([]string, 0, len(p.Records))
	for _, r := range p.Records {
		out = append(out, r.ID)
	}
	return out
}

func TestFetchPage_HasMoreHeuristic(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, "cancer")
	seedCancer(t, store, 4)

	first, err := svc.FetchPage(ctx, PageRequest{PageSize: 2})
	require.NoError(t, err)
	require.True(t, first.HasMore)
	require.Equal(t, 4, first.TotalCount)

	second, err := svc.FetchPage(ctx, PageRequest{PageSize: 2, After: first.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Records, 2)
	require.True(t, second.HasMore, "exactly pageSize remaining still reports HasMore")

	third, err := svc.FetchPage(ctx, PageRequest{PageSize: 2, After: second.Cursor})
	require.NoError(t, err)
	require.Empty(t, third.Records)
	require.False(t, third.HasMore)
	require.Nil(t, third.Cursor)
}

func TestFetchPage_PageSizeBounds(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, "cancer")

	_, err := svc.FetchPage(ctx, PageRequest{PageSize: MaxPageSize + 1})
	require.True(t, httperr.IsBadRequest(err))
	_, err = svc.FetchPage(ctx, PageRequest{PageSize: -1})
	require.True(t, httperr.IsBadRequest(err))

	n, err := NormalizePageSize(0)
	require.NoError(t, err)
	require.Equal(t, DefaultPageSize, n)
}

func TestFetchPage_ForeignCursorIsBadRequest(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, "ips")
	for _, name := range []string{"CLINICA A", "CLINICA B"} {
		_, err := store.Insert(ctx, "ips_providers", map[string]any{"codigoHabilitacion": "1", "nomIps": name})
		require.NoError(t, err)
	}
	page, err := svc.FetchPage(ctx, PageRequest{PageSize: 1})
	require.NoError(t, err)

	_, err = svc.FetchPage(ctx, PageRequest{PageSize: 1, After: page.Cursor, Filter: Filter{"nomIps": "CLIN"}})
	require.True(t, httperr.IsBadRequest(err))
}

func TestFetchPage_PrefixFilterOrdering(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, "ips")
	for _, name := range []string{"CLINICA ZETA", "HOSPITAL SAN PEDRO", "CLINICA ALFA", "CENTRO MEDICO", "CLIN"} {
		_, err := store.Insert(ctx, "ips_providers", map[string]any{"codigoHabilitacion": "1", "nomIps": name})
		require.NoError(t, err)
	}

	page, err := svc.FetchPage(ctx, PageRequest{PageSize: 10, Filter: Filter{"nomIps": "CLIN"}})
	require.NoError(t, err)
	var names []string
	for _, r := range page.Records {
		names = append(names, r.String("nomIps"))
	}
	require.Equal(t, []string{"CLIN", "CLINICA ALFA", "CLINICA ZETA"}, names)
	require.Equal(t, 3, page.TotalCount)
}

func TestFetchPage_SkipCountReusesKnownCount(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, "cancer")
	seedCancer(t, store, 3)

	first, err := svc.FetchPage(ctx, PageRequest{PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, 3, first.TotalCount)

	// Writing behind the service's back keeps the cached count.
	seedCancer(t, store, 1)
	second, err := svc.FetchPage(ctx, PageRequest{PageSize: 2, After: first.Cursor, SkipCount: true})
	require.NoError(t, err)
	require.Equal(t, 3, second.TotalCount)

	n, err := svc.Count(ctx, nil, true)
	require.NoError(t, err)
	require.Equal(t, 4, n)
}

func TestNavigator_ReplayIdempotence(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, "cancer")
	seedCancer(t, store, 7)

	nav := NewNavigator(svc, 3, nil)
	p0, err := nav.Current(ctx)
	require.NoError(t, err)
	p1, err := nav.Next(ctx)
	require.NoError(t, err)
	p2, err := nav.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, nav.Page())
	require.Len(t, p2.Records, 1)

	back1, err := nav.Prev(ctx)
	require.NoError(t, err)
	back0, err := nav.Prev(ctx)
	require.NoError(t, err)
	require.Equal(t, recordIDs(p1), recordIDs(back1))
	require.Equal(t, recordIDs(p0), recordIDs(back0))
	require.Equal(t, 0, nav.Page())

	again, err := nav.Prev(ctx)
	require.NoError(t, err)
	require.Equal(t, recordIDs(p0), recordIDs(again))
}

func TestNavigator_ResetClearsHistory(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, "cancer")
	seedCancer(t, store, 5)

	nav := NewNavigator(svc, 2, nil)
	_, err := nav.Next(ctx)
	require.NoError(t, err)
	_, err = nav.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, nav.Page())

	nav.Reset(2, Filter{"municipio": "PASTO"})
	require.Equal(t, 0, nav.Page())
	require.Equal(t, []ports.Cursor{nil}, nav.History())
}

func TestNavigator_NextStopsAtEnd(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, "cancer")
	seedCancer(t, store, 2)

	nav := NewNavigator(svc, 5, nil)
	first, err := nav.Current(ctx)
	require.NoError(t, err)
	require.False(t, first.HasMore)

	same, err := nav.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, nav.Page())
	require.Equal(t, recordIDs(first), recordIDs(same))
}

func TestPaginationCoverage(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 40).Draw(rt, "n")
		size := rapid.IntRange(1, 12).Draw(rt, "size")

		ctx := context.Background()
		svc, store, _ := newTestService(rt, "cancer")
		want := reversed(seedCancer(rt, store, n))

		nav := NewNavigator(svc, size, nil)
		page, err := nav.Current(ctx)
		if err != nil {
			rt.Fatal(err)
		}
		got := []string{}
		fetches := 1
		got = append(got, recordIDs(page)...)
		for page.HasMore {
			if page, err = nav.Next(ctx); err != nil {
				rt.Fatal(err)
			}
			fetches++
			got = append(got, recordIDs(page)...)
		}

		require.Equal(rt, want, got)
		wantFetches := n/size + 1
		if fetches != wantFetches {
			rt.Fatalf("n=%d size=%d fetches=%d want %d", n, size, fetches, wantFetches)
		}
	})
}
