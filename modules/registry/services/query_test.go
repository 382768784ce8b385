package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/jacksonlee411/registry-console/modules/registry/domain/ports"
	"github.com/jacksonlee411/registry-console/pkg/httperr"
)

func TestBuildQuery_DefaultOrder(t *testing.T) {
	schema := builtin(t, "cancer")
	q, err := BuildQuery(schema, Filter{"municipio": "PASTO", "eps": " EPS1 ", "sexo": "  "})
	require.NoError(t, err)
	require.Equal(t, ports.Order{Field: "createdAt", Direction: ports.Desc}, q.Order)
	require.Equal(t, []ports.Constraint{
		{Field: "eps", Op: ports.OpEq, Value: "EPS1"},
		{Field: "municipio", Op: ports.OpEq, Value: "PASTO"},
	}, q.Constraints)
}

func TestBuildQuery_PrefixRange(t *testing.T) {
	schema := builtin(t, "ips")
	q, err := BuildQuery(schema, Filter{"nomIps": "CLIN", "municipio": "PASTO"})
	require.NoError(t, err)
	require.Equal(t, ports.Order{Field: "nomIps", Direction: ports.Asc}, q.Order)
	require.Equal(t, []ports.Constraint{
		{Field: "municipio", Op: ports.OpEq, Value: "PASTO"},
		{Field: "nomIps", Op: ports.OpGte, Value: "CLIN"},
		{Field: "nomIps", Op: ports.OpLt, Value: "CLIN\uf8ff"},
	}, q.Constraints)

	q, err = BuildQuery(schema, Filter{"nomIps": ""})
	require.NoError(t, err)
	require.Equal(t, "createdAt", q.Order.Field)
	require.Empty(t, q.Constraints)
}

func TestBuildQuery_RejectsUnfilterable(t *testing.T) {
	_, err := BuildQuery(builtin(t, "cancer"), Filter{"nombres": "ANA"})
	require.True(t, httperr.IsBadRequest(err))
}

func TestCacheKey(t *testing.T) {
	require.Equal(t, "{}", Filter{}.CacheKey())
	require.Equal(t, "{}", Filter(nil).CacheKey())
	require.Equal(t, `{"a":"1","b":"2"}`, Filter{"b": "2", "a": " 1 ", "c": ""}.CacheKey())
}

func TestFilterKeyStability(t *testing.T) {
	schema := builtin(t, "cancer")
	fields := schema.Filterable

	rapid.Check(t, func(rt *rapid.T) {
		type kv struct{ k, v string }
		var pairs []kv
		for _, f := range fields {
			if rapid.Bool().Draw(rt, "use_"+f) {
				pairs = append(pairs, kv{f, rapid.StringMatching(`[A-Z ]{0,6}`).Draw(rt, "v_"+f)})
			}
		}
		perm := rapid.Permutation(pairs).Draw(rt, "perm")

		a, b := Filter{}, Filter{}
		for _, p := range pairs {
			a[p.k] = p.v
		}
		for _, p := range perm {
			b[p.k] = p.v
		}
		if a.CacheKey() != b.CacheKey() {
			rt.Fatalf("keys differ: %s vs %s", a.CacheKey(), b.CacheKey())
		}
		qa, errA := BuildQuery(schema, a)
		qb, errB := BuildQuery(schema, b)
		if errA != nil || errB != nil {
			rt.Fatalf("errs=%v %v", errA, errB)
		}
		require.Equal(rt, qa, qb)
	})
}
