package services

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/jacksonlee411/registry-console/modules/registry/domain/ports"
	"github.com/jacksonlee411/registry-console/modules/registry/domain/types"
	"github.com/jacksonlee411/registry-console/pkg/httperr"
)

// prefixSentinel closes the half-open prefix range [v, v+sentinel).
const prefixSentinel = "\uf8ff"

// Filter maps field names to equality values (or the prefix value for the
// schema's prefix field). Empty values mean no constraint.
type Filter map[string]string

// Normalized returns a copy with trimmed values and empty entries removed.
func (f Filter) Normalized() Filter {
	out := make(Filter, len(f))
	for k, v := range f {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// CacheKey is the canonical serialization of the filter: sorted keys,
// empty values dropped.
func (f Filter) CacheKey() string {
	// encoding/json writes map keys sorted.
	b, _ := json.Marshal(map[string]string(f.Normalized()))
	return string(b)
}

// BuildConstraints turns a filter into deterministic constraints: equality
// on each filterable field sorted by name, then the prefix range if set.
func BuildConstraints(schema types.Schema, f Filter) ([]ports.Constraint, error) {
	f = f.Normalized()
	names := make([]string, 0, len(f))
	for k := range f {
		if !schema.IsFilterable(k) {
			return nil, httperr.NewBadRequest("field is not filterable: " + k)
		}
		if k != schema.PrefixField {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	cs := make([]ports.Constraint, 0, len(names)+2)
	for _, k := range names {
		cs = append(cs, ports.Constraint{Field: k, Op: ports.OpEq, Value: f[k]})
	}
	if prefix, ok := f[schema.PrefixField]; ok && schema.PrefixField != "" {
		cs = append(cs,
			ports.Constraint{Field: schema.PrefixField, Op: ports.OpGte, Value: prefix},
			ports.Constraint{Field: schema.PrefixField, Op: ports.OpLt, Value: prefix + prefixSentinel},
		)
	}
	return cs, nil
}

// BuildQuery adds the ordering to BuildConstraints: newest first by
// default, or ascending by the prefix field when a prefix is active.
func BuildQuery(schema types.Schema, f Filter) (ports.Query, error) {
	cs, err := BuildConstraints(schema, f)
	if err != nil {
		return ports.Query{}, err
	}
	q := ports.Query{
		Constraints: cs,
		Order:       ports.Order{Field: types.FieldCreatedAt, Direction: ports.Desc},
	}
	if schema.PrefixField != "" {
		if _, ok := f.Normalized()[schema.PrefixField]; ok {
			q.Order = ports.Order{Field: schema.PrefixField, Direction: ports.Asc}
		}
	}
	return q, nil
}
