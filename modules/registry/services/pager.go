package services

import (
	"context"
	"errors"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jacksonlee411/registry-console/internal/tracing"
	"github.com/jacksonlee411/registry-console/modules/registry/domain/ports"
	"github.com/jacksonlee411/registry-console/modules/registry/domain/types"
	"github.com/jacksonlee411/registry-console/pkg/httperr"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = ports.MaxBatchOps
)

type PageRequest struct {
	PageSize int
	// After is the cursor of the last document of the previous page; nil
	// starts from the beginning.
	After  ports.Cursor
	Filter Filter
	// SkipCount reuses the last known count for the filter when one is cached.
	SkipCount bool

	noCount bool
}

// PageResult.HasMore is true iff the page is full. When exactly PageSize
// documents remain, HasMore stays true until the following, empty page.
type PageResult struct {
	Records    []types.Record
	TotalCount int
	Cursor     ports.Cursor
	HasMore    bool
}

func NormalizePageSize(n int) (int, error) {
	switch {
	case n == 0:
		return DefaultPageSize, nil
	case n < 0 || n > MaxPageSize:
		return 0, httperr.NewBadRequest("page_size must be between 1 and " + strconv.Itoa(MaxPageSize))
	}
	return n, nil
}

func (s *Service) FetchPage(ctx context.Context, req PageRequest) (result PageResult, err error) {
	ctx, span := tracing.Start(ctx, "registry.fetch_page",
		attribute.String("registry", s.schema.Name),
		attribute.Int("page_size", req.PageSize),
		attribute.Bool("after", req.After != nil),
	)
	defer func() { tracing.End(span, err) }()

	size, err := NormalizePageSize(req.PageSize)
	if err != nil {
		return PageResult{}, err
	}
	q, err := BuildQuery(s.schema, req.Filter)
	if err != nil {
		return PageResult{}, err
	}
	q.Limit = size
	q.After = req.After

	hits, err := s.store.Query(ctx, s.schema.Collection, q)
	if errors.Is(err, ports.ErrInvalidCursor) {
		return PageResult{}, httperr.NewBadRequest("cursor does not match the current filter")
	}
	if err != nil {
		return PageResult{}, err
	}

	result.Records = make([]types.Record, 0, len(hits))
	for _, h := range hits {
		result.Records = append(result.Records, Decode(s.schema, h.Document))
	}
	if len(hits) > 0 {
		result.Cursor = hits[len(hits)-1].Cursor
	}
	result.HasMore = len(hits) == size

	if !req.noCount {
		result.TotalCount, err = s.count(ctx, req.Filter, q.Constraints, req.SkipCount, false)
		if err != nil {
			return PageResult{}, err
		}
	}
	return result, nil
}

// Count returns the number of records matching filter, cached per filter
// signature for the schema's count TTL.
func (s *Service) Count(ctx context.Context, filter Filter, forceRefresh bool) (int, error) {
	cs, err := BuildConstraints(s.schema, filter)
	if err != nil {
		return 0, err
	}
	return s.count(ctx, filter, cs, false, forceRefresh)
}

func (s *Service) count(ctx context.Context, filter Filter, cs []ports.Constraint, reuse bool, forceRefresh bool) (n int, err error) {
	key := filter.CacheKey()
	if !forceRefresh {
		if cached, ok := s.cache.Count(ctx, key, reuse); ok {
			return cached, nil
		}
	}

	ctx, span := tracing.Start(ctx, "registry.count", attribute.String("registry", s.schema.Name))
	defer func() { tracing.End(span, err) }()

	n, err = s.store.Count(ctx, s.schema.Collection, cs)
	if err != nil {
		return 0, err
	}
	s.cache.SetCount(ctx, key, n)
	return n, nil
}
