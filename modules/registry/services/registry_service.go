package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jacksonlee411/registry-console/internal/logging"
	activitytypes "github.com/jacksonlee411/registry-console/modules/activity/domain/types"
	"github.com/jacksonlee411/registry-console/modules/registry/domain/ports"
	"github.com/jacksonlee411/registry-console/modules/registry/domain/types"
	"github.com/jacksonlee411/registry-console/pkg/httperr"
)

// Auditor receives one entry per significant mutation. It must not fail the
// caller.
type Auditor interface {
	Record(ctx context.Context, e activitytypes.Entry)
}

type nopAuditor struct{}

func (nopAuditor) Record(context.Context, activitytypes.Entry) {}

// Service is the registry engine for one schema: CRUD, paging, bulk
// operations and the cache policy.
type Service struct {
	schema types.Schema
	store  ports.DocumentStore
	cache  *RegistryCache
	rules  *RuleSet
	audit  Auditor
}

type Option func(*Service)

func WithAuditor(a Auditor) Option {
	return func(s *Service) {
		if a != nil {
			s.audit = a
		}
	}
}

func WithCache(c *RegistryCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

func NewService(schema types.Schema, store ports.DocumentStore, opts ...Option) (*Service, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	rules, err := CompileRules(schema)
	if err != nil {
		return nil, err
	}
	s := &Service{schema: schema, store: store, rules: rules, audit: nopAuditor{}}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = NewRegistryCache(schema, nil)
	}
	return s, nil
}

func (s *Service) Schema() types.Schema { return s.schema }

func (s *Service) Cache() *RegistryCache { return s.cache }

func (s *Service) Get(ctx context.Context, id string) (types.Record, error) {
	doc, err := s.store.Get(ctx, s.schema.Collection, id)
	if err != nil {
		return types.Record{}, s.storeErr(err, id)
	}
	return Decode(s.schema, doc), nil
}

func (s *Service) Create(ctx context.Context, actor activitytypes.Actor, input map[string]any) (types.Record, error) {
	fields, err := s.encode(input, true)
	if err != nil {
		return types.Record{}, err
	}
	if violations := s.rules.Check(fields); len(violations) > 0 {
		return types.Record{}, httperr.NewBadRequest(strings.Join(violations, "; "))
	}

	doc, err := s.store.Insert(ctx, s.schema.Collection, fields)
	if err != nil {
		return types.Record{}, err
	}
	s.cache.Invalidate(ctx)
	rec := Decode(s.schema, doc)
	s.record(ctx, actor, activitytypes.Entry{
		Action:      activitytypes.ActionCreate,
		Description: "registro creado en " + s.schema.Title,
		TargetID:    rec.ID,
		TargetName:  s.targetName(rec),
	})
	return rec, nil
}

// Update merges partial into the stored record. id, createdAt and updatedAt
// in the payload are ignored.
func (s *Service) Update(ctx context.Context, actor activitytypes.Actor, id string, partial map[string]any) (types.Record, error) {
	fields, err := s.encode(partial, false)
	if err != nil {
		return types.Record{}, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return types.Record{}, err
	}
	merged := make(map[string]any, len(current.Fields))
	for k, v := range current.Fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	if violations := s.rules.Check(merged); len(violations) > 0 {
		return types.Record{}, httperr.NewBadRequest(strings.Join(violations, "; "))
	}

	doc, err := s.store.Update(ctx, s.schema.Collection, id, fields)
	if err != nil {
		return types.Record{}, s.storeErr(err, id)
	}
	s.cache.Invalidate(ctx)
	rec := Decode(s.schema, doc)
	changed := make([]string, 0, len(fields))
	for k := range fields {
		changed = append(changed, k)
	}
	sort.Strings(changed)
	s.record(ctx, actor, activitytypes.Entry{
		Action:      activitytypes.ActionUpdate,
		Description: "registro actualizado en " + s.schema.Title,
		Details:     map[string]any{"fields": changed},
		TargetID:    rec.ID,
		TargetName:  s.targetName(rec),
	})
	return rec, nil
}

func (s *Service) Delete(ctx context.Context, actor activitytypes.Actor, id string) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, s.schema.Collection, id); err != nil {
		return s.storeErr(err, id)
	}
	s.cache.Invalidate(ctx)
	s.record(ctx, actor, activitytypes.Entry{
		Action:      activitytypes.ActionDelete,
		Description: "registro eliminado de " + s.schema.Title,
		TargetID:    id,
		TargetName:  s.targetName(current),
	})
	return nil
}

// All returns every record, newest first, from the cache unless expired or
// forceRefresh is set.
func (s *Service) All(ctx context.Context, forceRefresh bool) ([]types.Record, error) {
	if !forceRefresh {
		if records, ok := s.cache.All(ctx); ok {
			return records, nil
		}
	}
	var (
		out   []types.Record
		after ports.Cursor
	)
	for {
		page, err := s.FetchPage(ctx, PageRequest{PageSize: ExportChunkSize, After: after, SkipCount: true, noCount: true})
		if err != nil {
			return nil, err
		}
		out = append(out, page.Records...)
		if !page.HasMore {
			break
		}
		after = page.Cursor
	}
	s.cache.SetAll(ctx, out)
	logging.Debug(logging.CatRegistry, "all records loaded", "registry", s.schema.Name, "count", len(out))
	return out, nil
}

// Summary counts records grouped by a declared field, largest group first.
// Empty values are grouped under EmptyBucket.
func (s *Service) Summary(ctx context.Context, groupBy string) ([]types.SummaryBucket, error) {
	if _, ok := s.schema.Field(groupBy); !ok {
		return nil, httperr.NewBadRequest("unknown field: " + groupBy)
	}
	records, err := s.All(ctx, false)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, r := range records {
		v := strings.TrimSpace(coerceString(r.Fields[groupBy]))
		if v == "" {
			v = types.EmptyBucket
		}
		counts[v]++
	}
	out := make([]types.SummaryBucket, 0, len(counts))
	for v, n := range counts {
		out = append(out, types.SummaryBucket{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}

// ParseCursor turns a client token back into a store cursor.
func (s *Service) ParseCursor(token string) (ports.Cursor, error) {
	if token == "" {
		return nil, nil
	}
	c, err := s.store.ParseCursor(token)
	if err != nil {
		return nil, httperr.NewBadRequest("invalid cursor")
	}
	return c, nil
}

func (s *Service) encode(input map[string]any, full bool) (map[string]any, error) {
	fields, unknown := Encode(s.schema, input, full)
	if len(unknown) > 0 {
		return nil, httperr.NewBadRequest("unknown fields: " + strings.Join(unknown, ", "))
	}
	return fields, nil
}

func (s *Service) storeErr(err error, id string) error {
	if errors.Is(err, ports.ErrNotFound) {
		return httperr.NewNotFound(fmt.Sprintf("%s record %s not found", s.schema.Name, id))
	}
	return err
}

// targetName uses the first declared field as the human label.
func (s *Service) targetName(r types.Record) string {
	if len(s.schema.Fields) == 0 {
		return ""
	}
	return coerceString(r.Fields[s.schema.Fields[0].Name])
}

func (s *Service) record(ctx context.Context, actor activitytypes.Actor, e activitytypes.Entry) {
	e.Module = s.schema.Name
	s.audit.Record(ctx, e.WithActor(actor))
}
