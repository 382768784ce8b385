package persistence

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jacksonlee411/registry-console/modules/registry/domain/ports"
	"github.com/jacksonlee411/registry-console/pkg/uuidv7"
)

// MemoryStore is a process-local DocumentStore. Batches are applied under
// one lock so they are atomic for readers.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]ports.Document
	now         func() time.Time
	newID       func() (string, error)

	// failBatch, when set, is consulted before each batch commit.
	failBatch func(collection string, ops []ports.BatchOp) error
	commits   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]ports.Document),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuidv7.NewString,
	}
}

// WithClock replaces the server timestamp source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// FailBatchWith installs a hook that can reject batch commits.
func (s *MemoryStore) FailBatchWith(fn func(collection string, ops []ports.BatchOp) error) {
	s.mu.Lock()
	s.failBatch = fn
	s.mu.Unlock()
}

// Commits reports how many batches were committed.
func (s *MemoryStore) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}

func (s *MemoryStore) coll(name string) map[string]ports.Document {
	c, ok := s.collections[name]
	if !ok {
		c = make(map[string]ports.Document)
		s.collections[name] = c
	}
	return c
}

func cloneDoc(d ports.Document) ports.Document {
	d.Fields = maps.Clone(d.Fields)
	return d
}

func (s *MemoryStore) Get(_ context.Context, collection string, id string) (ports.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.collections[collection][id]
	if !ok {
		return ports.Document{}, ports.ErrNotFound
	}
	return cloneDoc(d), nil
}

func (s *MemoryStore) insertLocked(collection string, fields map[string]any) (ports.Document, error) {
	id, err := s.newID()
	if err != nil {
		return ports.Document{}, err
	}
	now := s.now()
	d := ports.Document{ID: id, Fields: stripSystemFields(fields), CreatedAt: now, UpdatedAt: now}
	s.coll(collection)[id] = d
	return cloneDoc(d), nil
}

func (s *MemoryStore) Insert(_ context.Context, collection string, fields map[string]any) (ports.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(collection, fields)
}

func (s *MemoryStore) Update(_ context.Context, collection string, id string, fields map[string]any) (ports.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.collections[collection][id]
	if !ok {
		return ports.Document{}, ports.ErrNotFound
	}
	d = cloneDoc(d)
	if d.Fields == nil {
		d.Fields = map[string]any{}
	}
	maps.Copy(d.Fields, stripSystemFields(fields))
	d.UpdatedAt = s.now()
	s.collections[collection][id] = d
	return cloneDoc(d), nil
}

func (s *MemoryStore) Delete(_ context.Context, collection string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection][id]; !ok {
		return ports.ErrNotFound
	}
	delete(s.collections[collection], id)
	return nil
}

func (s *MemoryStore) Query(_ context.Context, collection string, q ports.Query) ([]ports.Hit, error) {
	field := q.Order.Field
	after, hasAfter, err := cursorFor(q.After, field)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	docs := make([]ports.Document, 0, len(s.collections[collection]))
	for _, d := range s.collections[collection] {
		if matchAll(d, q.Constraints) {
			docs = append(docs, cloneDoc(d))
		}
	}
	s.mu.RUnlock()

	desc := q.Order.Direction == ports.Desc
	sort.Slice(docs, func(i, j int) bool {
		c := comparePosition(docValue(docs[i], field), docs[i].ID, docValue(docs[j], field), docs[j].ID)
		if desc {
			return c > 0
		}
		return c < 0
	})

	hits := make([]ports.Hit, 0, min(len(docs), max(q.Limit, 0)))
	for _, d := range docs {
		if hasAfter {
			c := comparePosition(docValue(d, field), d.ID, after.value, after.id)
			if (desc && c >= 0) || (!desc && c <= 0) {
				continue
			}
		}
		if q.Limit > 0 && len(hits) >= q.Limit {
			break
		}
		hits = append(hits, ports.Hit{Document: d, Cursor: newCursor(d, field)})
	}
	return hits, nil
}

func (s *MemoryStore) Count(_ context.Context, collection string, constraints []ports.Constraint) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, d := range s.collections[collection] {
		if matchAll(d, constraints) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CommitBatch(_ context.Context, collection string, ops []ports.BatchOp) error {
	if err := validateBatch(ops); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failBatch != nil {
		if err := s.failBatch(collection, ops); err != nil {
			return err
		}
	}
	staged := maps.Clone(s.coll(collection))
	now := s.now()
	for _, op := range ops {
		switch op.Kind {
		case ports.BatchInsert:
			id := op.ID
			if id == "" {
				var err error
				if id, err = s.newID(); err != nil {
					return err
				}
			}
			staged[id] = ports.Document{ID: id, Fields: stripSystemFields(op.Fields), CreatedAt: now, UpdatedAt: now}
		case ports.BatchDelete:
			delete(staged, op.ID)
		}
	}
	s.collections[collection] = staged
	s.commits++
	return nil
}

func (s *MemoryStore) ParseCursor(token string) (ports.Cursor, error) {
	return parsePositionCursor(token)
}

func matchAll(d ports.Document, constraints []ports.Constraint) bool {
	for _, c := range constraints {
		v := docValue(d, c.Field)
		cmp := compareValues(v, c.Value)
		switch c.Op {
		case ports.OpEq:
			if cmp != 0 {
				return false
			}
		case ports.OpGte:
			if cmp < 0 {
				return false
			}
		case ports.OpLt:
			if cmp >= 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func comparePosition(av any, aid string, bv any, bid string) int {
	if c := compareValues(av, bv); c != 0 {
		return c
	}
	return strings.Compare(aid, bid)
}

// compareValues orders nil < numbers < strings < times; values of the same
// kind compare naturally.
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case string:
		return strings.Compare(av, b.(string))
	case time.Time:
		return av.Compare(b.(time.Time))
	case nil:
		return 0
	}
	fa, fb := toFloat(a), toFloat(b)
	switch {
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	}
	return 0
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case float64, float32, int, int32, int64:
		return 1
	case string:
		return 2
	case time.Time:
		return 3
	}
	return 4
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
