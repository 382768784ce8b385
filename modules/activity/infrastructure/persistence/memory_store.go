package persistence

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/jacksonlee411/registry-console/modules/activity/domain/types"
)

type MemoryStore struct {
	mu      sync.RWMutex
	entries []types.Entry
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Append(_ context.Context, e types.Entry) error {
	e.Details = maps.Clone(e.Details)
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	return nil
}

// List returns entries newest first; ids are time-ordered so they break
// createdAt ties.
func (s *MemoryStore) List(_ context.Context, q types.ListQuery) ([]types.Entry, error) {
	s.mu.RLock()
	all := make([]types.Entry, len(s.entries))
	copy(all, s.entries)
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	start := 0
	if q.Before != "" {
		start = len(all)
		for i, e := range all {
			if e.ID == q.Before {
				start = i + 1
				break
			}
		}
	}

	var out []types.Entry
	for _, e := range all[start:] {
		if q.Module != "" && e.Module != q.Module {
			continue
		}
		if q.Action != "" && e.Action != q.Action {
			continue
		}
		if q.UserID != "" && e.UserID != q.UserID {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}
