package persistence

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/jacksonlee411/registry-console/modules/iam/domain/ports"
	"github.com/jacksonlee411/registry-console/modules/iam/domain/types"
	"github.com/jacksonlee411/registry-console/pkg/uuidv7"
)

// MemoryStore keeps roles and profiles in process.
type MemoryStore struct {
	mu       sync.Mutex
	roles    map[string]types.Role
	profiles map[string]types.UserProfile
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		roles:    map[string]types.Role{},
		profiles: map[string]types.UserProfile{},
		now:      time.Now,
	}
}

func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func cloneRole(r types.Role) types.Role {
	r.Permissions = slices.Clone(r.Permissions)
	return r
}

func (s *MemoryStore) ListRoles(_ context.Context) ([]types.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, cloneRole(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) GetRole(_ context.Context, id string) (types.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok {
		return types.Role{}, ports.ErrNotFound
	}
	return cloneRole(r), nil
}

func (s *MemoryStore) GetRoleByName(_ context.Context, name string) (types.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roles {
		if r.Name == name {
			return cloneRole(r), nil
		}
	}
	return types.Role{}, ports.ErrNotFound
}

func (s *MemoryStore) CreateRole(_ context.Context, r types.Role) (types.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if existing.Name == r.Name {
			return types.Role{}, ports.ErrConflict
		}
	}
	id, err := uuidv7.NewString()
	if err != nil {
		return types.Role{}, err
	}
	now := s.now()
	r.ID, r.CreatedAt, r.UpdatedAt = id, now, now
	r = cloneRole(r)
	s.roles[id] = r
	return cloneRole(r), nil
}

func (s *MemoryStore) UpdateRole(_ context.Context, r types.Role) (types.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.roles[r.ID]
	if !ok {
		return types.Role{}, ports.ErrNotFound
	}
	cur.DisplayName = r.DisplayName
	cur.Description = r.Description
	cur.Permissions = slices.Clone(r.Permissions)
	cur.UpdatedAt = s.now()
	s.roles[r.ID] = cur
	return cloneRole(cur), nil
}

func (s *MemoryStore) DeleteRole(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return ports.ErrNotFound
	}
	for _, p := range s.profiles {
		if p.RoleID == id {
			return ports.ErrConflict
		}
	}
	delete(s.roles, id)
	return nil
}

func (s *MemoryStore) GetProfile(_ context.Context, uid string) (types.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[uid]
	if !ok {
		return types.UserProfile{}, ports.ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) ListProfiles(_ context.Context) ([]types.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.UserProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].UID < out[j].UID
	})
	return out, nil
}

func (s *MemoryStore) CreateProfile(_ context.Context, p types.UserProfile, bootstrap types.Role) (types.UserProfile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.profiles[p.UID]; ok {
		return existing, false, nil
	}
	if len(s.profiles) == 0 {
		p.RoleID, p.RoleName = bootstrap.ID, bootstrap.Name
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.profiles[p.UID] = p
	return p, true, nil
}

func (s *MemoryStore) UpdateProfile(_ context.Context, p types.UserProfile) (types.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.profiles[p.UID]
	if !ok {
		return types.UserProfile{}, ports.ErrNotFound
	}
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = s.now()
	s.profiles[p.UID] = p
	return p, nil
}
