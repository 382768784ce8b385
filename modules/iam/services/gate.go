package services

import (
	"context"
	"errors"
	"time"

	"github.com/jacksonlee411/registry-console/internal/cachemanager"
	"github.com/jacksonlee411/registry-console/internal/logging"
	"github.com/jacksonlee411/registry-console/modules/iam/domain/ports"
	"github.com/jacksonlee411/registry-console/modules/iam/domain/types"
	"github.com/jacksonlee411/registry-console/pkg/authz"
)

// RoleCacheTTL bounds how long a role's permission set is trusted.
const RoleCacheTTL = 10 * time.Minute

// AccessGate answers permission questions for a profile. Role permission
// sets are loaded once per role name, cached, and mirrored into the casbin
// authorizer as policy lines.
type AccessGate struct {
	roles      ports.RoleStore
	authorizer *authz.Authorizer
	cache      *cachemanager.ReadThroughCache[string, types.Role, string]
}

func NewAccessGate(roles ports.RoleStore, authorizer *authz.Authorizer) *AccessGate {
	g := &AccessGate{roles: roles, authorizer: authorizer}
	g.cache = cachemanager.NewReadThroughCache[string, types.Role, string](
		cachemanager.NewInMemoryCacheManager[string, types.Role]("role-permissions", RoleCacheTTL, 2*RoleCacheTTL),
		g.loadRole,
		RoleCacheTTL,
	).OnStore(func(_ context.Context, name string, r types.Role) error {
		return g.authorizer.ReplaceRolePermissions(name, r.Permissions)
	}).OnForget(func(_ context.Context, name string) {
		if err := g.authorizer.DropRole(name); err != nil {
			logging.ErrorErr(logging.CatAuthz, "drop role policies failed", err, "role", name)
		}
	})
	return g
}

// loadRole reads the role; policy lines are installed by the cache when the
// load is still current.
func (g *AccessGate) loadRole(ctx context.Context, name string) (types.Role, error) {
	r, err := g.roles.GetRoleByName(ctx, name)
	if errors.Is(err, ports.ErrNotFound) {
		return types.Role{Name: name}, nil
	}
	return r, err
}

// Can reports whether the profile holds permissionID. Inactive profiles hold
// nothing; superadmin holds everything without a lookup. Lookup failures
// deny.
func (g *AccessGate) Can(ctx context.Context, p types.UserProfile, permissionID string) bool {
	if !p.IsActive || p.RoleName == "" {
		return false
	}
	if p.RoleName == authz.RoleSuperadmin {
		return true
	}
	if _, err := g.cache.Get(ctx, p.RoleName, p.RoleName); err != nil {
		logging.ErrorErr(logging.CatAuthz, "role lookup failed", err, "role", p.RoleName)
		return false
	}
	allowed, enforced, err := g.authorizer.Can(p.RoleName, permissionID)
	if err != nil {
		logging.ErrorErr(logging.CatAuthz, "authorization check failed", err, "role", p.RoleName, "permission", permissionID)
		return false
	}
	if !allowed && !enforced {
		logging.Warn(logging.CatAuthz, "shadow deny", "role", p.RoleName, "permission", permissionID, "uid", p.UID)
		return true
	}
	return allowed
}

// Permissions lists what the profile may do, for client-side gating.
func (g *AccessGate) Permissions(ctx context.Context, p types.UserProfile) ([]string, error) {
	if !p.IsActive || p.RoleName == "" {
		return nil, nil
	}
	if p.RoleName == authz.RoleSuperadmin {
		return types.DefaultPermissions(authz.RoleSuperadmin), nil
	}
	r, err := g.cache.Get(ctx, p.RoleName, p.RoleName)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(r.Permissions))
	copy(out, r.Permissions)
	return out, nil
}

func (g *AccessGate) IsAdmin(p types.UserProfile) bool {
	return p.IsActive && (p.RoleName == authz.RoleAdmin || p.RoleName == authz.RoleSuperadmin)
}

func (g *AccessGate) IsSuperAdmin(p types.UserProfile) bool {
	return p.IsActive && p.RoleName == authz.RoleSuperadmin
}

// InvalidateRole drops the cached permission set and its policy lines so
// the next check reloads them. Loads already in flight for the role are
// discarded.
func (g *AccessGate) InvalidateRole(ctx context.Context, name string) {
	g.cache.Forget(ctx, name)
}
