package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jacksonlee411/registry-console/internal/logging"
	activitytypes "github.com/jacksonlee411/registry-console/modules/activity/domain/types"
	"github.com/jacksonlee411/registry-console/modules/iam/domain/ports"
	"github.com/jacksonlee411/registry-console/modules/iam/domain/types"
	"github.com/jacksonlee411/registry-console/pkg/authz"
	"github.com/jacksonlee411/registry-console/pkg/httperr"
)

const moduleRoles = authz.ObjectRoles

// Auditor receives best-effort activity entries.
type Auditor interface {
	Record(ctx context.Context, e activitytypes.Entry)
}

type nopAuditor struct{}

func (nopAuditor) Record(context.Context, activitytypes.Entry) {}

func auditorOrNop(a Auditor) Auditor {
	if a == nil {
		return nopAuditor{}
	}
	return a
}

// RoleInput is the editable part of a role.
type RoleInput struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

type RoleService struct {
	store ports.RoleStore
	gate  *AccessGate
	audit Auditor
}

func NewRoleService(store ports.RoleStore, gate *AccessGate, audit Auditor) *RoleService {
	return &RoleService{store: store, gate: gate, audit: auditorOrNop(audit)}
}

// SeedDefaults creates the system roles that are missing. Existing roles are
// left untouched.
func (s *RoleService) SeedDefaults(ctx context.Context) (created int, err error) {
	for _, r := range types.DefaultRoles() {
		_, err := s.store.GetRoleByName(ctx, r.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ports.ErrNotFound) {
			return created, err
		}
		if _, err := s.store.CreateRole(ctx, r); err != nil {
			if errors.Is(err, ports.ErrConflict) {
				continue
			}
			return created, err
		}
		created++
	}
	if created > 0 {
		logging.Info(logging.CatAuthz, "system roles seeded", "created", created)
	}
	return created, nil
}

func (s *RoleService) List(ctx context.Context) ([]types.Role, error) {
	return s.store.ListRoles(ctx)
}

func (s *RoleService) Get(ctx context.Context, id string) (types.Role, error) {
	r, err := s.store.GetRole(ctx, id)
	return r, mapStoreErr(err, "role "+id)
}

func (s *RoleService) Create(ctx context.Context, actor activitytypes.Actor, in RoleInput) (types.Role, error) {
	in.Name = strings.ToLower(strings.TrimSpace(in.Name))
	if !types.ValidRoleName(in.Name) {
		return types.Role{}, httperr.NewBadRequest("invalid role name")
	}
	perms, err := normalizePermissions(in.Permissions)
	if err != nil {
		return types.Role{}, err
	}
	r, err := s.store.CreateRole(ctx, types.Role{
		Name:        in.Name,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Description: strings.TrimSpace(in.Description),
		Permissions: perms,
	})
	if errors.Is(err, ports.ErrConflict) {
		return types.Role{}, httperr.NewConflict("role " + in.Name + " already exists")
	}
	if err != nil {
		return types.Role{}, err
	}
	s.gate.InvalidateRole(ctx, r.Name)
	s.record(ctx, actor, activitytypes.ActionCreate, "rol creado", r)
	return r, nil
}

// Update replaces display name, description and permissions. Names are
// immutable.
func (s *RoleService) Update(ctx context.Context, actor activitytypes.Actor, id string, in RoleInput) (types.Role, error) {
	cur, err := s.store.GetRole(ctx, id)
	if err != nil {
		return types.Role{}, mapStoreErr(err, "role "+id)
	}
	if name := strings.ToLower(strings.TrimSpace(in.Name)); name != "" && name != cur.Name {
		return types.Role{}, httperr.NewBadRequest("role names cannot change")
	}
	perms, err := normalizePermissions(in.Permissions)
	if err != nil {
		return types.Role{}, err
	}
	cur.DisplayName = strings.TrimSpace(in.DisplayName)
	cur.Description = strings.TrimSpace(in.Description)
	cur.Permissions = perms
	r, err := s.store.UpdateRole(ctx, cur)
	if err != nil {
		return types.Role{}, mapStoreErr(err, "role "+id)
	}
	s.gate.InvalidateRole(ctx, r.Name)
	s.record(ctx, actor, activitytypes.ActionUpdate, "rol actualizado", r)
	return r, nil
}

func (s *RoleService) Delete(ctx context.Context, actor activitytypes.Actor, id string) error {
	cur, err := s.store.GetRole(ctx, id)
	if err != nil {
		return mapStoreErr(err, "role "+id)
	}
	if cur.IsSystem() {
		return httperr.NewConflict("system role " + cur.Name + " cannot be deleted")
	}
	if err := s.store.DeleteRole(ctx, id); err != nil {
		if errors.Is(err, ports.ErrConflict) {
			return httperr.NewConflict("role " + cur.Name + " is still assigned")
		}
		return mapStoreErr(err, "role "+id)
	}
	s.gate.InvalidateRole(ctx, cur.Name)
	s.record(ctx, actor, activitytypes.ActionDelete, "rol eliminado", cur)
	return nil
}

func (s *RoleService) record(ctx context.Context, actor activitytypes.Actor, action activitytypes.Action, desc string, r types.Role) {
	s.audit.Record(ctx, activitytypes.Entry{
		Action:      action,
		Module:      moduleRoles,
		Description: desc + ": " + r.Name,
		Details:     map[string]any{"permissions": r.Permissions},
		TargetID:    r.ID,
		TargetName:  r.Name,
	}.WithActor(actor))
}

func normalizePermissions(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.ToLower(strings.TrimSpace(p))
		if !types.IsKnownPermission(p) {
			return nil, httperr.NewBadRequest("unknown permission: " + p)
		}
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out, nil
}

func mapStoreErr(err error, what string) error {
	if errors.Is(err, ports.ErrNotFound) {
		return httperr.NewNotFound(fmt.Sprintf("%s not found", what))
	}
	return err
}
