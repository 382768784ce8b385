package services

import (
	"context"
	"errors"
	"strings"

	"github.com/jacksonlee411/registry-console/internal/logging"
	activitytypes "github.com/jacksonlee411/registry-console/modules/activity/domain/types"
	"github.com/jacksonlee411/registry-console/modules/iam/domain/ports"
	"github.com/jacksonlee411/registry-console/modules/iam/domain/types"
	"github.com/jacksonlee411/registry-console/pkg/authz"
	"github.com/jacksonlee411/registry-console/pkg/httperr"
)

const moduleProfiles = authz.ObjectProfiles

// Provisioner moves an authenticated identity from "no profile" to "with
// profile".
type Provisioner struct {
	profiles ports.ProfileStore
	roles    ports.RoleStore
}

func NewProvisioner(profiles ports.ProfileStore, roles ports.RoleStore) *Provisioner {
	return &Provisioner{profiles: profiles, roles: roles}
}

// EnsureProfile returns the identity's profile, creating it with role user
// when absent. The first profile of an empty system becomes superadmin.
func (p *Provisioner) EnsureProfile(ctx context.Context, id types.Identity) (types.UserProfile, bool, error) {
	if strings.TrimSpace(id.UID) == "" {
		return types.UserProfile{}, false, errors.New("iam: identity without uid")
	}
	if existing, err := p.profiles.GetProfile(ctx, id.UID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, ports.ErrNotFound) {
		return types.UserProfile{}, false, err
	}

	user, err := p.role(ctx, authz.RoleUser)
	if err != nil {
		return types.UserProfile{}, false, err
	}
	super, err := p.role(ctx, authz.RoleSuperadmin)
	if err != nil {
		return types.UserProfile{}, false, err
	}
	displayName := strings.TrimSpace(id.DisplayName)
	if displayName == "" {
		displayName, _, _ = strings.Cut(id.Email, "@")
	}
	prof, created, err := p.profiles.CreateProfile(ctx, types.UserProfile{
		UID:         id.UID,
		Email:       strings.ToLower(strings.TrimSpace(id.Email)),
		DisplayName: displayName,
		PhotoURL:    id.PhotoURL,
		RoleID:      user.ID,
		RoleName:    user.Name,
		IsActive:    true,
	}, super)
	if err != nil {
		return types.UserProfile{}, false, err
	}
	if created {
		logging.Info(logging.CatAuthz, "profile provisioned", "uid", prof.UID, "role", prof.RoleName)
	}
	return prof, created, nil
}

// role resolves a system role, falling back to a bare name when roles were
// never seeded.
func (p *Provisioner) role(ctx context.Context, name string) (types.Role, error) {
	r, err := p.roles.GetRoleByName(ctx, name)
	if errors.Is(err, ports.ErrNotFound) {
		return types.Role{Name: name}, nil
	}
	return r, err
}

type ProfileService struct {
	profiles ports.ProfileStore
	roles    ports.RoleStore
	audit    Auditor
}

func NewProfileService(profiles ports.ProfileStore, roles ports.RoleStore, audit Auditor) *ProfileService {
	return &ProfileService{profiles: profiles, roles: roles, audit: auditorOrNop(audit)}
}

func (s *ProfileService) List(ctx context.Context) ([]types.UserProfile, error) {
	return s.profiles.ListProfiles(ctx)
}

func (s *ProfileService) Get(ctx context.Context, uid string) (types.UserProfile, error) {
	p, err := s.profiles.GetProfile(ctx, uid)
	return p, mapStoreErr(err, "profile "+uid)
}

// AssignRole moves a profile to another existing role on behalf of by.
// Only a superadmin may grant superadmin or change a superadmin's role, and
// the last active superadmin cannot be demoted.
func (s *ProfileService) AssignRole(ctx context.Context, by types.UserProfile, uid string, roleName string) (types.UserProfile, error) {
	p, err := s.Get(ctx, uid)
	if err != nil {
		return types.UserProfile{}, err
	}
	r, err := s.roles.GetRoleByName(ctx, strings.ToLower(strings.TrimSpace(roleName)))
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return types.UserProfile{}, httperr.NewBadRequest("unknown role: " + roleName)
		}
		return types.UserProfile{}, err
	}
	if r.Name == authz.RoleSuperadmin && !isSuperadmin(by) {
		return types.UserProfile{}, httperr.NewForbidden("only a superadmin can grant the superadmin role")
	}
	if p.RoleName == authz.RoleSuperadmin && r.Name != authz.RoleSuperadmin {
		if !isSuperadmin(by) {
			return types.UserProfile{}, httperr.NewForbidden("only a superadmin can change a superadmin profile")
		}
		if err := s.ensureAnotherSuperadmin(ctx, uid); err != nil {
			return types.UserProfile{}, err
		}
	}
	previous := p.RoleName
	p.RoleID, p.RoleName = r.ID, r.Name
	out, err := s.profiles.UpdateProfile(ctx, p)
	if err != nil {
		return types.UserProfile{}, mapStoreErr(err, "profile "+uid)
	}
	s.record(ctx, actorOf(by), "rol asignado", out, map[string]any{"from": previous, "to": r.Name})
	return out, nil
}

// SetActive activates or deactivates a profile on behalf of by. Superadmin
// profiles can only be toggled by a superadmin.
func (s *ProfileService) SetActive(ctx context.Context, by types.UserProfile, uid string, active bool) (types.UserProfile, error) {
	p, err := s.Get(ctx, uid)
	if err != nil {
		return types.UserProfile{}, err
	}
	if p.RoleName == authz.RoleSuperadmin && !isSuperadmin(by) {
		return types.UserProfile{}, httperr.NewForbidden("only a superadmin can change a superadmin profile")
	}
	if !active && p.RoleName == authz.RoleSuperadmin && p.IsActive {
		if err := s.ensureAnotherSuperadmin(ctx, uid); err != nil {
			return types.UserProfile{}, err
		}
	}
	p.IsActive = active
	out, err := s.profiles.UpdateProfile(ctx, p)
	if err != nil {
		return types.UserProfile{}, mapStoreErr(err, "profile "+uid)
	}
	desc := "perfil desactivado"
	if active {
		desc = "perfil activado"
	}
	s.record(ctx, actorOf(by), desc, out, map[string]any{"isActive": active})
	return out, nil
}

func (s *ProfileService) UpdateContact(ctx context.Context, actor activitytypes.Actor, uid string, in types.ContactUpdate) (types.UserProfile, error) {
	p, err := s.Get(ctx, uid)
	if err != nil {
		return types.UserProfile{}, err
	}
	out, err := s.profiles.UpdateProfile(ctx, in.Apply(p))
	if err != nil {
		return types.UserProfile{}, mapStoreErr(err, "profile "+uid)
	}
	s.record(ctx, actor, "perfil actualizado", out, nil)
	return out, nil
}

func (s *ProfileService) ensureAnotherSuperadmin(ctx context.Context, uid string) error {
	all, err := s.profiles.ListProfiles(ctx)
	if err != nil {
		return err
	}
	for _, other := range all {
		if other.UID != uid && other.IsActive && other.RoleName == authz.RoleSuperadmin {
			return nil
		}
	}
	return httperr.NewConflict("the last active superadmin cannot be demoted")
}

func isSuperadmin(p types.UserProfile) bool {
	return p.IsActive && p.RoleName == authz.RoleSuperadmin
}

func actorOf(p types.UserProfile) activitytypes.Actor {
	return activitytypes.Actor{UserID: p.UID, Email: p.Email, Name: p.DisplayName}
}

func (s *ProfileService) record(ctx context.Context, actor activitytypes.Actor, desc string, p types.UserProfile, details map[string]any) {
	s.audit.Record(ctx, activitytypes.Entry{
		Action:      activitytypes.ActionUpdate,
		Module:      moduleProfiles,
		Description: desc + ": " + p.Email,
		Details:     details,
		TargetID:    p.UID,
		TargetName:  p.Email,
	}.WithActor(actor))
}
