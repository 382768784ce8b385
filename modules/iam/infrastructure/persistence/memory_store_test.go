package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/jacksonlee411/registry-console/modules/iam/domain/ports"
	"github.com/jacksonlee411/registry-console/modules/iam/domain/types"
)

func TestMemoryStore_Roles(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	r, err := s.CreateRole(ctx, types.Role{Name: "auditor", Permissions: []string{"activity.view"}})
	if err != nil {
		t.Fatal(err)
	}
	if r.ID == "" || r.CreatedAt.IsZero() {
		t.Fatalf("r=%+v", r)
	}
	if _, err := s.CreateRole(ctx, types.Role{Name: "auditor"}); !errors.Is(err, ports.ErrConflict) {
		t.Fatalf("err=%v", err)
	}

	r.Permissions[0] = "mutated"
	got, err := s.GetRoleByName(ctx, "auditor")
	if err != nil || got.Permissions[0] != "activity.view" {
		t.Fatalf("got=%+v err=%v", got, err)
	}

	got.Permissions = []string{"dashboard.view"}
	got.Name = "renamed"
	upd, err := s.UpdateRole(ctx, got)
	if err != nil || upd.Name != "auditor" || upd.Permissions[0] != "dashboard.view" {
		t.Fatalf("upd=%+v err=%v", upd, err)
	}

	if err := s.DeleteRole(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetRole(ctx, r.ID); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
	if err := s.DeleteRole(ctx, r.ID); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
	if _, err := s.UpdateRole(ctx, r); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestMemoryStore_FirstProfileGetsBootstrapRole(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	boot := types.Role{ID: "r-super", Name: "superadmin"}

	first, created, err := s.CreateProfile(ctx, types.UserProfile{UID: "a", RoleName: "user", IsActive: true}, boot)
	if err != nil || !created || first.RoleName != "superadmin" || first.RoleID != "r-super" {
		t.Fatalf("first=%+v created=%v err=%v", first, created, err)
	}
	second, created, err := s.CreateProfile(ctx, types.UserProfile{UID: "b", RoleName: "user", IsActive: true}, boot)
	if err != nil || !created || second.RoleName != "user" {
		t.Fatalf("second=%+v created=%v err=%v", second, created, err)
	}
	again, created, err := s.CreateProfile(ctx, types.UserProfile{UID: "a", RoleName: "user"}, boot)
	if err != nil || created || again.RoleName != "superadmin" {
		t.Fatalf("again=%+v created=%v err=%v", again, created, err)
	}

	list, _ := s.ListProfiles(ctx)
	if len(list) != 2 {
		t.Fatalf("len=%d", len(list))
	}
	second.IsActive = false
	upd, err := s.UpdateProfile(ctx, second)
	if err != nil || upd.IsActive || !upd.CreatedAt.Equal(second.CreatedAt) {
		t.Fatalf("upd=%+v err=%v", upd, err)
	}
	if _, err := s.UpdateProfile(ctx, types.UserProfile{UID: "zz"}); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
	if _, err := s.GetProfile(ctx, "zz"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestMemoryStore_DeleteAssignedRoleConflicts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	r, err := s.CreateRole(ctx, types.Role{Name: "auditor"})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.CreateProfile(ctx, types.UserProfile{UID: "a", RoleID: r.ID, RoleName: r.Name, IsActive: true}, r); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteRole(ctx, r.ID); !errors.Is(err, ports.ErrConflict) {
		t.Fatalf("err=%v", err)
	}
}
