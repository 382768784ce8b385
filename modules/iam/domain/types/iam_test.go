package types

import (
	"strings"
	"testing"

	"github.com/jacksonlee411/registry-console/pkg/authz"
)

func TestCatalog_IDsAreWellFormedAndUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range Catalog() {
		obj, _, ok := authz.SplitPermission(p.ID)
		if !ok || obj != p.Module {
			t.Fatalf("bad id %q (module %q)", p.ID, p.Module)
		}
		if seen[p.ID] {
			t.Fatalf("duplicate %q", p.ID)
		}
		seen[p.ID] = true
	}
	if !IsKnownPermission("cancer.delete") || IsKnownPermission("cancer.fly") {
		t.Fatal("IsKnownPermission")
	}
}

func TestGroupedCatalog(t *testing.T) {
	groups := GroupedCatalog()
	total := 0
	for i, g := range groups {
		if i > 0 && groups[i-1].Module >= g.Module {
			t.Fatalf("not sorted at %d", i)
		}
		total += len(g.Permissions)
	}
	if total != len(Catalog()) {
		t.Fatalf("total=%d", total)
	}
}

func TestDefaultPermissions(t *testing.T) {
	user := DefaultPermissions(authz.RoleUser)
	for _, p := range user {
		if !strings.HasSuffix(p, ".view") {
			t.Fatalf("user got %s", p)
		}
	}
	editor := Role{Permissions: DefaultPermissions(authz.RoleEditor)}
	if editor.Has("cancer.delete") || !editor.Has("ips.import") {
		t.Fatalf("editor=%v", editor.Permissions)
	}
	admin := Role{Permissions: DefaultPermissions(authz.RoleAdmin)}
	if admin.Has("roles.delete") || !admin.Has("users.manage") {
		t.Fatalf("admin=%v", admin.Permissions)
	}
	if len(DefaultPermissions(authz.RoleSuperadmin)) != len(Catalog()) {
		t.Fatal("superadmin must hold the whole catalog")
	}
	if DefaultPermissions("custom") != nil {
		t.Fatal("custom roles have no defaults")
	}
	if len(DefaultRoles()) != len(authz.SystemRoles) {
		t.Fatal("DefaultRoles")
	}
}

func TestValidRoleName(t *testing.T) {
	for _, ok := range []string{"auditor", "lector_ips", "ab"} {
		if !ValidRoleName(ok) {
			t.Fatalf("%q rejected", ok)
		}
	}
	for _, bad := range []string{"", "a", "Auditor", "1x", "con espacio"} {
		if ValidRoleName(bad) {
			t.Fatalf("%q accepted", bad)
		}
	}
}

func TestContactUpdate_Apply(t *testing.T) {
	phone := " 300 "
	p := ContactUpdate{Phone: &phone}.Apply(UserProfile{DisplayName: "Ana", Phone: "1"})
	if p.Phone != "300" || p.DisplayName != "Ana" {
		t.Fatalf("p=%+v", p)
	}
}
