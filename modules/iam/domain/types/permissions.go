package types

import (
	"sort"

	"github.com/jacksonlee411/registry-console/pkg/authz"
)

// Permission is a catalog entry. Ids take the form "module.action".
type Permission struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Module      string `json:"module"`
}

// PermissionGroup lists one module's permissions.
type PermissionGroup struct {
	Module      string       `json:"module"`
	Permissions []Permission `json:"permissions"`
}

var registryModules = []struct{ object, title string }{
	{authz.ObjectCancer, "registro de cáncer"},
	{authz.ObjectArthritis, "registro de artritis"},
	{authz.ObjectIPS, "directorio de IPS"},
}

var catalog = buildCatalog()

func perm(object, action, name, desc string) Permission {
	return Permission{ID: authz.Permission(object, action), Name: name, Description: desc, Module: object}
}

func buildCatalog() []Permission {
	out := []Permission{
		perm(authz.ObjectUsers, authz.ActionView, "Ver usuarios", "Consultar cuentas de usuario"),
		perm(authz.ObjectUsers, authz.ActionManage, "Gestionar usuarios", "Activar, desactivar y asignar roles"),
		perm(authz.ObjectRoles, authz.ActionView, "Ver roles", "Consultar roles y sus permisos"),
		perm(authz.ObjectRoles, authz.ActionCreate, "Crear roles", "Crear roles personalizados"),
		perm(authz.ObjectRoles, authz.ActionEdit, "Editar roles", "Modificar permisos de un rol"),
		perm(authz.ObjectRoles, authz.ActionDelete, "Eliminar roles", "Eliminar roles personalizados"),
		perm(authz.ObjectProfiles, authz.ActionView, "Ver perfiles", "Consultar perfiles"),
		perm(authz.ObjectProfiles, authz.ActionEdit, "Editar perfiles", "Editar datos de contacto de perfiles"),
		perm(authz.ObjectDashboard, authz.ActionView, "Ver tablero", "Consultar indicadores"),
		perm(authz.ObjectActivity, authz.ActionView, "Ver actividad", "Consultar el registro de actividad"),
	}
	for _, m := range registryModules {
		out = append(out,
			perm(m.object, authz.ActionView, "Ver "+m.title, "Consultar registros"),
			perm(m.object, authz.ActionCreate, "Crear en "+m.title, "Agregar registros"),
			perm(m.object, authz.ActionEdit, "Editar "+m.title, "Modificar registros"),
			perm(m.object, authz.ActionDelete, "Eliminar de "+m.title, "Eliminar registros"),
			perm(m.object, authz.ActionImport, "Importar a "+m.title, "Carga masiva desde Excel"),
			perm(m.object, authz.ActionExport, "Exportar "+m.title, "Descarga en Excel"),
		)
	}
	return out
}

// Catalog returns every known permission.
func Catalog() []Permission {
	out := make([]Permission, len(catalog))
	copy(out, catalog)
	return out
}

// GroupedCatalog returns the catalog grouped by module, modules sorted.
func GroupedCatalog() []PermissionGroup {
	byModule := map[string][]Permission{}
	for _, p := range catalog {
		byModule[p.Module] = append(byModule[p.Module], p)
	}
	out := make([]PermissionGroup, 0, len(byModule))
	for m, ps := range byModule {
		out = append(out, PermissionGroup{Module: m, Permissions: ps})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Module < out[j].Module })
	return out
}

func IsKnownPermission(id string) bool {
	for _, p := range catalog {
		if p.ID == id {
			return true
		}
	}
	return false
}

// DefaultPermissions is the seed permission set for a system role.
func DefaultPermissions(role string) []string {
	var out []string
	for _, p := range catalog {
		if grantedByDefault(role, p) {
			out = append(out, p.ID)
		}
	}
	return out
}

func grantedByDefault(role string, p Permission) bool {
	_, action, _ := authz.SplitPermission(p.ID)
	switch role {
	case authz.RoleSuperadmin:
		return true
	case authz.RoleAdmin:
		return p.Module != authz.ObjectRoles || action == authz.ActionView
	case authz.RoleEditor:
		switch p.Module {
		case authz.ObjectDashboard:
			return true
		case authz.ObjectCancer, authz.ObjectArthritis, authz.ObjectIPS:
			return action != authz.ActionDelete
		}
		return false
	case authz.RoleUser:
		switch p.Module {
		case authz.ObjectDashboard:
			return true
		case authz.ObjectCancer, authz.ObjectArthritis, authz.ObjectIPS:
			return action == authz.ActionView
		}
		return false
	}
	return false
}

// DefaultRoles returns the seed definitions of the four system roles.
func DefaultRoles() []Role {
	return []Role{
		{Name: authz.RoleSuperadmin, DisplayName: "Superadministrador", Description: "Acceso total", Permissions: DefaultPermissions(authz.RoleSuperadmin)},
		{Name: authz.RoleAdmin, DisplayName: "Administrador", Description: "Gestión de usuarios y registros", Permissions: DefaultPermissions(authz.RoleAdmin)},
		{Name: authz.RoleEditor, DisplayName: "Editor", Description: "Carga y edición de registros", Permissions: DefaultPermissions(authz.RoleEditor)},
		{Name: authz.RoleUser, DisplayName: "Usuario", Description: "Consulta", Permissions: DefaultPermissions(authz.RoleUser)},
	}
}
