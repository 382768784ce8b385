package authz

const (
	RoleSuperadmin = "superadmin"
	RoleAdmin      = "admin"
	RoleEditor     = "editor"
	RoleUser       = "user"
	RoleAnonymous  = "anonymous"
)

const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionEdit   = "edit"
	ActionDelete = "delete"
	ActionImport = "import"
	ActionExport = "export"
	ActionManage = "manage"
)

const DomainGlobal = "global"

const (
	ObjectUsers     = "users"
	ObjectRoles     = "roles"
	ObjectProfiles  = "profiles"
	ObjectDashboard = "dashboard"
	ObjectActivity  = "activity"
	ObjectCancer    = "cancer"
	ObjectArthritis = "arthritis"
	ObjectIPS       = "ips"
)

// Permission joins an object and an action into the "module.action" id form.
func Permission(object string, action string) string {
	return object + "." + action
}

// SystemRoles cannot be deleted.
var SystemRoles = []string{RoleSuperadmin, RoleAdmin, RoleEditor, RoleUser}

func IsSystemRole(name string) bool {
	for _, r := range SystemRoles {
		if r == name {
			return true
		}
	}
	return false
}
