package types

import (
	"regexp"
	"strings"
	"time"

	"github.com/jacksonlee411/registry-console/pkg/authz"
)

// Role groups a set of permission ids under a name. Names are lowercase
// slugs; the system role names cannot be deleted.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Description string    `json:"description"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (r Role) IsSystem() bool { return authz.IsSystemRole(r.Name) }

func (r Role) Has(permissionID string) bool {
	for _, p := range r.Permissions {
		if p == permissionID {
			return true
		}
	}
	return false
}

var roleNameRe = regexp.MustCompile(`^[a-z][a-z0-9_-]{1,31}$`)

func ValidRoleName(name string) bool { return roleNameRe.MatchString(name) }

// UserProfile is the console-side account of an authenticated identity.
type UserProfile struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	PhotoURL    string    `json:"photoURL"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	RoleID      string    `json:"roleId"`
	RoleName    string    `json:"roleName"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Identity is what the identity provider vouches for after sign-in.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}

// ContactUpdate carries the self-editable profile fields. Nil means keep.
type ContactUpdate struct {
	DisplayName *string `json:"displayName"`
	PhotoURL    *string `json:"photoURL"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
}

func (c ContactUpdate) Apply(p UserProfile) UserProfile {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&p.DisplayName, c.DisplayName)
	set(&p.PhotoURL, c.PhotoURL)
	set(&p.Phone, c.Phone)
	set(&p.Address, c.Address)
	return p
}
