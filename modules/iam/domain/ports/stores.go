package ports

import (
	"context"
	"errors"

	"github.com/jacksonlee411/registry-console/modules/iam/domain/types"
)

var (
	ErrNotFound           = errors.New("iam: not found")
	ErrConflict           = errors.New("iam: conflict")
	ErrInvalidCredentials = errors.New("iam: invalid credentials")
)

type RoleStore interface {
	ListRoles(ctx context.Context) ([]types.Role, error)
	GetRole(ctx context.Context, id string) (types.Role, error)
	GetRoleByName(ctx context.Context, name string) (types.Role, error)
	// CreateRole returns ErrConflict when the name is taken.
	CreateRole(ctx context.Context, r types.Role) (types.Role, error)
	UpdateRole(ctx context.Context, r types.Role) (types.Role, error)
	DeleteRole(ctx context.Context, id string) error
}

type ProfileStore interface {
	GetProfile(ctx context.Context, uid string) (types.UserProfile, error)
	ListProfiles(ctx context.Context) ([]types.UserProfile, error)
	// CreateProfile inserts p unless the uid exists, in which case the
	// stored profile is returned with created=false. When no profile exists
	// at all, p is stored with bootstrap as its role.
	CreateProfile(ctx context.Context, p types.UserProfile, bootstrap types.Role) (out types.UserProfile, created bool, err error)
	UpdateProfile(ctx context.Context, p types.UserProfile) (types.UserProfile, error)
}

type IdentityProvider interface {
	// AuthenticatePassword returns ErrInvalidCredentials for rejected logins.
	AuthenticatePassword(ctx context.Context, email string, password string) (types.Identity, error)
}
