package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/jacksonlee411/registry-console/modules/iam/domain/ports"
	"github.com/jacksonlee411/registry-console/modules/iam/domain/types"
	"github.com/jacksonlee411/registry-console/pkg/pgerr"
	"github.com/jacksonlee411/registry-console/pkg/uuidv7"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGStore persists roles in iam.roles and profiles in iam.profiles.
type PGStore struct {
	pool  pgBeginner
	newID func() (string, error)
}

func NewPGStore(pool pgBeginner) *PGStore {
	return &PGStore{pool: pool, newID: uuidv7.NewString}
}

const (
	roleColumns    = `id, name, display_name, description, permissions, created_at, updated_at`
	profileColumns = `uid, email, display_name, photo_url, phone, address, role_id, role_name, is_active, created_at, updated_at`
)

func (s *PGStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) ListRoles(ctx context.Context) ([]types.Role, error) {
	var out []types.Role
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+roleColumns+` FROM iam.roles ORDER BY name`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			r, err := scanRole(rows)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

func (s *PGStore) GetRole(ctx context.Context, id string) (types.Role, error) {
	var r types.Role
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		r, err = scanRole(tx.QueryRow(ctx, `SELECT `+roleColumns+` FROM iam.roles WHERE id = $1`, id))
		return err
	})
	return r, err
}

func (s *PGStore) GetRoleByName(ctx context.Context, name string) (types.Role, error) {
	var r types.Role
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		r, err = scanRole(tx.QueryRow(ctx, `SELECT `+roleColumns+` FROM iam.roles WHERE name = $1`, name))
		return err
	})
	return r, err
}

func (s *PGStore) CreateRole(ctx context.Context, r types.Role) (types.Role, error) {
	id, err := s.newID()
	if err != nil {
		return types.Role{}, err
	}
	var out types.Role
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = scanRole(tx.QueryRow(ctx, `
INSERT INTO iam.roles (id, name, display_name, description, permissions)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+roleColumns+`
`, id, r.Name, r.DisplayName, r.Description, permissionsArg(r.Permissions)))
		return err
	})
	if pgerr.IsUniqueViolation(err) {
		return types.Role{}, ports.ErrConflict
	}
	return out, err
}

func (s *PGStore) UpdateRole(ctx context.Context, r types.Role) (types.Role, error) {
	var out types.Role
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = scanRole(tx.QueryRow(ctx, `
UPDATE iam.roles
SET display_name = $2, description = $3, permissions = $4, updated_at = now()
WHERE id = $1
RETURNING `+roleColumns+`
`, r.ID, r.DisplayName, r.Description, permissionsArg(r.Permissions)))
		return err
	})
	return out, err
}

func (s *PGStore) DeleteRole(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM iam.roles WHERE id = $1`, id)
		if err != nil {
			if pgerr.IsForeignKeyViolation(err) {
				return ports.ErrConflict
			}
			return err
		}
		if tag.RowsAffected() == 0 {
			return ports.ErrNotFound
		}
		return nil
	})
}

func (s *PGStore) GetProfile(ctx context.Context, uid string) (types.UserProfile, error) {
	var p types.UserProfile
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		p, err = scanProfile(tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM iam.profiles WHERE uid = $1`, uid))
		return err
	})
	return p, err
}

func (s *PGStore) ListProfiles(ctx context.Context) ([]types.UserProfile, error) {
	var out []types.UserProfile
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+profileColumns+` FROM iam.profiles ORDER BY created_at, uid`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanProfile(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	return out, err
}

// CreateProfile serializes first sign-ins with a table lock so exactly one
// profile receives the bootstrap role.
func (s *PGStore) CreateProfile(ctx context.Context, p types.UserProfile, bootstrap types.Role) (types.UserProfile, bool, error) {
	var (
		out     types.UserProfile
		created bool
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `LOCK TABLE iam.profiles IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return err
		}
		existing, err := scanProfile(tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM iam.profiles WHERE uid = $1`, p.UID))
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, ports.ErrNotFound) {
			return err
		}
		var empty bool
		if err := tx.QueryRow(ctx, `SELECT NOT EXISTS (SELECT 1 FROM iam.profiles)`).Scan(&empty); err != nil {
			return err
		}
		if empty {
			p.RoleID, p.RoleName = bootstrap.ID, bootstrap.Name
		}
		out, err = scanProfile(tx.QueryRow(ctx, `
INSERT INTO iam.profiles (uid, email, display_name, photo_url, phone, address, role_id, role_name, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+profileColumns+`
`, p.UID, p.Email, p.DisplayName, p.PhotoURL, p.Phone, p.Address, p.RoleID, p.RoleName, p.IsActive))
		created = err == nil
		return err
	})
	if err != nil {
		return types.UserProfile{}, false, err
	}
	return out, created, nil
}

func (s *PGStore) UpdateProfile(ctx context.Context, p types.UserProfile) (types.UserProfile, error) {
	var out types.UserProfile
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = scanProfile(tx.QueryRow(ctx, `
UPDATE iam.profiles
SET email = $2, display_name = $3, photo_url = $4, phone = $5, address = $6,
    role_id = $7, role_name = $8, is_active = $9, updated_at = now()
WHERE uid = $1
RETURNING `+profileColumns+`
`, p.UID, p.Email, p.DisplayName, p.PhotoURL, p.Phone, p.Address, p.RoleID, p.RoleName, p.IsActive))
		return err
	})
	return out, err
}

func permissionsArg(p []string) []string {
	if p == nil {
		return []string{}
	}
	return p
}

func scanRole(row pgx.Row) (types.Role, error) {
	var r types.Role
	if err := row.Scan(&r.ID, &r.Name, &r.DisplayName, &r.Description, &r.Permissions, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Role{}, ports.ErrNotFound
		}
		return types.Role{}, err
	}
	return r, nil
}

func scanProfile(row pgx.Row) (types.UserProfile, error) {
	var p types.UserProfile
	if err := row.Scan(&p.UID, &p.Email, &p.DisplayName, &p.PhotoURL, &p.Phone, &p.Address, &p.RoleID, &p.RoleName, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.UserProfile{}, ports.ErrNotFound
		}
		return types.UserProfile{}, err
	}
	return p, nil
}
