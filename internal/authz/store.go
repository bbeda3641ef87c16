package authz

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the PostgreSQL-backed DirectoryStore. The hosted backend applies
// its own row-level access rules; this store only issues the reads the
// resolver needs.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// FindProfile reads the directory profile for a user.
func (s *Store) FindProfile(ctx context.Context, userID uuid.UUID) (Profile, error) {
	var p Profile
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, role_id FROM user_profiles WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.RoleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrProfileNotFound
		}
		return Profile{}, err
	}
	return p, nil
}

// FindRole reads a role reference including its super-admin flag.
func (s *Store) FindRole(ctx context.Context, roleID uuid.UUID) (RoleRef, error) {
	var r RoleRef
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, is_super_admin FROM roles WHERE id = $1`, roleID,
	).Scan(&r.ID, &r.Name, &r.IsSuperAdmin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RoleRef{}, ErrRoleNotFound
		}
		return RoleRef{}, err
	}
	return r, nil
}

// ListRolePermissions reads the stored grant rows for a role.
func (s *Store) ListRolePermissions(ctx context.Context, roleID uuid.UUID) ([]ModulePermission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT module, view_type, can_create, can_edit, can_delete
		 FROM role_permissions WHERE role_id = $1 ORDER BY module`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []ModulePermission
	for rows.Next() {
		var p ModulePermission
		if err := rows.Scan(&p.Module, &p.ViewType, &p.CanCreate, &p.CanEdit, &p.CanDelete); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}
