package roles

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian/internal/authz"
)

// SQLRepository provides PostgreSQL backed persistence.
type SQLRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *SQLRepository {
	return &SQLRepository{pool: pool}
}

// ListRoles returns all roles ordered by name.
func (r *SQLRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, is_super_admin, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.IsSuperAdmin, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole fetches a role by ID.
func (r *SQLRepository) GetRole(ctx context.Context, id uuid.UUID) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, is_super_admin, created_at, updated_at FROM roles WHERE id = $1`, id,
	).Scan(&role.ID, &role.Name, &role.IsSuperAdmin, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role.
func (r *SQLRepository) CreateRole(ctx context.Context, name, foldedName string, isSuperAdmin bool) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`INSERT INTO roles (id, name, name_folded, is_super_admin, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW())
		 RETURNING id, name, is_super_admin, created_at, updated_at`,
		uuid.New(), name, foldedName, isSuperAdmin,
	).Scan(&role.ID, &role.Name, &role.IsSuperAdmin, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, ErrNameTaken
		}
		return Role{}, err
	}
	return role, nil
}

// RenameRole updates a role's name.
func (r *SQLRepository) RenameRole(ctx context.Context, id uuid.UUID, name, foldedName string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, name_folded = $3, updated_at = NOW()
		 WHERE id = $1
		 RETURNING id, name, is_super_admin, created_at, updated_at`,
		id, name, foldedName,
	).Scan(&role.ID, &role.Name, &role.IsSuperAdmin, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		if isUniqueViolation(err) {
			return Role{}, ErrNameTaken
		}
		return Role{}, err
	}
	return role, nil
}

// DeleteRole removes a role. The role_permissions FK cascades; the
// user_profiles FK restricts, which surfaces as ErrRoleInUse.
func (r *SQLRepository) DeleteRole(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrRoleInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPermissions returns the stored matrix rows for a role.
func (r *SQLRepository) ListPermissions(ctx context.Context, roleID uuid.UUID) ([]authz.ModulePermission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT module, view_type, can_create, can_edit, can_delete
		 FROM role_permissions WHERE role_id = $1 ORDER BY module`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []authz.ModulePermission
	for rows.Next() {
		var p authz.ModulePermission
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

// ReplacePermissions upserts matrix rows in one transaction so the matrix is
// never observable half-updated.
func (r *SQLRepository) ReplacePermissions(ctx context.Context, roleID uuid.UUID, entries []authz.ModulePermission) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, entry := range entries {
		_, err := tx.Exec(ctx,
			`INSERT INTO role_permissions (role_id, module, view_type, can_create, can_edit, can_delete, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW())
			 ON CONFLICT (role_id, module) DO UPDATE SET
			   view_type = EXCLUDED.view_type,
			   can_create = EXCLUDED.can_create,
			   can_edit = EXCLUDED.can_edit,
			   can_delete = EXCLUDED.can_delete,
			   updated_at = NOW()`,
			roleID, entry.Module, entry.ViewType, entry.CanCreate, entry.CanEdit, entry.CanDelete)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
