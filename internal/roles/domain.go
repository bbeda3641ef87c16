// Package roles implements role administration: role CRUD and the
// per-module permission matrix. All operations are super-admin only.
package roles

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-crm/meridian/internal/authz"
)

// Role represents a named permission grouping.
type Role struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	IsSuperAdmin bool      `json:"is_super_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

var (
	// ErrNotFound indicates the requested role does not exist.
	ErrNotFound = errors.New("roles: not found")
	// ErrNameTaken indicates a role with the same (case-folded) name exists.
	ErrNameTaken = errors.New("roles: name already taken")
	// ErrRoleInUse indicates deletion was blocked because user profiles
	// still reference the role.
	ErrRoleInUse = errors.New("roles: role referenced by user profiles")
	// ErrImplicitPermissions indicates an attempt to edit the stored matrix
	// of a super-admin role, whose authority is implicit and never stored.
	ErrImplicitPermissions = errors.New("roles: super-admin permissions are implicit")
	// ErrInvalidEntry indicates a malformed permission matrix entry.
	ErrInvalidEntry = errors.New("roles: invalid permission entry")
)

// CreateRoleRequest carries input for role creation.
type CreateRoleRequest struct {
	Name         string `json:"name" validate:"required,min=2,max=80"`
	IsSuperAdmin bool   `json:"is_super_admin"`
}

// RenameRoleRequest carries input for renaming a role.
type RenameRoleRequest struct {
	Name string `json:"name" validate:"required,min=2,max=80"`
}

// UpsertPermissionsRequest replaces a role's permission matrix. Entries are
// keyed (role_id, module); the whole set is written in one transaction.
type UpsertPermissionsRequest struct {
	Entries []authz.ModulePermission `json:"entries" validate:"required,min=1,dive"`
}
