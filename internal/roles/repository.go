package roles

import (
	"context"

	"github.com/google/uuid"

	"github.com/meridian-crm/meridian/internal/authz"
)

// Repository abstracts role persistence so the service can be exercised
// against an in-memory double.
type Repository interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id uuid.UUID) (Role, error)
	CreateRole(ctx context.Context, name, foldedName string, isSuperAdmin bool) (Role, error)
	RenameRole(ctx context.Context, id uuid.UUID, name, foldedName string) (Role, error)
	// DeleteRole removes the role and cascades its permission rows. It
	// returns ErrRoleInUse while user profiles still reference the role.
	DeleteRole(ctx context.Context, id uuid.UUID) error
	ListPermissions(ctx context.Context, roleID uuid.UUID) ([]authz.ModulePermission, error)
	// ReplacePermissions upserts the supplied matrix rows keyed on
	// (role_id, module) inside a single transaction.
	ReplacePermissions(ctx context.Context, roleID uuid.UUID, entries []authz.ModulePermission) error
}
