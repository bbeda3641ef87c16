package roles

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/meridian-crm/meridian/internal/authz"
	"github.com/meridian-crm/meridian/internal/shared"
)

// SnapshotInvalidator drops cached permission snapshots after a matrix edit.
type SnapshotInvalidator interface {
	InvalidateAll()
}

// Service orchestrates role administration.
type Service struct {
	repo        Repository
	validate    *validator.Validate
	invalidator SnapshotInvalidator
	audit       *shared.AuditLogger
	logger      *slog.Logger
	fold        cases.Caser
}

// NewService constructs a Service.
func NewService(repo Repository, invalidator SnapshotInvalidator, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		validate:    validator.New(),
		invalidator: invalidator,
		audit:       audit,
		logger:      logger,
		fold:        cases.Fold(),
	}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// CreateRole creates a role. Names are unique case-insensitively.
func (s *Service) CreateRole(ctx context.Context, actorID uuid.UUID, req CreateRoleRequest) (Role, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		return Role{}, fmt.Errorf("roles: validate create: %w", err)
	}
	role, err := s.repo.CreateRole(ctx, req.Name, s.fold.String(req.Name), req.IsSuperAdmin)
	if err != nil {
		return Role{}, err
	}
	s.recordAudit(ctx, actorID, "role.create", role.ID, map[string]any{"name": role.Name, "is_super_admin": role.IsSuperAdmin})
	return role, nil
}

// RenameRole renames an existing role.
func (s *Service) RenameRole(ctx context.Context, actorID uuid.UUID, id uuid.UUID, req RenameRoleRequest) (Role, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		return Role{}, fmt.Errorf("roles: validate rename: %w", err)
	}
	role, err := s.repo.RenameRole(ctx, id, req.Name, s.fold.String(req.Name))
	if err != nil {
		return Role{}, err
	}
	s.recordAudit(ctx, actorID, "role.rename", role.ID, map[string]any{"name": role.Name})
	return role, nil
}

// DeleteRole removes a role and its permission rows. Deletion is blocked
// while user profiles reference the role.
func (s *Service) DeleteRole(ctx context.Context, actorID uuid.UUID, id uuid.UUID) error {
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	if s.invalidator != nil {
		s.invalidator.InvalidateAll()
	}
	s.recordAudit(ctx, actorID, "role.delete", id, nil)
	return nil
}

// GetRolePermissions returns the role and its permission matrix. Super-admin
// roles yield the synthesized full-access matrix, since their stored rows
// (if any) are never consulted. Known modules without a stored row are
// padded with the fail-closed default so the matrix is always complete.
func (s *Service) GetRolePermissions(ctx context.Context, id uuid.UUID) (Role, []authz.ModulePermission, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, nil, err
	}

	if role.IsSuperAdmin {
		matrix := make([]authz.ModulePermission, 0, len(authz.KnownModules()))
		for _, module := range authz.KnownModules() {
			matrix = append(matrix, authz.FullAccess(module))
		}
		return role, matrix, nil
	}

	stored, err := s.repo.ListPermissions(ctx, id)
	if err != nil {
		return Role{}, nil, err
	}
	byModule := make(map[string]authz.ModulePermission, len(stored))
	for _, p := range stored {
		byModule[p.Module] = p.Normalize()
	}
	matrix := make([]authz.ModulePermission, 0, len(authz.KnownModules()))
	for _, module := range authz.KnownModules() {
		if p, ok := byModule[module]; ok {
			matrix = append(matrix, p)
		} else {
			matrix = append(matrix, authz.NoAccess(module))
		}
	}
	return role, matrix, nil
}

// UpsertModulePermissions replaces the role's permission matrix in one
// logical operation. Entries with view scope none get their action flags
// zeroed before the write; a super-admin role's matrix cannot be edited.
func (s *Service) UpsertModulePermissions(ctx context.Context, actorID uuid.UUID, roleID uuid.UUID, req UpsertPermissionsRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("roles: validate permissions: %w", err)
	}

	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSuperAdmin {
		return ErrImplicitPermissions
	}

	known := make(map[string]struct{}, len(authz.KnownModules()))
	for _, module := range authz.KnownModules() {
		known[module] = struct{}{}
	}

	seen := make(map[string]struct{}, len(req.Entries))
	entries := make([]authz.ModulePermission, 0, len(req.Entries))
	for _, entry := range req.Entries {
		if _, ok := known[entry.Module]; !ok {
			return fmt.Errorf("%w: unknown module %q", ErrInvalidEntry, entry.Module)
		}
		if !entry.ViewType.Valid() {
			return fmt.Errorf("%w: view type %q for module %q", ErrInvalidEntry, entry.ViewType, entry.Module)
		}
		if _, dup := seen[entry.Module]; dup {
			return fmt.Errorf("%w: duplicate module %q", ErrInvalidEntry, entry.Module)
		}
		seen[entry.Module] = struct{}{}
		entries = append(entries, entry.Normalize())
	}

	if err := s.repo.ReplacePermissions(ctx, roleID, entries); err != nil {
		return err
	}
	if s.invalidator != nil {
		s.invalidator.InvalidateAll()
	}
	s.recordAudit(ctx, actorID, "role.permissions.update", roleID, map[string]any{"modules": len(entries)})
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID uuid.UUID, action string, roleID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "role",
		EntityID: roleID.String(),
		Meta:     meta,
	}); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
