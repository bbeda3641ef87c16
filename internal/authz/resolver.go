package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrProfileNotFound indicates an authenticated user without a directory
// profile. Callers treat it as "no permissions", not as a hard failure.
var ErrProfileNotFound = errors.New("authz: profile not found")

// ErrRoleNotFound indicates a profile referencing a role that no longer
// exists. Resolution treats it the same as holding no role.
var ErrRoleNotFound = errors.New("authz: role not found")

// Profile is the slice of the directory record the resolver needs.
type Profile struct {
	UserID uuid.UUID
	RoleID *uuid.UUID
}

// RoleRef is the slice of a role record the resolver needs.
type RoleRef struct {
	ID           uuid.UUID
	Name         string
	IsSuperAdmin bool
}

// DirectoryStore supplies identity and grant rows from the relational store.
type DirectoryStore interface {
	FindProfile(ctx context.Context, userID uuid.UUID) (Profile, error)
	FindRole(ctx context.Context, roleID uuid.UUID) (RoleRef, error)
	ListRolePermissions(ctx context.Context, roleID uuid.UUID) ([]ModulePermission, error)
}

// Resolver computes permission snapshots. It performs pure reads, holds no
// cache, and is safe to call repeatedly; identical inputs yield identical
// snapshots.
type Resolver struct {
	store DirectoryStore
}

// NewResolver constructs a Resolver backed by the directory store.
func NewResolver(store DirectoryStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve produces the UserPermissions snapshot for a user.
//
// A missing profile fails with ErrProfileNotFound. A role-less profile and a
// role that no longer exists both resolve to the empty fail-closed snapshot.
// Super-admin roles short-circuit to the synthesized all-access snapshot
// without reading stored permission rows.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID) (UserPermissions, error) {
	profile, err := r.store.FindProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return UserPermissions{}, ErrProfileNotFound
		}
		return UserPermissions{}, fmt.Errorf("authz: find profile: %w", err)
	}

	if profile.RoleID == nil {
		return EmptyPermissions(), nil
	}

	role, err := r.store.FindRole(ctx, *profile.RoleID)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return EmptyPermissions(), nil
		}
		return UserPermissions{}, fmt.Errorf("authz: find role: %w", err)
	}

	if role.IsSuperAdmin {
		return SuperAdminPermissions(), nil
	}

	rows, err := r.store.ListRolePermissions(ctx, role.ID)
	if err != nil {
		return UserPermissions{}, fmt.Errorf("authz: list role permissions: %w", err)
	}

	modules := make(map[string]ModulePermission, len(rows))
	for _, row := range rows {
		modules[row.Module] = row.Normalize()
	}
	return UserPermissions{Modules: modules}, nil
}
