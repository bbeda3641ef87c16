// Package authz implements the role-based access model: per-module grants,
// resolved user permission snapshots, and the helpers every feature consults
// before reading or mutating business data.
package authz

import (
	"errors"

	"github.com/google/uuid"
)

// ViewType is the visibility scope granted for a module.
type ViewType string

const (
	// ViewNone grants no visibility.
	ViewNone ViewType = "none"
	// ViewAssigned restricts visibility to records tied to the user.
	ViewAssigned ViewType = "assigned"
	// ViewAll grants unrestricted visibility within the tenant.
	ViewAll ViewType = "all"
)

// Valid reports whether v is one of the known scopes.
func (v ViewType) Valid() bool {
	switch v {
	case ViewNone, ViewAssigned, ViewAll:
		return true
	}
	return false
}

// Action names an operation gated by a module grant.
type Action string

const (
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"

	// ActionManageUsers and ActionManageRoles are meta-actions: they hold
	// when the user has any mutation grant on the corresponding
	// administrative module.
	ActionManageUsers Action = "manage_users"
	ActionManageRoles Action = "manage_roles"
)

// Module identifiers for every permission-governed data area.
const (
	ModuleLeads         = "leads"
	ModuleCustomers     = "customers"
	ModuleOpportunities = "opportunities"
	ModuleActivities    = "activities"
	ModuleSettingsUsers = "settings_users"
	ModuleSettingsRoles = "settings_roles"
)

// KnownModules returns every module subject to independent grants.
func KnownModules() []string {
	return []string{
		ModuleLeads,
		ModuleCustomers,
		ModuleOpportunities,
		ModuleActivities,
		ModuleSettingsUsers,
		ModuleSettingsRoles,
	}
}

// ErrPermissionDenied indicates an action outside the resolved grants.
var ErrPermissionDenied = errors.New("authz: permission denied")

// ModulePermission is the grant a role holds on a single module.
type ModulePermission struct {
	Module    string   `json:"module"`
	ViewType  ViewType `json:"view_type"`
	CanCreate bool     `json:"can_create"`
	CanEdit   bool     `json:"can_edit"`
	CanDelete bool     `json:"can_delete"`
}

// NoAccess is the fail-closed grant used wherever no row exists.
func NoAccess(module string) ModulePermission {
	return ModulePermission{Module: module, ViewType: ViewNone}
}

// FullAccess is the grant synthesized for super-admin roles.
func FullAccess(module string) ModulePermission {
	return ModulePermission{
		Module:    module,
		ViewType:  ViewAll,
		CanCreate: true,
		CanEdit:   true,
		CanDelete: true,
	}
}

// Normalize zeroes the action flags when the view scope is none. Action
// grants are meaningless without at least assigned visibility.
func (p ModulePermission) Normalize() ModulePermission {
	if p.ViewType == "" || p.ViewType == ViewNone {
		p.ViewType = ViewNone
		p.CanCreate = false
		p.CanEdit = false
		p.CanDelete = false
	}
	return p
}

// Allows reports whether the grant covers a direct action.
func (p ModulePermission) Allows(action Action) bool {
	switch action {
	case ActionCreate:
		return p.CanCreate
	case ActionEdit:
		return p.CanEdit
	case ActionDelete:
		return p.CanDelete
	}
	return false
}

// AllowsAnyAction reports whether any mutation flag is set.
func (p ModulePermission) AllowsAnyAction() bool {
	return p.CanCreate || p.CanEdit || p.CanDelete
}

// UserPermissions is the resolved permission snapshot for one user. It is
// derived, never persisted, and always replaced wholesale.
type UserPermissions struct {
	IsSuperAdmin bool                        `json:"is_super_admin"`
	Modules      map[string]ModulePermission `json:"modules"`
}

// EmptyPermissions returns a fail-closed snapshot with no grants.
func EmptyPermissions() UserPermissions {
	return UserPermissions{Modules: map[string]ModulePermission{}}
}

// SuperAdminPermissions synthesizes the implicit all-access snapshot. Stored
// permission rows for super-admin roles are never consulted.
func SuperAdminPermissions() UserPermissions {
	modules := make(map[string]ModulePermission, len(KnownModules()))
	for _, name := range KnownModules() {
		modules[name] = FullAccess(name)
	}
	return UserPermissions{IsSuperAdmin: true, Modules: modules}
}

// Module returns the grant for the named module. Unknown or unlisted modules
// yield the fail-closed default, never a missing value.
func (u UserPermissions) Module(name string) ModulePermission {
	if u.IsSuperAdmin {
		return FullAccess(name)
	}
	if p, ok := u.Modules[name]; ok {
		return p.Normalize()
	}
	return NoAccess(name)
}

// Can reports whether the snapshot grants the action on the module.
func (u UserPermissions) Can(module string, action Action) bool {
	if u.IsSuperAdmin {
		return true
	}
	switch action {
	case ActionManageUsers:
		return u.Module(ModuleSettingsUsers).AllowsAnyAction()
	case ActionManageRoles:
		return u.Module(ModuleSettingsRoles).AllowsAnyAction()
	}
	return u.Module(module).Allows(action)
}

// CanView reports whether the module is visible. With scopes given it
// requires an exact match; otherwise any non-none scope passes.
func (u UserPermissions) CanView(module string, scopes ...ViewType) bool {
	if u.IsSuperAdmin {
		return true
	}
	vt := u.Module(module).ViewType
	if vt == ViewNone {
		return false
	}
	if len(scopes) == 0 {
		return true
	}
	for _, want := range scopes {
		if vt == want {
			return true
		}
	}
	return false
}

// Actor couples an authenticated user with their resolved permissions. It is
// passed explicitly into every scoped data accessor.
type Actor struct {
	UserID      uuid.UUID
	Permissions UserPermissions
}

// Module returns the actor's grant for the named module.
func (a Actor) Module(name string) ModulePermission {
	return a.Permissions.Module(name)
}

// Can reports whether the actor may perform the action.
func (a Actor) Can(module string, action Action) bool {
	return a.Permissions.Can(module, action)
}
