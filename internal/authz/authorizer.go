package authz

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// State describes the authorizer lifecycle.
type State int

const (
	// StateUnauthenticated is the initial state: no identity, no grants.
	StateUnauthenticated State = iota
	// StateLoading means the identity is known and resolution is in flight.
	// All permission queries fail closed until it completes.
	StateLoading
	// StateReady means identity and permissions are both populated. A Ready
	// snapshot may still carry a resolution error alongside fail-closed
	// grants; it never fails open.
	StateReady
	// StateSignedOut means identity and permissions were cleared explicitly.
	StateSignedOut
)

// ErrSuperseded is returned when a load finished after a newer load or a
// sign-out already replaced the session state; its result was discarded.
var ErrSuperseded = errors.New("authz: load superseded")

// PermissionSource yields snapshots for the authorizer. Implemented by
// Resolver and by Service (the caching layer).
type PermissionSource interface {
	Resolve(ctx context.Context, userID uuid.UUID) (UserPermissions, error)
}

type snapshot struct {
	state  State
	userID uuid.UUID
	perms  UserPermissions
	err    error
}

// Authorizer is the session-scoped source of truth for "who is the current
// user and what can they do". The identity/permissions pair is held in a
// single snapshot and replaced wholesale, so readers never observe a mix of
// old and new entries. A generation counter discards resolutions that
// complete after a sign-out or a newer load.
type Authorizer struct {
	source PermissionSource

	mu  sync.Mutex
	cur atomic.Pointer[snapshot]
	gen atomic.Uint64
}

// NewAuthorizer constructs an Authorizer in the unauthenticated state.
func NewAuthorizer(source PermissionSource) *Authorizer {
	a := &Authorizer{source: source}
	a.cur.Store(&snapshot{state: StateUnauthenticated})
	return a
}

// Load resolves permissions for the given identity and installs the result.
//
// Resolution failures never fail open: a missing profile settles into Ready
// with empty grants and the error surfaced via Err; a store failure keeps
// the previous snapshot's grants for the same identity (a failed refresh
// must not clear good permissions) and also surfaces the error. If a newer
// load or a sign-out superseded this call while resolution was in flight,
// the result is discarded and ErrSuperseded is returned.
func (a *Authorizer) Load(ctx context.Context, userID uuid.UUID) error {
	gen := a.gen.Add(1)
	prev := a.cur.Load()
	a.install(gen, &snapshot{state: StateLoading, userID: userID})

	perms, err := a.source.Resolve(ctx, userID)

	next := &snapshot{state: StateReady, userID: userID, perms: perms}
	switch {
	case err == nil:
	case errors.Is(err, ErrProfileNotFound):
		next.perms = EmptyPermissions()
		next.err = err
	default:
		next.perms = EmptyPermissions()
		if prev != nil && prev.state == StateReady && prev.userID == userID {
			next.perms = prev.perms
		}
		next.err = err
	}

	if !a.install(gen, next) {
		return ErrSuperseded
	}
	if next.err != nil {
		return next.err
	}
	return nil
}

// Refresh re-resolves permissions for the current identity.
func (a *Authorizer) Refresh(ctx context.Context) error {
	cur := a.cur.Load()
	if cur.state != StateReady && cur.state != StateLoading {
		return errors.New("authz: no active session to refresh")
	}
	return a.Load(ctx, cur.userID)
}

// SignOut clears identity and permissions atomically and invalidates any
// in-flight resolution.
func (a *Authorizer) SignOut() {
	gen := a.gen.Add(1)
	a.install(gen, &snapshot{state: StateSignedOut})
}

// install stores next if gen is still current.
func (a *Authorizer) install(gen uint64, next *snapshot) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gen.Load() != gen {
		return false
	}
	a.cur.Store(next)
	return true
}

// State returns the current lifecycle state.
func (a *Authorizer) State() State {
	return a.cur.Load().state
}

// Loaded reports whether permissions have been resolved. Feature code gates
// destructive rendering on this flag, never on a truthy grants check.
func (a *Authorizer) Loaded() bool {
	return a.cur.Load().state == StateReady
}

// Err returns the error surfaced by the most recent resolution, if any.
func (a *Authorizer) Err() error {
	return a.cur.Load().err
}

// UserID returns the current identity when one is established.
func (a *Authorizer) UserID() (uuid.UUID, bool) {
	cur := a.cur.Load()
	if cur.state == StateReady || cur.state == StateLoading {
		return cur.userID, true
	}
	return uuid.UUID{}, false
}

// ModulePermissions returns the resolved grant for a module. The bool is
// false only while permissions have not loaded; once Ready it always
// returns a concrete grant, falling back to the fail-closed default for
// any module name.
func (a *Authorizer) ModulePermissions(module string) (ModulePermission, bool) {
	cur := a.cur.Load()
	if cur.state != StateReady {
		return ModulePermission{}, false
	}
	return cur.perms.Module(module), true
}

// Can reports whether the current user holds the action grant. It fails
// closed in every state except Ready.
func (a *Authorizer) Can(module string, action Action) bool {
	cur := a.cur.Load()
	if cur.state != StateReady {
		return false
	}
	return cur.perms.Can(module, action)
}

// CanView reports whether the module is visible to the current user,
// optionally requiring an exact scope match. Fails closed until Ready.
func (a *Authorizer) CanView(module string, scopes ...ViewType) bool {
	cur := a.cur.Load()
	if cur.state != StateReady {
		return false
	}
	return cur.perms.CanView(module, scopes...)
}

// IsSuperAdmin reports whether the current user's role is a super-admin.
func (a *Authorizer) IsSuperAdmin() bool {
	cur := a.cur.Load()
	return cur.state == StateReady && cur.perms.IsSuperAdmin
}

// Actor returns the explicit actor value handed to scoped data accessors.
func (a *Authorizer) Actor() (Actor, bool) {
	cur := a.cur.Load()
	if cur.state != StateReady {
		return Actor{}, false
	}
	return Actor{UserID: cur.userID, Permissions: cur.perms}, true
}
