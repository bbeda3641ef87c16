package authz_test

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian/internal/authz"
)

type blockingSource struct {
	mu      sync.Mutex
	perms   map[uuid.UUID]authz.UserPermissions
	err     error
	release chan struct{}
}

func (s *blockingSource) Resolve(ctx context.Context, userID uuid.UUID) (authz.UserPermissions, error) {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return authz.UserPermissions{}, s.err
	}
	if p, ok := s.perms[userID]; ok {
		return p, nil
	}
	return authz.UserPermissions{}, authz.ErrProfileNotFound
}

func salesRepPermissions() authz.UserPermissions {
	return authz.UserPermissions{
		Modules: map[string]authz.ModulePermission{
			authz.ModuleLeads: {
				Module:    authz.ModuleLeads,
				ViewType:  authz.ViewAssigned,
				CanCreate: true,
				CanEdit:   true,
			},
		},
	}
}

func TestAuthorizerFailsClosedBeforeLoad(t *testing.T) {
	a := authz.NewAuthorizer(&blockingSource{})

	assert.Equal(t, authz.StateUnauthenticated, a.State())
	assert.False(t, a.Loaded())
	assert.False(t, a.Can(authz.ModuleLeads, authz.ActionCreate))
	assert.False(t, a.CanView(authz.ModuleLeads))
	assert.False(t, a.IsSuperAdmin())

	_, ok := a.ModulePermissions(authz.ModuleLeads)
	assert.False(t, ok, "grants must read as not-loaded, not as a concrete value")
}

func TestAuthorizerReadyContract(t *testing.T) {
	userID := uuid.New()
	source := &blockingSource{perms: map[uuid.UUID]authz.UserPermissions{userID: salesRepPermissions()}}
	a := authz.NewAuthorizer(source)

	require.NoError(t, a.Load(context.Background(), userID))
	require.True(t, a.Loaded())

	assert.True(t, a.Can(authz.ModuleLeads, authz.ActionCreate))
	assert.True(t, a.Can(authz.ModuleLeads, authz.ActionEdit))
	assert.False(t, a.Can(authz.ModuleLeads, authz.ActionDelete))
	assert.True(t, a.CanView(authz.ModuleLeads))
	assert.True(t, a.CanView(authz.ModuleLeads, authz.ViewAssigned))
	assert.False(t, a.CanView(authz.ModuleLeads, authz.ViewAll))

	// Once loaded, every module name yields a concrete grant.
	perm, ok := a.ModulePermissions("unknown_module")
	require.True(t, ok)
	assert.Equal(t, authz.ViewNone, perm.ViewType)

	actor, ok := a.Actor()
	require.True(t, ok)
	assert.Equal(t, userID, actor.UserID)
}

func TestAuthorizerProfileNotFoundSettlesReady(t *testing.T) {
	a := authz.NewAuthorizer(&blockingSource{})

	err := a.Load(context.Background(), uuid.New())
	require.ErrorIs(t, err, authz.ErrProfileNotFound)

	// Non-fatal: state is Ready with empty grants and the error surfaced.
	assert.Equal(t, authz.StateReady, a.State())
	assert.ErrorIs(t, a.Err(), authz.ErrProfileNotFound)
	assert.False(t, a.Can(authz.ModuleLeads, authz.ActionCreate))
	assert.False(t, a.IsSuperAdmin())
}

func TestAuthorizerRefreshFailureKeepsGrants(t *testing.T) {
	userID := uuid.New()
	source := &blockingSource{perms: map[uuid.UUID]authz.UserPermissions{userID: salesRepPermissions()}}
	a := authz.NewAuthorizer(source)
	require.NoError(t, a.Load(context.Background(), userID))

	source.mu.Lock()
	source.err = errors.New("store unreachable")
	source.mu.Unlock()

	err := a.Refresh(context.Background())
	require.Error(t, err)

	// The failed refresh must not clear previously good permissions.
	assert.True(t, a.Can(authz.ModuleLeads, authz.ActionCreate))
	assert.Error(t, a.Err())
}

func TestAuthorizerSignOutClearsAtomically(t *testing.T) {
	userID := uuid.New()
	source := &blockingSource{perms: map[uuid.UUID]authz.UserPermissions{userID: salesRepPermissions()}}
	a := authz.NewAuthorizer(source)
	require.NoError(t, a.Load(context.Background(), userID))

	a.SignOut()

	assert.Equal(t, authz.StateSignedOut, a.State())
	assert.False(t, a.Can(authz.ModuleLeads, authz.ActionCreate))
	_, ok := a.UserID()
	assert.False(t, ok)
	_, ok = a.Actor()
	assert.False(t, ok)
}

func TestAuthorizerDiscardsSupersededLoad(t *testing.T) {
	userID := uuid.New()
	source := &blockingSource{
		perms:   map[uuid.UUID]authz.UserPermissions{userID: salesRepPermissions()},
		release: make(chan struct{}),
	}
	a := authz.NewAuthorizer(source)

	done := make(chan error, 1)
	go func() {
		done <- a.Load(context.Background(), userID)
	}()

	// Sign out while the resolution is still in flight, then let it finish.
	for a.State() != authz.StateLoading {
		runtime.Gosched()
	}
	a.SignOut()
	close(source.release)

	err := <-done
	require.ErrorIs(t, err, authz.ErrSuperseded)
	assert.Equal(t, authz.StateSignedOut, a.State())
	assert.False(t, a.Can(authz.ModuleLeads, authz.ActionCreate))
}

func TestAuthorizerSnapshotReplacementIsAtomic(t *testing.T) {
	userID := uuid.New()
	oldPerms := authz.UserPermissions{Modules: map[string]authz.ModulePermission{
		authz.ModuleLeads:     {Module: authz.ModuleLeads, ViewType: authz.ViewAll, CanCreate: true},
		authz.ModuleCustomers: {Module: authz.ModuleCustomers, ViewType: authz.ViewAll, CanCreate: true},
	}}
	newPerms := authz.UserPermissions{Modules: map[string]authz.ModulePermission{
		authz.ModuleLeads:     {Module: authz.ModuleLeads, ViewType: authz.ViewAssigned},
		authz.ModuleCustomers: {Module: authz.ModuleCustomers, ViewType: authz.ViewAssigned},
	}}

	source := &blockingSource{perms: map[uuid.UUID]authz.UserPermissions{userID: oldPerms}}
	a := authz.NewAuthorizer(source)
	require.NoError(t, a.Load(context.Background(), userID))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		// A single snapshot read must be entirely-old or entirely-new,
		// never a mix across modules.
		for {
			select {
			case <-stop:
				return
			default:
			}
			actor, ok := a.Actor()
			if !ok {
				continue
			}
			leadsPerm := actor.Module(authz.ModuleLeads)
			customersPerm := actor.Module(authz.ModuleCustomers)
			if leadsPerm.ViewType != customersPerm.ViewType {
				t.Error("observed mixed snapshot during refresh")
				return
			}
		}
	}()

	for i := 0; i < 100; i++ {
		source.mu.Lock()
		source.perms[userID] = newPerms
		source.mu.Unlock()
		require.NoError(t, a.Refresh(context.Background()))

		source.mu.Lock()
		source.perms[userID] = oldPerms
		source.mu.Unlock()
		require.NoError(t, a.Refresh(context.Background()))
	}
	close(stop)
	wg.Wait()
}
