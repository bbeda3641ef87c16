package authz_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian/internal/authz"
)

func TestServiceCachesSnapshots(t *testing.T) {
	dir := newStubDirectory()
	userID := uuid.New()
	seedRole(dir, userID, false, authz.ModulePermission{
		Module: authz.ModuleLeads, ViewType: authz.ViewAll, CanCreate: true,
	})

	svc := authz.NewService(authz.NewResolver(dir), nil)

	first, err := svc.Resolve(context.Background(), userID)
	require.NoError(t, err)
	_, err = svc.Resolve(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, dir.rowReads, "second call must hit the cache")

	svc.Invalidate(userID)
	second, err := svc.Resolve(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, dir.rowReads)
	assert.Equal(t, first, second)
}

func TestServiceInvalidateAll(t *testing.T) {
	dir := newStubDirectory()
	alice, bob := uuid.New(), uuid.New()
	seedRole(dir, alice, false)
	seedRole(dir, bob, false)

	svc := authz.NewService(authz.NewResolver(dir), nil)
	_, err := svc.Resolve(context.Background(), alice)
	require.NoError(t, err)
	_, err = svc.Resolve(context.Background(), bob)
	require.NoError(t, err)
	require.Equal(t, 2, dir.rowReads)

	svc.InvalidateAll()
	_, err = svc.Resolve(context.Background(), alice)
	require.NoError(t, err)
	_, err = svc.Resolve(context.Background(), bob)
	require.NoError(t, err)
	assert.Equal(t, 4, dir.rowReads)
}

func TestServiceKeepsCachedSnapshotOnFailure(t *testing.T) {
	dir := newStubDirectory()
	userID := uuid.New()
	seedRole(dir, userID, false, authz.ModulePermission{
		Module: authz.ModuleLeads, ViewType: authz.ViewAssigned, CanEdit: true,
	})

	svc := authz.NewService(authz.NewResolver(dir), nil)
	good, err := svc.Resolve(context.Background(), userID)
	require.NoError(t, err)

	// The cache hit path never reaches the store, so break the profile
	// lookup and force a refresh-style miss.
	dir.profileErr = assert.AnError
	svc.Invalidate(userID)
	_, err = svc.Resolve(context.Background(), userID)
	require.Error(t, err, "miss with no cached entry propagates the failure")

	// Re-seed the cache, then fail again: the cached snapshot survives.
	dir.profileErr = nil
	_, err = svc.Resolve(context.Background(), userID)
	require.NoError(t, err)
	dir.profileErr = assert.AnError
	again, err := svc.Resolve(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, good, again)
}

func TestMetaActions(t *testing.T) {
	perms := authz.UserPermissions{Modules: map[string]authz.ModulePermission{
		authz.ModuleSettingsUsers: {Module: authz.ModuleSettingsUsers, ViewType: authz.ViewAll, CanEdit: true},
	}}

	assert.True(t, perms.Can("", authz.ActionManageUsers))
	assert.False(t, perms.Can("", authz.ActionManageRoles))

	super := authz.SuperAdminPermissions()
	assert.True(t, super.Can("", authz.ActionManageUsers))
	assert.True(t, super.Can("", authz.ActionManageRoles))
}
