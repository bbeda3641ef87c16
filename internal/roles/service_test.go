package roles

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian/internal/authz"
)

type mockRepository struct {
	roles       map[uuid.UUID]Role
	permissions map[uuid.UUID][]authz.ModulePermission
	referenced  map[uuid.UUID]bool

	replaceCalls int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		roles:       make(map[uuid.UUID]Role),
		permissions: make(map[uuid.UUID][]authz.ModulePermission),
		referenced:  make(map[uuid.UUID]bool),
	}
}

func (m *mockRepository) ListRoles(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockRepository) GetRole(ctx context.Context, id uuid.UUID) (Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return r, nil
}

func (m *mockRepository) CreateRole(ctx context.Context, name, foldedName string, isSuperAdmin bool) (Role, error) {
	for _, r := range m.roles {
		if strings.EqualFold(r.Name, name) {
			return Role{}, ErrNameTaken
		}
	}
	role := Role{ID: uuid.New(), Name: name, IsSuperAdmin: isSuperAdmin, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.roles[role.ID] = role
	return role, nil
}

func (m *mockRepository) RenameRole(ctx context.Context, id uuid.UUID, name, foldedName string) (Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	role.Name = name
	m.roles[id] = role
	return role, nil
}

func (m *mockRepository) DeleteRole(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.roles[id]; !ok {
		return ErrNotFound
	}
	if m.referenced[id] {
		return ErrRoleInUse
	}
	delete(m.roles, id)
	delete(m.permissions, id)
	return nil
}

func (m *mockRepository) ListPermissions(ctx context.Context, roleID uuid.UUID) ([]authz.ModulePermission, error) {
	return m.permissions[roleID], nil
}

func (m *mockRepository) ReplacePermissions(ctx context.Context, roleID uuid.UUID, entries []authz.ModulePermission) error {
	m.replaceCalls++
	byModule := make(map[string]authz.ModulePermission)
	for _, p := range m.permissions[roleID] {
		byModule[p.Module] = p
	}
	for _, e := range entries {
		byModule[e.Module] = e
	}
	out := make([]authz.ModulePermission, 0, len(byModule))
	for _, p := range byModule {
		out = append(out, p)
	}
	m.permissions[roleID] = out
	return nil
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) InvalidateAll() { c.calls++ }

func newTestService() (*Service, *mockRepository, *countingInvalidator) {
	repo := newMockRepository()
	inv := &countingInvalidator{}
	return NewService(repo, inv, nil, nil), repo, inv
}

func TestCreateRoleValidation(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CreateRole(context.Background(), uuid.New(), CreateRoleRequest{Name: "  "})
	require.Error(t, err, "empty name must be rejected before any store call")

	role, err := svc.CreateRole(context.Background(), uuid.New(), CreateRoleRequest{Name: "Sales Rep"})
	require.NoError(t, err)
	assert.Equal(t, "Sales Rep", role.Name)

	_, err = svc.CreateRole(context.Background(), uuid.New(), CreateRoleRequest{Name: "sales rep"})
	require.ErrorIs(t, err, ErrNameTaken)
}

func TestUpsertPermissionsNormalizesNoneView(t *testing.T) {
	svc, repo, inv := newTestService()
	role, err := svc.CreateRole(context.Background(), uuid.New(), CreateRoleRequest{Name: "Support"})
	require.NoError(t, err)

	err = svc.UpsertModulePermissions(context.Background(), uuid.New(), role.ID, UpsertPermissionsRequest{
		Entries: []authz.ModulePermission{
			{Module: authz.ModuleLeads, ViewType: authz.ViewNone, CanCreate: true, CanEdit: true, CanDelete: true},
			{Module: authz.ModuleCustomers, ViewType: authz.ViewAssigned, CanEdit: true},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, repo.replaceCalls)
	assert.Equal(t, 1, inv.calls, "matrix edit must invalidate cached snapshots")

	_, matrix, err := svc.GetRolePermissions(context.Background(), role.ID)
	require.NoError(t, err)
	byModule := make(map[string]authz.ModulePermission)
	for _, p := range matrix {
		byModule[p.Module] = p
	}
	leads := byModule[authz.ModuleLeads]
	assert.False(t, leads.CanCreate)
	assert.False(t, leads.CanEdit)
	assert.False(t, leads.CanDelete)
	customers := byModule[authz.ModuleCustomers]
	assert.True(t, customers.CanEdit)
}

func TestUpsertPermissionsRejectsBadEntries(t *testing.T) {
	svc, repo, _ := newTestService()
	role, err := svc.CreateRole(context.Background(), uuid.New(), CreateRoleRequest{Name: "Support"})
	require.NoError(t, err)

	cases := []struct {
		name    string
		entries []authz.ModulePermission
	}{
		{"unknown module", []authz.ModulePermission{{Module: "payroll", ViewType: authz.ViewAll}}},
		{"invalid view type", []authz.ModulePermission{{Module: authz.ModuleLeads, ViewType: "some"}}},
		{"duplicate module", []authz.ModulePermission{
			{Module: authz.ModuleLeads, ViewType: authz.ViewAll},
			{Module: authz.ModuleLeads, ViewType: authz.ViewNone},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.UpsertModulePermissions(context.Background(), uuid.New(), role.ID, UpsertPermissionsRequest{Entries: tc.entries})
			require.ErrorIs(t, err, ErrInvalidEntry)
		})
	}
	assert.Zero(t, repo.replaceCalls, "invalid input must be rejected before any store write")
}

func TestUpsertPermissionsSuperAdminRejected(t *testing.T) {
	svc, _, _ := newTestService()
	role, err := svc.CreateRole(context.Background(), uuid.New(), CreateRoleRequest{Name: "Owner", IsSuperAdmin: true})
	require.NoError(t, err)

	err = svc.UpsertModulePermissions(context.Background(), uuid.New(), role.ID, UpsertPermissionsRequest{
		Entries: []authz.ModulePermission{{Module: authz.ModuleLeads, ViewType: authz.ViewAll}},
	})
	require.ErrorIs(t, err, ErrImplicitPermissions)

	_, matrix, err := svc.GetRolePermissions(context.Background(), role.ID)
	require.NoError(t, err)
	for _, p := range matrix {
		assert.Equal(t, authz.ViewAll, p.ViewType)
		assert.True(t, p.CanCreate)
	}
}

func TestDeleteRoleCascadeAndInUse(t *testing.T) {
	svc, repo, _ := newTestService()
	role, err := svc.CreateRole(context.Background(), uuid.New(), CreateRoleRequest{Name: "Temp"})
	require.NoError(t, err)
	require.NoError(t, svc.UpsertModulePermissions(context.Background(), uuid.New(), role.ID, UpsertPermissionsRequest{
		Entries: []authz.ModulePermission{{Module: authz.ModuleLeads, ViewType: authz.ViewAll}},
	}))

	repo.referenced[role.ID] = true
	require.ErrorIs(t, svc.DeleteRole(context.Background(), uuid.New(), role.ID), ErrRoleInUse)

	repo.referenced[role.ID] = false
	require.NoError(t, svc.DeleteRole(context.Background(), uuid.New(), role.ID))

	_, _, err = svc.GetRolePermissions(context.Background(), role.ID)
	require.ErrorIs(t, err, ErrNotFound, "no orphaned rows remain queryable after deletion")
}
