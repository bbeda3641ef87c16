package leads_test

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian/internal/authz"
	"github.com/meridian-crm/meridian/internal/leads"
	"github.com/meridian-crm/meridian/internal/notify"
	_ "github.com/meridian-crm/meridian/testing"
)

type mockRepository struct {
	records   map[uuid.UUID]leads.Lead
	listCalls int
}

func newMockRepository() *mockRepository {
	return &mockRepository{records: make(map[uuid.UUID]leads.Lead)}
}

func (m *mockRepository) visible(scope leads.Scope) []leads.Lead {
	var out []leads.Lead
	for _, l := range m.records {
		if scope.AssignedOnly && l.AssignedTo != scope.UserID {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *mockRepository) List(_ context.Context, scope leads.Scope, filters leads.ListFilters, limit, offset int) ([]leads.Lead, int, error) {
	m.listCalls++
	all := m.visible(scope)
	var filtered []leads.Lead
	for _, l := range all {
		if filters.Status != "" && l.Status != filters.Status {
			continue
		}
		if filters.Search != "" && !strings.Contains(l.Name, filters.Search) {
			continue
		}
		filtered = append(filtered, l)
	}
	all = filtered
	total := len(all)
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockRepository) Get(_ context.Context, scope leads.Scope, id uuid.UUID) (leads.Lead, error) {
	l, ok := m.records[id]
	if !ok {
		return leads.Lead{}, leads.ErrNotFound
	}
	if scope.AssignedOnly && l.AssignedTo != scope.UserID {
		return leads.Lead{}, leads.ErrNotFound
	}
	return l, nil
}

func (m *mockRepository) Create(_ context.Context, lead leads.Lead) (leads.Lead, error) {
	m.records[lead.ID] = lead
	return lead, nil
}

func (m *mockRepository) Update(_ context.Context, scope leads.Scope, id uuid.UUID, req leads.UpdateLeadRequest) (leads.Lead, error) {
	l, err := m.Get(context.Background(), scope, id)
	if err != nil {
		return leads.Lead{}, err
	}
	if req.Name != nil {
		l.Name = *req.Name
	}
	if req.Status != nil {
		l.Status = *req.Status
	}
	m.records[id] = l
	return l, nil
}

func (m *mockRepository) Delete(_ context.Context, scope leads.Scope, id uuid.UUID) error {
	if _, err := m.Get(context.Background(), scope, id); err != nil {
		return err
	}
	delete(m.records, id)
	return nil
}

type recordingPublisher struct {
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, module string, event notify.Event) error {
	p.events = append(p.events, event)
	return nil
}

func seedLead(repo *mockRepository, name string, assignedTo uuid.UUID) leads.Lead {
	l := leads.Lead{ID: uuid.New(), Name: name, Status: leads.StatusNew, AssignedTo: assignedTo, CreatedBy: assignedTo}
	repo.records[l.ID] = l
	return l
}

func assignedPerm(create, edit, del bool) authz.ModulePermission {
	return authz.ModulePermission{
		Module:    authz.ModuleLeads,
		ViewType:  authz.ViewAssigned,
		CanCreate: create,
		CanEdit:   edit,
		CanDelete: del,
	}
}

func TestListNoneViewShortCircuits(t *testing.T) {
	repo := newMockRepository()
	seedLead(repo, "Acme", uuid.New())
	svc := leads.NewService(repo, nil, nil)

	actor := authz.Actor{UserID: uuid.New(), Permissions: authz.EmptyPermissions()}
	list, pagination, err := svc.List(context.Background(), actor, actor.Module(authz.ModuleLeads), leads.ListFilters{}, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, pagination.Total)
	assert.Zero(t, repo.listCalls, "store must not be queried under none view")
}

func TestListAssignedViewNarrows(t *testing.T) {
	repo := newMockRepository()
	userA := uuid.New()
	userB := uuid.New()
	mine := seedLead(repo, "Acme", userA)
	seedLead(repo, "Bravo", userB)
	seedLead(repo, "Cobalt", userB)
	svc := leads.NewService(repo, nil, nil)

	actor := authz.Actor{UserID: userA}
	list, pagination, err := svc.List(context.Background(), actor, assignedPerm(false, false, false), leads.ListFilters{}, 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)
	assert.Equal(t, 1, pagination.Total)
}

func TestListAssignedViewUnderPagination(t *testing.T) {
	repo := newMockRepository()
	userA := uuid.New()
	userB := uuid.New()
	names := []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo"}
	for _, name := range names {
		seedLead(repo, name, userA)
		seedLead(repo, name+" other", userB)
	}
	svc := leads.NewService(repo, nil, nil)
	actor := authz.Actor{UserID: userA}

	seen := make(map[uuid.UUID]bool)
	var reportedTotal int
	for page := 1; page <= 3; page++ {
		list, pagination, err := svc.List(context.Background(), actor, assignedPerm(false, false, false), leads.ListFilters{}, page, 2)
		require.NoError(t, err)
		reportedTotal = pagination.Total
		for _, l := range list {
			assert.False(t, seen[l.ID], "record repeated across pages")
			assert.Equal(t, userA, l.AssignedTo, "foreign record leaked into page")
			seen[l.ID] = true
		}
	}
	assert.Equal(t, len(names), reportedTotal)
	assert.Len(t, seen, len(names), "pages must cover the full visible set")
}

func TestListAllViewSeesEverything(t *testing.T) {
	repo := newMockRepository()
	seedLead(repo, "Acme", uuid.New())
	seedLead(repo, "Bravo", uuid.New())
	svc := leads.NewService(repo, nil, nil)

	actor := authz.Actor{UserID: uuid.New()}
	perm := authz.ModulePermission{Module: authz.ModuleLeads, ViewType: authz.ViewAll}
	list, pagination, err := svc.List(context.Background(), actor, perm, leads.ListFilters{}, 1, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 2, pagination.Total)
}

func TestFiltersNeverWidenScope(t *testing.T) {
	repo := newMockRepository()
	userA := uuid.New()
	userB := uuid.New()
	seedLead(repo, "Mine", userA)
	foreign := seedLead(repo, "Foreign", userB)
	svc := leads.NewService(repo, nil, nil)

	// A filter matching only the foreign record returns nothing under
	// assigned view.
	actor := authz.Actor{UserID: userA}
	filters := leads.ListFilters{Search: foreign.Name}
	list, pagination, err := svc.List(context.Background(), actor, assignedPerm(false, false, false), filters, 1, 10)
	require.NoError(t, err)
	for _, l := range list {
		assert.Equal(t, userA, l.AssignedTo)
	}
	assert.LessOrEqual(t, pagination.Total, 1)
}

func TestMutationsGatedByActionFlags(t *testing.T) {
	repo := newMockRepository()
	userA := uuid.New()
	mine := seedLead(repo, "Mine", userA)
	svc := leads.NewService(repo, nil, nil)
	actor := authz.Actor{UserID: userA}

	// No create flag.
	_, err := svc.Create(context.Background(), actor, assignedPerm(false, true, true), leads.CreateLeadRequest{Name: "New lead"})
	assert.ErrorIs(t, err, authz.ErrPermissionDenied)

	// No edit flag.
	name := "Renamed"
	_, err = svc.Update(context.Background(), actor, assignedPerm(true, false, true), mine.ID, leads.UpdateLeadRequest{Name: &name})
	assert.ErrorIs(t, err, authz.ErrPermissionDenied)

	// No delete flag.
	err = svc.Delete(context.Background(), actor, assignedPerm(true, true, false), mine.ID)
	assert.ErrorIs(t, err, authz.ErrPermissionDenied)

	// None view normalizes action flags to false even if set.
	nonePerm := authz.ModulePermission{Module: authz.ModuleLeads, ViewType: authz.ViewNone, CanCreate: true}
	_, err = svc.Create(context.Background(), actor, nonePerm, leads.CreateLeadRequest{Name: "Sneaky"})
	assert.ErrorIs(t, err, authz.ErrPermissionDenied)
}

func TestMutationsRescopedByAssignment(t *testing.T) {
	repo := newMockRepository()
	userA := uuid.New()
	userB := uuid.New()
	foreign := seedLead(repo, "Foreign", userB)
	svc := leads.NewService(repo, nil, nil)
	actor := authz.Actor{UserID: userA}

	// Edit and delete flags are granted, but the record belongs to B.
	name := "Taken over"
	_, err := svc.Update(context.Background(), actor, assignedPerm(true, true, true), foreign.ID, leads.UpdateLeadRequest{Name: &name})
	assert.ErrorIs(t, err, leads.ErrNotFound)

	err = svc.Delete(context.Background(), actor, assignedPerm(true, true, true), foreign.ID)
	assert.ErrorIs(t, err, leads.ErrNotFound)

	// The record is untouched.
	kept := repo.records[foreign.ID]
	assert.Equal(t, "Foreign", kept.Name)
}

func TestMutationsPublishEvents(t *testing.T) {
	repo := newMockRepository()
	pub := &recordingPublisher{}
	svc := leads.NewService(repo, pub, nil)
	userA := uuid.New()
	actor := authz.Actor{UserID: userA}
	perm := assignedPerm(true, true, true)

	created, err := svc.Create(context.Background(), actor, perm, leads.CreateLeadRequest{Name: "Acme"})
	require.NoError(t, err)

	status := leads.StatusContacted
	_, err = svc.Update(context.Background(), actor, perm, created.ID, leads.UpdateLeadRequest{Status: &status})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), actor, perm, created.ID))

	require.Len(t, pub.events, 3)
	assert.Equal(t, notify.KindCreated, pub.events[0].Kind)
	assert.Equal(t, notify.KindUpdated, pub.events[1].Kind)
	assert.Equal(t, notify.KindDeleted, pub.events[2].Kind)
	for _, e := range pub.events {
		assert.Equal(t, created.ID, e.RecordID)
		assert.Equal(t, userA, e.ActorID)
	}
}

// Covers the canonical sales-rep case: assigned view with create and edit
// but no delete, two leads assigned to different users.
func TestSalesRepScenario(t *testing.T) {
	repo := newMockRepository()
	u1 := uuid.New()
	u2 := uuid.New()
	l1 := seedLead(repo, "L1", u1)
	seedLead(repo, "L2", u2)
	svc := leads.NewService(repo, nil, nil)

	perm := assignedPerm(true, true, false)
	perms := authz.UserPermissions{Modules: map[string]authz.ModulePermission{authz.ModuleLeads: perm}}
	actor := authz.Actor{UserID: u1, Permissions: perms}

	list, pagination, err := svc.List(context.Background(), actor, perm, leads.ListFilters{}, 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, l1.ID, list[0].ID)
	assert.Equal(t, 1, pagination.Total)

	assert.True(t, actor.Can(authz.ModuleLeads, authz.ActionCreate))
	assert.False(t, actor.Can(authz.ModuleLeads, authz.ActionDelete))
}
