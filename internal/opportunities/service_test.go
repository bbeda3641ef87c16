package opportunities_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian/internal/authz"
	"github.com/meridian-crm/meridian/internal/opportunities"
	_ "github.com/meridian-crm/meridian/testing"
)

type mockRepository struct {
	records   map[uuid.UUID]opportunities.Opportunity
	listCalls int
}

func newMockRepository() *mockRepository {
	return &mockRepository{records: make(map[uuid.UUID]opportunities.Opportunity)}
}

func (m *mockRepository) List(_ context.Context, scope opportunities.Scope, filters opportunities.ListFilters, limit, offset int) ([]opportunities.Opportunity, int, error) {
	m.listCalls++
	var all []opportunities.Opportunity
	for _, o := range m.records {
		if scope.AssignedOnly && o.AssignedTo != scope.UserID {
			continue
		}
		if filters.Stage != "" && o.Stage != filters.Stage {
			continue
		}
		if filters.MinAmount != nil && o.Amount < *filters.MinAmount {
			continue
		}
		all = append(all, o)
	}
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

func (m *mockRepository) Get(_ context.Context, scope opportunities.Scope, id uuid.UUID) (opportunities.Opportunity, error) {
	o, ok := m.records[id]
	if !ok || (scope.AssignedOnly && o.AssignedTo != scope.UserID) {
		return opportunities.Opportunity{}, opportunities.ErrNotFound
	}
	return o, nil
}

func (m *mockRepository) Create(_ context.Context, opp opportunities.Opportunity) (opportunities.Opportunity, error) {
	m.records[opp.ID] = opp
	return opp, nil
}

func (m *mockRepository) Update(_ context.Context, scope opportunities.Scope, id uuid.UUID, req opportunities.UpdateOpportunityRequest) (opportunities.Opportunity, error) {
	o, err := m.Get(context.Background(), scope, id)
	if err != nil {
		return opportunities.Opportunity{}, err
	}
	if req.Stage != nil {
		o.Stage = *req.Stage
	}
	if req.Amount != nil {
		o.Amount = *req.Amount
	}
	m.records[id] = o
	return o, nil
}

func (m *mockRepository) Delete(_ context.Context, scope opportunities.Scope, id uuid.UUID) error {
	if _, err := m.Get(context.Background(), scope, id); err != nil {
		return err
	}
	delete(m.records, id)
	return nil
}

func seedOpportunity(repo *mockRepository, name, stage string, amount float64, assignedTo uuid.UUID) opportunities.Opportunity {
	o := opportunities.Opportunity{
		ID:         uuid.New(),
		Name:       name,
		Stage:      stage,
		Amount:     amount,
		AssignedTo: assignedTo,
		CreatedBy:  assignedTo,
	}
	repo.records[o.ID] = o
	return o
}

func TestListNoneViewShortCircuits(t *testing.T) {
	repo := newMockRepository()
	seedOpportunity(repo, "Expansion deal", opportunities.StageProposal, 5000, uuid.New())
	svc := opportunities.NewService(repo, nil, nil)

	actor := authz.Actor{UserID: uuid.New(), Permissions: authz.EmptyPermissions()}
	list, pagination, err := svc.List(context.Background(), actor, actor.Module(authz.ModuleOpportunities), opportunities.ListFilters{}, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, pagination.Total)
	assert.Zero(t, repo.listCalls)
}

func TestListAssignedViewWithFilters(t *testing.T) {
	repo := newMockRepository()
	userA := uuid.New()
	userB := uuid.New()
	mine := seedOpportunity(repo, "Mine big", opportunities.StageProposal, 10000, userA)
	seedOpportunity(repo, "Mine small", opportunities.StageProposal, 100, userA)
	seedOpportunity(repo, "Foreign big", opportunities.StageProposal, 20000, userB)
	svc := opportunities.NewService(repo, nil, nil)

	perm := authz.ModulePermission{Module: authz.ModuleOpportunities, ViewType: authz.ViewAssigned}
	minAmount := 1000.0
	filters := opportunities.ListFilters{Stage: opportunities.StageProposal, MinAmount: &minAmount}
	list, pagination, err := svc.List(context.Background(), authz.Actor{UserID: userA}, perm, filters, 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)
	assert.Equal(t, 1, pagination.Total)
}

func TestStageFilterValidation(t *testing.T) {
	svc := opportunities.NewService(newMockRepository(), nil, nil)
	perm := authz.ModulePermission{Module: authz.ModuleOpportunities, ViewType: authz.ViewAll}

	_, _, err := svc.List(context.Background(), authz.Actor{UserID: uuid.New()}, perm, opportunities.ListFilters{Stage: "bogus"}, 1, 10)
	require.Error(t, err)
}

func TestMutationsRescopedByAssignment(t *testing.T) {
	repo := newMockRepository()
	userA := uuid.New()
	userB := uuid.New()
	foreign := seedOpportunity(repo, "Foreign", opportunities.StageNegotiation, 9000, userB)
	svc := opportunities.NewService(repo, nil, nil)

	perm := authz.ModulePermission{
		Module:    authz.ModuleOpportunities,
		ViewType:  authz.ViewAssigned,
		CanCreate: true,
		CanEdit:   true,
		CanDelete: true,
	}
	actor := authz.Actor{UserID: userA}

	stage := opportunities.StageWon
	_, err := svc.Update(context.Background(), actor, perm, foreign.ID, opportunities.UpdateOpportunityRequest{Stage: &stage})
	assert.ErrorIs(t, err, opportunities.ErrNotFound)

	err = svc.Delete(context.Background(), actor, perm, foreign.ID)
	assert.ErrorIs(t, err, opportunities.ErrNotFound)
	assert.Equal(t, opportunities.StageNegotiation, repo.records[foreign.ID].Stage)
}

func TestCreateDeniedWithoutGrant(t *testing.T) {
	repo := newMockRepository()
	svc := opportunities.NewService(repo, nil, nil)
	actor := authz.Actor{UserID: uuid.New()}
	perm := authz.ModulePermission{Module: authz.ModuleOpportunities, ViewType: authz.ViewAssigned}

	_, err := svc.Create(context.Background(), actor, perm, opportunities.CreateOpportunityRequest{Name: "Blocked"})
	assert.ErrorIs(t, err, authz.ErrPermissionDenied)
	assert.Empty(t, repo.records)
}

func TestSuperAdminSeesAll(t *testing.T) {
	repo := newMockRepository()
	seedOpportunity(repo, "One", opportunities.StageProspecting, 100, uuid.New())
	seedOpportunity(repo, "Two", opportunities.StageWon, 200, uuid.New())
	svc := opportunities.NewService(repo, nil, nil)

	actor := authz.Actor{UserID: uuid.New(), Permissions: authz.SuperAdminPermissions()}
	list, pagination, err := svc.List(context.Background(), actor, actor.Module(authz.ModuleOpportunities), opportunities.ListFilters{}, 1, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 2, pagination.Total)
}
