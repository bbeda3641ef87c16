package opportunities

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-crm/meridian/internal/authz"
	"github.com/meridian-crm/meridian/internal/notify"
	"github.com/meridian-crm/meridian/internal/shared"
)

// Publisher broadcasts record-change events after successful mutations.
type Publisher interface {
	Publish(ctx context.Context, module string, event notify.Event) error
}

// Service applies the view scope to reads and gates mutations on the grant.
type Service struct {
	repo      Repository
	validate  *validator.Validate
	publisher Publisher
	logger    *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, publisher Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		validate:  validator.New(),
		publisher: publisher,
		logger:    logger,
	}
}

func scopeFor(actor authz.Actor, perm authz.ModulePermission) Scope {
	return Scope{AssignedOnly: perm.ViewType == authz.ViewAssigned, UserID: actor.UserID}
}

// List returns the visible page and pagination metadata; a none view scope
// short-circuits without a store call.
func (s *Service) List(ctx context.Context, actor authz.Actor, perm authz.ModulePermission, filters ListFilters, page, perPage int) ([]Opportunity, shared.Pagination, error) {
	perm = perm.Normalize()
	if perm.ViewType == authz.ViewNone {
		return nil, shared.NewPagination(page, perPage, 0), nil
	}
	if err := s.validate.Struct(filters); err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("opportunities: validate filters: %w", err)
	}

	p := shared.NewPagination(page, perPage, 0)
	list, total, err := s.repo.List(ctx, scopeFor(actor, perm), filters, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// Get reads one visible opportunity.
func (s *Service) Get(ctx context.Context, actor authz.Actor, perm authz.ModulePermission, id uuid.UUID) (Opportunity, error) {
	perm = perm.Normalize()
	if perm.ViewType == authz.ViewNone {
		return Opportunity{}, ErrNotFound
	}
	return s.repo.Get(ctx, scopeFor(actor, perm), id)
}

// Create inserts an opportunity when the grant allows it.
func (s *Service) Create(ctx context.Context, actor authz.Actor, perm authz.ModulePermission, req CreateOpportunityRequest) (Opportunity, error) {
	if !perm.Normalize().Allows(authz.ActionCreate) {
		return Opportunity{}, authz.ErrPermissionDenied
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		return Opportunity{}, fmt.Errorf("opportunities: validate create: %w", err)
	}

	opp := Opportunity{
		ID:          uuid.New(),
		Name:        req.Name,
		CustomerID:  req.CustomerID,
		Stage:       req.Stage,
		Amount:      req.Amount,
		Probability: req.Probability,
		CloseDate:   req.CloseDate,
		AssignedTo:  actor.UserID,
		CreatedBy:   actor.UserID,
	}
	if opp.Stage == "" {
		opp.Stage = StageProspecting
	}
	if req.AssignedTo != nil {
		opp.AssignedTo = *req.AssignedTo
	}
	created, err := s.repo.Create(ctx, opp)
	if err != nil {
		return Opportunity{}, err
	}
	s.publish(ctx, actor, notify.KindCreated, created.ID)
	return created, nil
}

// Update applies partial updates within the caller's view scope.
func (s *Service) Update(ctx context.Context, actor authz.Actor, perm authz.ModulePermission, id uuid.UUID, req UpdateOpportunityRequest) (Opportunity, error) {
	perm = perm.Normalize()
	if !perm.Allows(authz.ActionEdit) {
		return Opportunity{}, authz.ErrPermissionDenied
	}
	if err := s.validate.Struct(req); err != nil {
		return Opportunity{}, fmt.Errorf("opportunities: validate update: %w", err)
	}
	updated, err := s.repo.Update(ctx, scopeFor(actor, perm), id, req)
	if err != nil {
		return Opportunity{}, err
	}
	s.publish(ctx, actor, notify.KindUpdated, updated.ID)
	return updated, nil
}

// Delete removes an opportunity within the caller's view scope.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, perm authz.ModulePermission, id uuid.UUID) error {
	perm = perm.Normalize()
	if !perm.Allows(authz.ActionDelete) {
		return authz.ErrPermissionDenied
	}
	if err := s.repo.Delete(ctx, scopeFor(actor, perm), id); err != nil {
		return err
	}
	s.publish(ctx, actor, notify.KindDeleted, id)
	return nil
}

func (s *Service) publish(ctx context.Context, actor authz.Actor, kind string, id uuid.UUID) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, authz.ModuleOpportunities, notify.Event{Kind: kind, RecordID: id, ActorID: actor.UserID}); err != nil && s.logger != nil {
		s.logger.Warn("publish opportunity event", slog.String("kind", kind), slog.Any("error", err))
	}
}
