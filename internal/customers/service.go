package customers

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
	return Scope{OwnedOnly: perm.ViewType == authz.ViewAssigned, UserID: actor.UserID}
}

// List returns the visible page and pagination metadata; a none view scope
// short-circuits without a store call.
func (s *Service) List(ctx context.Context, actor authz.Actor, perm authz.ModulePermission, filters ListFilters, page, perPage int) ([]Customer, shared.Pagination, error) {
	perm = perm.Normalize()
	if perm.ViewType == authz.ViewNone {
		return nil, shared.NewPagination(page, perPage, 0), nil
	}

	p := shared.NewPagination(page, perPage, 0)
	list, total, err := s.repo.List(ctx, scopeFor(actor, perm), filters, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// Get reads one visible customer.
func (s *Service) Get(ctx context.Context, actor authz.Actor, perm authz.ModulePermission, id uuid.UUID) (Customer, error) {
	perm = perm.Normalize()
	if perm.ViewType == authz.ViewNone {
		return Customer{}, ErrNotFound
	}
	return s.repo.Get(ctx, scopeFor(actor, perm), id)
}

// Create inserts a customer owned by the actor when the grant allows it.
func (s *Service) Create(ctx context.Context, actor authz.Actor, perm authz.ModulePermission, req CreateCustomerRequest) (Customer, error) {
	if !perm.Normalize().Allows(authz.ActionCreate) {
		return Customer{}, authz.ErrPermissionDenied
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		return Customer{}, fmt.Errorf("customers: validate create: %w", err)
	}

	customer := Customer{
		ID:       uuid.New(),
		Name:     req.Name,
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:    req.Phone,
		Company:  req.Company,
		Industry: req.Industry,
		Website:  req.Website,
		Tags:     req.Tags,
		OwnerID:  actor.UserID,
	}
	created, err := s.repo.Create(ctx, customer)
	if err != nil {
		return Customer{}, err
	}
	s.publish(ctx, actor, notify.KindCreated, created.ID)
	return created, nil
}

// Update applies partial updates within the caller's view scope.
func (s *Service) Update(ctx context.Context, actor authz.Actor, perm authz.ModulePermission, id uuid.UUID, req UpdateCustomerRequest) (Customer, error) {
	perm = perm.Normalize()
	if !perm.Allows(authz.ActionEdit) {
		return Customer{}, authz.ErrPermissionDenied
	}
	if err := s.validate.Struct(req); err != nil {
		return Customer{}, fmt.Errorf("customers: validate update: %w", err)
	}
	updated, err := s.repo.Update(ctx, scopeFor(actor, perm), id, req)
	if err != nil {
		return Customer{}, err
	}
	s.publish(ctx, actor, notify.KindUpdated, updated.ID)
	return updated, nil
}

// Delete removes a customer within the caller's view scope.
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
	if err := s.publisher.Publish(ctx, authz.ModuleCustomers, notify.Event{Kind: kind, RecordID: id, ActorID: actor.UserID}); err != nil && s.logger != nil {
		s.logger.Warn("publish customer event", slog.String("kind", kind), slog.Any("error", err))
	}
}
