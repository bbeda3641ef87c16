package leads

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

// Service applies the view scope to every read and gates every mutation on
// the caller's grant. The grant arrives as an explicit argument; the service
// never reaches into global state to find it.
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

// List returns the page of visible leads and pagination metadata. A none
// view scope short-circuits to an empty result without touching the store.
func (s *Service) List(ctx context.Context, actor authz.Actor, perm authz.ModulePermission, filters ListFilters, page, perPage int) ([]Lead, shared.Pagination, error) {
	perm = perm.Normalize()
	if perm.ViewType == authz.ViewNone {
		return nil, shared.NewPagination(page, perPage, 0), nil
	}
	if err := s.validate.Struct(filters); err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("leads: validate filters: %w", err)
	}

	p := shared.NewPagination(page, perPage, 0)
	list, total, err := s.repo.List(ctx, scopeFor(actor, perm), filters, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// Get reads one visible lead.
func (s *Service) Get(ctx context.Context, actor authz.Actor, perm authz.ModulePermission, id uuid.UUID) (Lead, error) {
	perm = perm.Normalize()
	if perm.ViewType == authz.ViewNone {
		return Lead{}, ErrNotFound
	}
	return s.repo.Get(ctx, scopeFor(actor, perm), id)
}

// Create inserts a lead when the grant allows it.
func (s *Service) Create(ctx context.Context, actor authz.Actor, perm authz.ModulePermission, req CreateLeadRequest) (Lead, error) {
	if !perm.Normalize().Allows(authz.ActionCreate) {
		return Lead{}, authz.ErrPermissionDenied
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		return Lead{}, fmt.Errorf("leads: validate create: %w", err)
	}

	lead := Lead{
		ID:             uuid.New(),
		Name:           req.Name,
		Company:        req.Company,
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:          req.Phone,
		Status:         req.Status,
		Source:         req.Source,
		EstimatedValue: req.EstimatedValue,
		Tags:           req.Tags,
		AssignedTo:     actor.UserID,
		CreatedBy:      actor.UserID,
	}
	if lead.Status == "" {
		lead.Status = StatusNew
	}
	if req.AssignedTo != nil {
		lead.AssignedTo = *req.AssignedTo
	}
	created, err := s.repo.Create(ctx, lead)
	if err != nil {
		return Lead{}, err
	}
	s.publish(ctx, actor, notify.KindCreated, created.ID)
	return created, nil
}

// Update applies partial updates to a visible lead. Under assigned view the
// store predicate re-scopes by assignment; an out-of-scope record reports
// ErrNotFound and no rows change.
func (s *Service) Update(ctx context.Context, actor authz.Actor, perm authz.ModulePermission, id uuid.UUID, req UpdateLeadRequest) (Lead, error) {
	perm = perm.Normalize()
	if !perm.Allows(authz.ActionEdit) {
		return Lead{}, authz.ErrPermissionDenied
	}
	if err := s.validate.Struct(req); err != nil {
		return Lead{}, fmt.Errorf("leads: validate update: %w", err)
	}
	updated, err := s.repo.Update(ctx, scopeFor(actor, perm), id, req)
	if err != nil {
		return Lead{}, err
	}
	s.publish(ctx, actor, notify.KindUpdated, updated.ID)
	return updated, nil
}

// Delete removes a visible lead, with the same re-scoping as Update.
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
	if err := s.publisher.Publish(ctx, authz.ModuleLeads, notify.Event{Kind: kind, RecordID: id, ActorID: actor.UserID}); err != nil && s.logger != nil {
		s.logger.Warn("publish lead event", slog.String("kind", kind), slog.Any("error", err))
	}
}
