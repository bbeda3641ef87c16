package activities

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
func (s *Service) List(ctx context.Context, actor authz.Actor, perm authz.ModulePermission, filters ListFilters, page, perPage int) ([]Activity, shared.Pagination, error) {
	perm = perm.Normalize()
	if perm.ViewType == authz.ViewNone {
		return nil, shared.NewPagination(page, perPage, 0), nil
	}
	if err := s.validate.Struct(filters); err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("activities: validate filters: %w", err)
	}

	p := shared.NewPagination(page, perPage, 0)
	list, total, err := s.repo.List(ctx, scopeFor(actor, perm), filters, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// Get reads one visible activity.
func (s *Service) Get(ctx context.Context, actor authz.Actor, perm authz.ModulePermission, id uuid.UUID) (Activity, error) {
	perm = perm.Normalize()
	if perm.ViewType == authz.ViewNone {
		return Activity{}, ErrNotFound
	}
	return s.repo.Get(ctx, scopeFor(actor, perm), id)
}

// Create inserts an activity when the grant allows it.
func (s *Service) Create(ctx context.Context, actor authz.Actor, perm authz.ModulePermission, req CreateActivityRequest) (Activity, error) {
	if !perm.Normalize().Allows(authz.ActionCreate) {
		return Activity{}, authz.ErrPermissionDenied
	}
	req.Subject = strings.TrimSpace(req.Subject)
	if err := s.validate.Struct(req); err != nil {
		return Activity{}, fmt.Errorf("activities: validate create: %w", err)
	}

	activity := Activity{
		ID:            uuid.New(),
		Type:          req.Type,
		Subject:       req.Subject,
		Notes:         req.Notes,
		DueAt:         req.DueAt,
		RelatedModule: req.RelatedModule,
		RelatedID:     req.RelatedID,
		AssignedTo:    actor.UserID,
		CreatedBy:     actor.UserID,
	}
	if req.AssignedTo != nil {
		activity.AssignedTo = *req.AssignedTo
	}
	created, err := s.repo.Create(ctx, activity)
	if err != nil {
		return Activity{}, err
	}
	s.publish(ctx, actor, notify.KindCreated, created.ID)
	return created, nil
}

// Update applies partial updates within the caller's view scope.
func (s *Service) Update(ctx context.Context, actor authz.Actor, perm authz.ModulePermission, id uuid.UUID, req UpdateActivityRequest) (Activity, error) {
	perm = perm.Normalize()
	if !perm.Allows(authz.ActionEdit) {
		return Activity{}, authz.ErrPermissionDenied
	}
	if err := s.validate.Struct(req); err != nil {
		return Activity{}, fmt.Errorf("activities: validate update: %w", err)
	}
	updated, err := s.repo.Update(ctx, scopeFor(actor, perm), id, req)
	if err != nil {
		return Activity{}, err
	}
	s.publish(ctx, actor, notify.KindUpdated, updated.ID)
	return updated, nil
}

// Delete removes an activity within the caller's view scope.
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
	if err := s.publisher.Publish(ctx, authz.ModuleActivities, notify.Event{Kind: kind, RecordID: id, ActorID: actor.UserID}); err != nil && s.logger != nil {
		s.logger.Warn("publish activity event", slog.String("kind", kind), slog.Any("error", err))
	}
}
