package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-crm/meridian/internal/shared"
)

// SnapshotInvalidator drops a user's cached permission snapshot after their
// role assignment changes.
type SnapshotInvalidator interface {
	Invalidate(userID uuid.UUID)
}

// Service wraps profile business rules.
type Service struct {
	repo        Repository
	validate    *validator.Validate
	invalidator SnapshotInvalidator
	audit       *shared.AuditLogger
	logger      *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, invalidator SnapshotInvalidator, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		validate:    validator.New(),
		invalidator: invalidator,
		audit:       audit,
		logger:      logger,
	}
}

// GetProfile fetches a profile by user id.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (Profile, error) {
	return s.repo.GetProfile(ctx, userID)
}

// ListProfiles returns every directory profile.
func (s *Service) ListProfiles(ctx context.Context) ([]Profile, error) {
	return s.repo.ListProfiles(ctx)
}

// ListSubUsers returns profiles created by the given user.
func (s *Service) ListSubUsers(ctx context.Context, creatorID uuid.UUID) ([]Profile, error) {
	return s.repo.ListSubUsers(ctx, creatorID)
}

// CreateSubUser creates a managed profile owned by the creator.
func (s *Service) CreateSubUser(ctx context.Context, creatorID uuid.UUID, req CreateSubUserRequest) (Profile, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validate.Struct(req); err != nil {
		return Profile{}, fmt.Errorf("users: validate create: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return Profile{}, fmt.Errorf("users: hash password: %w", err)
	}

	profile := Profile{
		UserID:    uuid.New(),
		Name:      req.Name,
		Email:     req.Email,
		RoleID:    req.RoleID,
		CreatedBy: &creatorID,
	}
	created, err := s.repo.CreateProfile(ctx, profile, string(hash))
	if err != nil {
		return Profile{}, err
	}
	s.recordAudit(ctx, creatorID, "user.create", created.UserID, map[string]any{"email": created.Email})
	return created, nil
}

// UpdateProfile applies partial updates to a profile.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (Profile, error) {
	if err := s.validate.Struct(req); err != nil {
		return Profile{}, fmt.Errorf("users: validate update: %w", err)
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	return s.repo.UpdateProfile(ctx, userID, req.Name, req.AvatarURL)
}

// AssignRole changes a profile's role and invalidates the user's cached
// permission snapshot so the change takes effect on the next resolution.
func (s *Service) AssignRole(ctx context.Context, actorID, userID uuid.UUID, roleID *uuid.UUID) (Profile, error) {
	profile, err := s.repo.AssignRole(ctx, userID, roleID)
	if err != nil {
		return Profile{}, err
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(userID)
	}
	meta := map[string]any{}
	if roleID != nil {
		meta["role_id"] = roleID.String()
	}
	s.recordAudit(ctx, actorID, "user.assign_role", userID, meta)
	return profile, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID uuid.UUID, action string, userID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user_profile",
		EntityID: userID.String(),
		Meta:     meta,
	}); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
