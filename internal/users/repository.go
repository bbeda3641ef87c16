package users

import (
	"context"

	"github.com/google/uuid"
)

// Repository abstracts profile persistence.
type Repository interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (Profile, error)
	ListProfiles(ctx context.Context) ([]Profile, error)
	ListSubUsers(ctx context.Context, creatorID uuid.UUID) ([]Profile, error)
	CreateProfile(ctx context.Context, profile Profile, passwordHash string) (Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, name, avatarURL *string) (Profile, error)
	AssignRole(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID) (Profile, error)
}
