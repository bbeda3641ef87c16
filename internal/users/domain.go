// Package users manages directory profiles: the identity records that tie
// an authenticated user to a role and, for sub-users, to the profile that
// created them.
package users

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Profile represents a directory profile. RoleID is nullable: a role-less
// profile is legal and resolves to all-none permissions.
type Profile struct {
	UserID    uuid.UUID  `json:"user_id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	AvatarURL *string    `json:"avatar_url,omitempty"`
	RoleID    *uuid.UUID `json:"role_id,omitempty"`
	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

var (
	// ErrNotFound indicates the profile does not exist.
	ErrNotFound = errors.New("users: profile not found")
	// ErrEmailTaken indicates another profile already uses the email.
	ErrEmailTaken = errors.New("users: email already taken")
)

// CreateSubUserRequest carries input for creating a managed profile.
type CreateSubUserRequest struct {
	Name     string     `json:"name" validate:"required,min=2,max=120"`
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required,min=8"`
	RoleID   *uuid.UUID `json:"role_id,omitempty"`
}

// UpdateProfileRequest carries profile field updates.
type UpdateProfileRequest struct {
	Name      *string `json:"name,omitempty" validate:"omitempty,min=2,max=120"`
	AvatarURL *string `json:"avatar_url,omitempty" validate:"omitempty,url"`
}
