// Package auth implements credential verification and session lifecycle.
package auth

import (
	"time"

	"github.com/google/uuid"
)

// Credential represents the login-facing slice of a directory profile.
type Credential struct {
	UserID       uuid.UUID
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
