// Package activities implements the permission-scoped accessor for calls,
// meetings, tasks and emails attached to other CRM records. The assignment
// attribute for the assigned view scope is assigned_to.
package activities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Activity types.
const (
	TypeCall    = "call"
	TypeMeeting = "meeting"
	TypeTask    = "task"
	TypeEmail   = "email"
)

// Activity is a scheduled or logged interaction, optionally linked to a
// record in another module.
type Activity struct {
	ID            uuid.UUID  `json:"id"`
	Type          string     `json:"type"`
	Subject       string     `json:"subject"`
	Notes         string     `json:"notes,omitempty"`
	DueAt         *time.Time `json:"due_at,omitempty"`
	Done          bool       `json:"done"`
	RelatedModule string     `json:"related_module,omitempty"`
	RelatedID     *uuid.UUID `json:"related_id,omitempty"`
	AssignedTo    uuid.UUID  `json:"assigned_to"`
	CreatedBy     uuid.UUID  `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ErrNotFound covers missing records and records outside the view scope.
var ErrNotFound = errors.New("activities: activity not found")

// ListFilters narrows a listing; ANDed with the permission predicate.
type ListFilters struct {
	Search        string     `json:"search"`
	Type          string     `json:"type" validate:"omitempty,oneof=call meeting task email"`
	Done          *bool      `json:"done"`
	RelatedModule string     `json:"related_module"`
	RelatedID     *uuid.UUID `json:"related_id"`
	DueFrom       *time.Time `json:"due_from"`
	DueUntil      *time.Time `json:"due_until"`
}

// CreateActivityRequest carries input for creating an activity.
type CreateActivityRequest struct {
	Type          string     `json:"type" validate:"required,oneof=call meeting task email"`
	Subject       string     `json:"subject" validate:"required,min=2,max=200"`
	Notes         string     `json:"notes" validate:"max=4000"`
	DueAt         *time.Time `json:"due_at"`
	RelatedModule string     `json:"related_module" validate:"omitempty,oneof=leads customers opportunities"`
	RelatedID     *uuid.UUID `json:"related_id"`
	AssignedTo    *uuid.UUID `json:"assigned_to"`
}

// UpdateActivityRequest carries partial updates.
type UpdateActivityRequest struct {
	Type       *string    `json:"type" validate:"omitempty,oneof=call meeting task email"`
	Subject    *string    `json:"subject" validate:"omitempty,min=2,max=200"`
	Notes      *string    `json:"notes" validate:"omitempty,max=4000"`
	DueAt      *time.Time `json:"due_at"`
	Done       *bool      `json:"done"`
	AssignedTo *uuid.UUID `json:"assigned_to"`
}
