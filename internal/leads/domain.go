// Package leads implements the permission-scoped accessor for sales leads.
// The assignment attribute for the assigned view scope is assigned_to: the
// explicitly designated owner, not the creator.
package leads

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Lead statuses.
const (
	StatusNew       = "new"
	StatusContacted = "contacted"
	StatusQualified = "qualified"
	StatusLost      = "lost"
)

// Lead is a prospective customer record.
type Lead struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Company        string    `json:"company,omitempty"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Status         string    `json:"status"`
	Source         string    `json:"source,omitempty"`
	EstimatedValue float64   `json:"estimated_value"`
	Tags           []string  `json:"tags,omitempty"`
	AssignedTo     uuid.UUID `json:"assigned_to"`
	CreatedBy      uuid.UUID `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ErrNotFound covers both missing records and records outside the caller's
// view scope; the two are indistinguishable on purpose.
var ErrNotFound = errors.New("leads: lead not found")

// ListFilters narrows a listing. Filters only ever narrow: they are ANDed
// with the permission predicate, never widen past it.
type ListFilters struct {
	Search       string     `json:"search"`
	Status       string     `json:"status" validate:"omitempty,oneof=new contacted qualified lost"`
	Source       string     `json:"source"`
	Tags         []string   `json:"tags"`
	MinValue     *float64   `json:"min_value"`
	MaxValue     *float64   `json:"max_value"`
	CreatedFrom  *time.Time `json:"created_from"`
	CreatedUntil *time.Time `json:"created_until"`
}

// CreateLeadRequest carries input for creating a lead.
type CreateLeadRequest struct {
	Name           string     `json:"name" validate:"required,min=2,max=160"`
	Company        string     `json:"company" validate:"max=160"`
	Email          string     `json:"email" validate:"omitempty,email"`
	Phone          string     `json:"phone" validate:"max=40"`
	Status         string     `json:"status" validate:"omitempty,oneof=new contacted qualified lost"`
	Source         string     `json:"source" validate:"max=80"`
	EstimatedValue float64    `json:"estimated_value" validate:"gte=0"`
	Tags           []string   `json:"tags"`
	AssignedTo     *uuid.UUID `json:"assigned_to"`
}

// UpdateLeadRequest carries partial updates.
type UpdateLeadRequest struct {
	Name           *string    `json:"name" validate:"omitempty,min=2,max=160"`
	Company        *string    `json:"company" validate:"omitempty,max=160"`
	Email          *string    `json:"email" validate:"omitempty,email"`
	Phone          *string    `json:"phone" validate:"omitempty,max=40"`
	Status         *string    `json:"status" validate:"omitempty,oneof=new contacted qualified lost"`
	Source         *string    `json:"source" validate:"omitempty,max=80"`
	EstimatedValue *float64   `json:"estimated_value" validate:"omitempty,gte=0"`
	Tags           []string   `json:"tags"`
	AssignedTo     *uuid.UUID `json:"assigned_to"`
}
