// Package opportunities implements the permission-scoped accessor for sales
// opportunities. The assignment attribute for the assigned view scope is
// assigned_to: the explicitly designated owner, not the creator.
package opportunities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Pipeline stages.
const (
	StageProspecting = "prospecting"
	StageProposal    = "proposal"
	StageNegotiation = "negotiation"
	StageWon         = "won"
	StageLost        = "lost"
)

// Opportunity is a qualified deal in the pipeline.
type Opportunity struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	CustomerID  *uuid.UUID `json:"customer_id,omitempty"`
	Stage       string     `json:"stage"`
	Amount      float64    `json:"amount"`
	Probability int        `json:"probability"`
	CloseDate   *time.Time `json:"close_date,omitempty"`
	AssignedTo  uuid.UUID  `json:"assigned_to"`
	CreatedBy   uuid.UUID  `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ErrNotFound covers missing records and records outside the view scope.
var ErrNotFound = errors.New("opportunities: opportunity not found")

// ListFilters narrows a listing; ANDed with the permission predicate.
type ListFilters struct {
	Search     string     `json:"search"`
	Stage      string     `json:"stage" validate:"omitempty,oneof=prospecting proposal negotiation won lost"`
	CustomerID *uuid.UUID `json:"customer_id"`
	MinAmount  *float64   `json:"min_amount"`
	MaxAmount  *float64   `json:"max_amount"`
	CloseFrom  *time.Time `json:"close_from"`
	CloseUntil *time.Time `json:"close_until"`
}

// CreateOpportunityRequest carries input for creating an opportunity.
type CreateOpportunityRequest struct {
	Name        string     `json:"name" validate:"required,min=2,max=160"`
	CustomerID  *uuid.UUID `json:"customer_id"`
	Stage       string     `json:"stage" validate:"omitempty,oneof=prospecting proposal negotiation won lost"`
	Amount      float64    `json:"amount" validate:"gte=0"`
	Probability int        `json:"probability" validate:"gte=0,lte=100"`
	CloseDate   *time.Time `json:"close_date"`
	AssignedTo  *uuid.UUID `json:"assigned_to"`
}

// UpdateOpportunityRequest carries partial updates.
type UpdateOpportunityRequest struct {
	Name        *string    `json:"name" validate:"omitempty,min=2,max=160"`
	CustomerID  *uuid.UUID `json:"customer_id"`
	Stage       *string    `json:"stage" validate:"omitempty,oneof=prospecting proposal negotiation won lost"`
	Amount      *float64   `json:"amount" validate:"omitempty,gte=0"`
	Probability *int       `json:"probability" validate:"omitempty,gte=0,lte=100"`
	CloseDate   *time.Time `json:"close_date"`
	AssignedTo  *uuid.UUID `json:"assigned_to"`
}
