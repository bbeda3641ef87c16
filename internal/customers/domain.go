// Package customers implements the permission-scoped accessor for customer
// accounts. The assignment attribute for the assigned view scope is owner_id:
// the profile that created the account. Customers carry no separate assignee.
package customers

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Customer is an established account converted from the pipeline.
type Customer struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Company   string    `json:"company,omitempty"`
	Industry  string    `json:"industry,omitempty"`
	Website   string    `json:"website,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrNotFound covers missing records and records outside the view scope.
var ErrNotFound = errors.New("customers: customer not found")

// ListFilters narrows a listing; ANDed with the permission predicate.
type ListFilters struct {
	Search       string     `json:"search"`
	Industry     string     `json:"industry"`
	Tags         []string   `json:"tags"`
	CreatedFrom  *time.Time `json:"created_from"`
	CreatedUntil *time.Time `json:"created_until"`
}

// CreateCustomerRequest carries input for creating a customer.
type CreateCustomerRequest struct {
	Name     string   `json:"name" validate:"required,min=2,max=160"`
	Email    string   `json:"email" validate:"omitempty,email"`
	Phone    string   `json:"phone" validate:"max=40"`
	Company  string   `json:"company" validate:"max=160"`
	Industry string   `json:"industry" validate:"max=80"`
	Website  string   `json:"website" validate:"omitempty,url"`
	Tags     []string `json:"tags"`
}

// UpdateCustomerRequest carries partial updates. Ownership is fixed at
// creation and not editable through this path.
type UpdateCustomerRequest struct {
	Name     *string  `json:"name" validate:"omitempty,min=2,max=160"`
	Email    *string  `json:"email" validate:"omitempty,email"`
	Phone    *string  `json:"phone" validate:"omitempty,max=40"`
	Company  *string  `json:"company" validate:"omitempty,max=160"`
	Industry *string  `json:"industry" validate:"omitempty,max=80"`
	Website  *string  `json:"website" validate:"omitempty,url"`
	Tags     []string `json:"tags"`
}
