package customers

import (
	"context"

	"github.com/google/uuid"
)

// Scope is the permission-derived predicate a query runs under. When
// OwnedOnly is set every read and write is restricted to records whose
// owner_id equals UserID.
type Scope struct {
	OwnedOnly bool
	UserID    uuid.UUID
}

// Repository abstracts customer persistence.
type Repository interface {
	List(ctx context.Context, scope Scope, filters ListFilters, limit, offset int) ([]Customer, int, error)
	Get(ctx context.Context, scope Scope, id uuid.UUID) (Customer, error)
	Create(ctx context.Context, customer Customer) (Customer, error)
	Update(ctx context.Context, scope Scope, id uuid.UUID, req UpdateCustomerRequest) (Customer, error)
	Delete(ctx context.Context, scope Scope, id uuid.UUID) error
}
