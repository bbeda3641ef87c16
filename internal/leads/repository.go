package leads

import (
	"context"

	"github.com/google/uuid"
)

// Scope is the permission-derived predicate a query runs under. When
// AssignedOnly is set every read and write is restricted to records whose
// assigned_to equals UserID.
type Scope struct {
	AssignedOnly bool
	UserID       uuid.UUID
}

// Repository abstracts lead persistence.
type Repository interface {
	List(ctx context.Context, scope Scope, filters ListFilters, limit, offset int) ([]Lead, int, error)
	Get(ctx context.Context, scope Scope, id uuid.UUID) (Lead, error)
	Create(ctx context.Context, lead Lead) (Lead, error)
	Update(ctx context.Context, scope Scope, id uuid.UUID, req UpdateLeadRequest) (Lead, error)
	Delete(ctx context.Context, scope Scope, id uuid.UUID) error
}
