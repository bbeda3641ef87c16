package activities

import (
	"context"

	"github.com/google/uuid"
)

// Scope is the permission-derived predicate a query runs under.
type Scope struct {
	AssignedOnly bool
	UserID       uuid.UUID
}

// Repository abstracts activity persistence.
type Repository interface {
	List(ctx context.Context, scope Scope, filters ListFilters, limit, offset int) ([]Activity, int, error)
	Get(ctx context.Context, scope Scope, id uuid.UUID) (Activity, error)
	Create(ctx context.Context, activity Activity) (Activity, error)
	Update(ctx context.Context, scope Scope, id uuid.UUID, req UpdateActivityRequest) (Activity, error)
	Delete(ctx context.Context, scope Scope, id uuid.UUID) error
}
