package opportunities

import (
	"context"

	"github.com/google/uuid"
)

// Scope is the permission-derived predicate a query runs under.
type Scope struct {
	AssignedOnly bool
	UserID       uuid.UUID
}

// Repository abstracts opportunity persistence.
type Repository interface {
	List(ctx context.Context, scope Scope, filters ListFilters, limit, offset int) ([]Opportunity, int, error)
	Get(ctx context.Context, scope Scope, id uuid.UUID) (Opportunity, error)
	Create(ctx context.Context, opp Opportunity) (Opportunity, error)
	Update(ctx context.Context, scope Scope, id uuid.UUID, req UpdateOpportunityRequest) (Opportunity, error)
	Delete(ctx context.Context, scope Scope, id uuid.UUID) error
}
