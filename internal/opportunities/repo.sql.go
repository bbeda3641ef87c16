package opportunities

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const oppColumns = `id, name, customer_id, stage, amount, probability, close_date, assigned_to, created_by, created_at, updated_at`

// SQLRepository provides PostgreSQL backed persistence.
type SQLRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *SQLRepository {
	return &SQLRepository{pool: pool}
}

// List returns the filtered page plus the pre-pagination total.
func (r *SQLRepository) List(ctx context.Context, scope Scope, filters ListFilters, limit, offset int) ([]Opportunity, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if scope.AssignedOnly {
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", argPos))
		args = append(args, scope.UserID)
		argPos++
	}
	if filters.Search != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", argPos))
		args = append(args, "%"+filters.Search+"%")
		argPos++
	}
	if filters.Stage != "" {
		conditions = append(conditions, fmt.Sprintf("stage = $%d", argPos))
		args = append(args, filters.Stage)
		argPos++
	}
	if filters.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argPos))
		args = append(args, *filters.CustomerID)
		argPos++
	}
	if filters.MinAmount != nil {
		conditions = append(conditions, fmt.Sprintf("amount >= $%d", argPos))
		args = append(args, *filters.MinAmount)
		argPos++
	}
	if filters.MaxAmount != nil {
		conditions = append(conditions, fmt.Sprintf("amount <= $%d", argPos))
		args = append(args, *filters.MaxAmount)
		argPos++
	}
	if filters.CloseFrom != nil {
		conditions = append(conditions, fmt.Sprintf("close_date >= $%d", argPos))
		args = append(args, *filters.CloseFrom)
		argPos++
	}
	if filters.CloseUntil != nil {
		conditions = append(conditions, fmt.Sprintf("close_date <= $%d", argPos))
		args = append(args, *filters.CloseUntil)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM opportunities %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM opportunities %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		oppColumns, whereClause, argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list, err := collectOpportunities(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Get reads one opportunity within the scope.
func (r *SQLRepository) Get(ctx context.Context, scope Scope, id uuid.UUID) (Opportunity, error) {
	query := `SELECT ` + oppColumns + ` FROM opportunities WHERE id = $1`
	args := []any{id}
	if scope.AssignedOnly {
		query += ` AND assigned_to = $2`
		args = append(args, scope.UserID)
	}
	return scanOpportunity(r.pool.QueryRow(ctx, query, args...))
}

// Create inserts an opportunity.
func (r *SQLRepository) Create(ctx context.Context, opp Opportunity) (Opportunity, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO opportunities (id, name, customer_id, stage, amount, probability, close_date, assigned_to, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		 RETURNING `+oppColumns,
		opp.ID, opp.Name, opp.CustomerID, opp.Stage, opp.Amount, opp.Probability, opp.CloseDate, opp.AssignedTo, opp.CreatedBy)
	return scanOpportunity(row)
}

// Update applies partial updates within the scope.
func (r *SQLRepository) Update(ctx context.Context, scope Scope, id uuid.UUID, req UpdateOpportunityRequest) (Opportunity, error) {
	query := `UPDATE opportunities SET
		   name = COALESCE($2, name),
		   customer_id = COALESCE($3, customer_id),
		   stage = COALESCE($4, stage),
		   amount = COALESCE($5, amount),
		   probability = COALESCE($6, probability),
		   close_date = COALESCE($7, close_date),
		   assigned_to = COALESCE($8, assigned_to),
		   updated_at = NOW()
		 WHERE id = $1`
	args := []any{id, req.Name, req.CustomerID, req.Stage, req.Amount, req.Probability, req.CloseDate, req.AssignedTo}
	if scope.AssignedOnly {
		query += ` AND assigned_to = $9`
		args = append(args, scope.UserID)
	}
	query += ` RETURNING ` + oppColumns
	return scanOpportunity(r.pool.QueryRow(ctx, query, args...))
}

// Delete removes an opportunity within the scope.
func (r *SQLRepository) Delete(ctx context.Context, scope Scope, id uuid.UUID) error {
	query := `DELETE FROM opportunities WHERE id = $1`
	args := []any{id}
	if scope.AssignedOnly {
		query += ` AND assigned_to = $2`
		args = append(args, scope.UserID)
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOpportunity(row rowScanner) (Opportunity, error) {
	var o Opportunity
	err := row.Scan(&o.ID, &o.Name, &o.CustomerID, &o.Stage, &o.Amount, &o.Probability,
		&o.CloseDate, &o.AssignedTo, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Opportunity{}, ErrNotFound
		}
		return Opportunity{}, err
	}
	return o, nil
}

func collectOpportunities(rows pgx.Rows) ([]Opportunity, error) {
	var list []Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
