package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const leadColumns = `id, name, company, email, phone, status, source, estimated_value, tags, assigned_to, created_by, created_at, updated_at`

// SQLRepository provides PostgreSQL backed persistence.
type SQLRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *SQLRepository {
	return &SQLRepository{pool: pool}
}

// List returns the filtered page plus the pre-pagination total.
func (r *SQLRepository) List(ctx context.Context, scope Scope, filters ListFilters, limit, offset int) ([]Lead, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if scope.AssignedOnly {
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", argPos))
		args = append(args, scope.UserID)
		argPos++
	}
	if filters.Search != "" {
		pattern := "%" + filters.Search + "%"
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR company ILIKE $%d OR email ILIKE $%d)", argPos, argPos, argPos))
		args = append(args, pattern)
		argPos++
	}
	if filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, filters.Status)
		argPos++
	}
	if filters.Source != "" {
		conditions = append(conditions, fmt.Sprintf("source = $%d", argPos))
		args = append(args, filters.Source)
		argPos++
	}
	if len(filters.Tags) > 0 {
		conditions = append(conditions, fmt.Sprintf("tags @> $%d", argPos))
		args = append(args, filters.Tags)
		argPos++
	}
	if filters.MinValue != nil {
		conditions = append(conditions, fmt.Sprintf("estimated_value >= $%d", argPos))
		args = append(args, *filters.MinValue)
		argPos++
	}
	if filters.MaxValue != nil {
		conditions = append(conditions, fmt.Sprintf("estimated_value <= $%d", argPos))
		args = append(args, *filters.MaxValue)
		argPos++
	}
	if filters.CreatedFrom != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argPos))
		args = append(args, *filters.CreatedFrom)
		argPos++
	}
	if filters.CreatedUntil != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argPos))
		args = append(args, *filters.CreatedUntil)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM leads %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM leads %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		leadColumns, whereClause, argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list, err := collectLeads(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Get reads one lead within the scope.
func (r *SQLRepository) Get(ctx context.Context, scope Scope, id uuid.UUID) (Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	args := []any{id}
	if scope.AssignedOnly {
		query += ` AND assigned_to = $2`
		args = append(args, scope.UserID)
	}
	return scanLead(r.pool.QueryRow(ctx, query, args...))
}

// Create inserts a lead.
func (r *SQLRepository) Create(ctx context.Context, lead Lead) (Lead, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO leads (id, name, company, email, phone, status, source, estimated_value, tags, assigned_to, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		 RETURNING `+leadColumns,
		lead.ID, lead.Name, lead.Company, lead.Email, lead.Phone, lead.Status, lead.Source,
		lead.EstimatedValue, lead.Tags, lead.AssignedTo, lead.CreatedBy)
	return scanLead(row)
}

// Update applies partial updates to a lead within the scope. A record outside
// the scope updates zero rows and reports ErrNotFound.
func (r *SQLRepository) Update(ctx context.Context, scope Scope, id uuid.UUID, req UpdateLeadRequest) (Lead, error) {
	query := `UPDATE leads SET
		   name = COALESCE($2, name),
		   company = COALESCE($3, company),
		   email = COALESCE($4, email),
		   phone = COALESCE($5, phone),
		   status = COALESCE($6, status),
		   source = COALESCE($7, source),
		   estimated_value = COALESCE($8, estimated_value),
		   tags = COALESCE($9, tags),
		   assigned_to = COALESCE($10, assigned_to),
		   updated_at = NOW()
		 WHERE id = $1`
	args := []any{id, req.Name, req.Company, req.Email, req.Phone, req.Status, req.Source, req.EstimatedValue, req.Tags, req.AssignedTo}
	if scope.AssignedOnly {
		query += ` AND assigned_to = $11`
		args = append(args, scope.UserID)
	}
	query += ` RETURNING ` + leadColumns
	return scanLead(r.pool.QueryRow(ctx, query, args...))
}

// Delete removes a lead within the scope.
func (r *SQLRepository) Delete(ctx context.Context, scope Scope, id uuid.UUID) error {
	query := `DELETE FROM leads WHERE id = $1`
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

func scanLead(row rowScanner) (Lead, error) {
	var l Lead
	err := row.Scan(&l.ID, &l.Name, &l.Company, &l.Email, &l.Phone, &l.Status, &l.Source,
		&l.EstimatedValue, &l.Tags, &l.AssignedTo, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, err
	}
	return l, nil
}

func collectLeads(rows pgx.Rows) ([]Lead, error) {
	var list []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
