package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const customerColumns = `id, name, email, phone, company, industry, website, tags, owner_id, created_at, updated_at`

// SQLRepository provides PostgreSQL backed persistence.
type SQLRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *SQLRepository {
	return &SQLRepository{pool: pool}
}

// List returns the filtered page plus the pre-pagination total.
func (r *SQLRepository) List(ctx context.Context, scope Scope, filters ListFilters, limit, offset int) ([]Customer, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if scope.OwnedOnly {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", argPos))
		args = append(args, scope.UserID)
		argPos++
	}
	if filters.Search != "" {
		pattern := "%" + filters.Search + "%"
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR company ILIKE $%d OR email ILIKE $%d)", argPos, argPos, argPos))
		args = append(args, pattern)
		argPos++
	}
	if filters.Industry != "" {
		conditions = append(conditions, fmt.Sprintf("industry = $%d", argPos))
		args = append(args, filters.Industry)
		argPos++
	}
	if len(filters.Tags) > 0 {
		conditions = append(conditions, fmt.Sprintf("tags @> $%d", argPos))
		args = append(args, filters.Tags)
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
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM customers %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM customers %s ORDER BY name, id LIMIT $%d OFFSET $%d`,
		customerColumns, whereClause, argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list, err := collectCustomers(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Get reads one customer within the scope.
func (r *SQLRepository) Get(ctx context.Context, scope Scope, id uuid.UUID) (Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	args := []any{id}
	if scope.OwnedOnly {
		query += ` AND owner_id = $2`
		args = append(args, scope.UserID)
	}
	return scanCustomer(r.pool.QueryRow(ctx, query, args...))
}

// Create inserts a customer.
func (r *SQLRepository) Create(ctx context.Context, customer Customer) (Customer, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO customers (id, name, email, phone, company, industry, website, tags, owner_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		 RETURNING `+customerColumns,
		customer.ID, customer.Name, customer.Email, customer.Phone, customer.Company,
		customer.Industry, customer.Website, customer.Tags, customer.OwnerID)
	return scanCustomer(row)
}

// Update applies partial updates within the scope.
func (r *SQLRepository) Update(ctx context.Context, scope Scope, id uuid.UUID, req UpdateCustomerRequest) (Customer, error) {
	query := `UPDATE customers SET
		   name = COALESCE($2, name),
		   email = COALESCE($3, email),
		   phone = COALESCE($4, phone),
		   company = COALESCE($5, company),
		   industry = COALESCE($6, industry),
		   website = COALESCE($7, website),
		   tags = COALESCE($8, tags),
		   updated_at = NOW()
		 WHERE id = $1`
	args := []any{id, req.Name, req.Email, req.Phone, req.Company, req.Industry, req.Website, req.Tags}
	if scope.OwnedOnly {
		query += ` AND owner_id = $9`
		args = append(args, scope.UserID)
	}
	query += ` RETURNING ` + customerColumns
	return scanCustomer(r.pool.QueryRow(ctx, query, args...))
}

// Delete removes a customer within the scope.
func (r *SQLRepository) Delete(ctx context.Context, scope Scope, id uuid.UUID) error {
	query := `DELETE FROM customers WHERE id = $1`
	args := []any{id}
	if scope.OwnedOnly {
		query += ` AND owner_id = $2`
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

func scanCustomer(row rowScanner) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.Industry,
		&c.Website, &c.Tags, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, err
	}
	return c, nil
}

func collectCustomers(rows pgx.Rows) ([]Customer, error) {
	var list []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
