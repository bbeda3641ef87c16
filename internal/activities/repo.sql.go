package activities

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const activityColumns = `id, type, subject, notes, due_at, done, related_module, related_id, assigned_to, created_by, created_at, updated_at`

// SQLRepository provides PostgreSQL backed persistence.
type SQLRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *SQLRepository {
	return &SQLRepository{pool: pool}
}

// List returns the filtered page plus the pre-pagination total.
func (r *SQLRepository) List(ctx context.Context, scope Scope, filters ListFilters, limit, offset int) ([]Activity, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if scope.AssignedOnly {
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", argPos))
		args = append(args, scope.UserID)
		argPos++
	}
	if filters.Search != "" {
		conditions = append(conditions, fmt.Sprintf("subject ILIKE $%d", argPos))
		args = append(args, "%"+filters.Search+"%")
		argPos++
	}
	if filters.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argPos))
		args = append(args, filters.Type)
		argPos++
	}
	if filters.Done != nil {
		conditions = append(conditions, fmt.Sprintf("done = $%d", argPos))
		args = append(args, *filters.Done)
		argPos++
	}
	if filters.RelatedModule != "" {
		conditions = append(conditions, fmt.Sprintf("related_module = $%d", argPos))
		args = append(args, filters.RelatedModule)
		argPos++
	}
	if filters.RelatedID != nil {
		conditions = append(conditions, fmt.Sprintf("related_id = $%d", argPos))
		args = append(args, *filters.RelatedID)
		argPos++
	}
	if filters.DueFrom != nil {
		conditions = append(conditions, fmt.Sprintf("due_at >= $%d", argPos))
		args = append(args, *filters.DueFrom)
		argPos++
	}
	if filters.DueUntil != nil {
		conditions = append(conditions, fmt.Sprintf("due_at <= $%d", argPos))
		args = append(args, *filters.DueUntil)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM activities %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM activities %s ORDER BY due_at NULLS LAST, created_at DESC, id LIMIT $%d OFFSET $%d`,
		activityColumns, whereClause, argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list, err := collectActivities(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Get reads one activity within the scope.
func (r *SQLRepository) Get(ctx context.Context, scope Scope, id uuid.UUID) (Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE id = $1`
	args := []any{id}
	if scope.AssignedOnly {
		query += ` AND assigned_to = $2`
		args = append(args, scope.UserID)
	}
	return scanActivity(r.pool.QueryRow(ctx, query, args...))
}

// Create inserts an activity.
func (r *SQLRepository) Create(ctx context.Context, activity Activity) (Activity, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO activities (id, type, subject, notes, due_at, done, related_module, related_id, assigned_to, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, NOW(), NOW())
		 RETURNING `+activityColumns,
		activity.ID, activity.Type, activity.Subject, activity.Notes, activity.DueAt, activity.Done,
		activity.RelatedModule, activity.RelatedID, activity.AssignedTo, activity.CreatedBy)
	return scanActivity(row)
}

// Update applies partial updates within the scope.
func (r *SQLRepository) Update(ctx context.Context, scope Scope, id uuid.UUID, req UpdateActivityRequest) (Activity, error) {
	query := `UPDATE activities SET
		   type = COALESCE($2, type),
		   subject = COALESCE($3, subject),
		   notes = COALESCE($4, notes),
		   due_at = COALESCE($5, due_at),
		   done = COALESCE($6, done),
		   assigned_to = COALESCE($7, assigned_to),
		   updated_at = NOW()
		 WHERE id = $1`
	args := []any{id, req.Type, req.Subject, req.Notes, req.DueAt, req.Done, req.AssignedTo}
	if scope.AssignedOnly {
		query += ` AND assigned_to = $8`
		args = append(args, scope.UserID)
	}
	query += ` RETURNING ` + activityColumns
	return scanActivity(r.pool.QueryRow(ctx, query, args...))
}

// Delete removes an activity within the scope.
func (r *SQLRepository) Delete(ctx context.Context, scope Scope, id uuid.UUID) error {
	query := `DELETE FROM activities WHERE id = $1`
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

func scanActivity(row rowScanner) (Activity, error) {
	var a Activity
	var relatedModule *string
	err := row.Scan(&a.ID, &a.Type, &a.Subject, &a.Notes, &a.DueAt, &a.Done,
		&relatedModule, &a.RelatedID, &a.AssignedTo, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Activity{}, ErrNotFound
		}
		return Activity{}, err
	}
	if relatedModule != nil {
		a.RelatedModule = *relatedModule
	}
	return a, nil
}

func collectActivities(rows pgx.Rows) ([]Activity, error) {
	var list []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
