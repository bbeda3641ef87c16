package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const profileColumns = `user_id, name, email, avatar_url, role_id, created_by, created_at, updated_at`

// SQLRepository provides PostgreSQL backed persistence.
type SQLRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *SQLRepository {
	return &SQLRepository{pool: pool}
}

// GetProfile reads one profile by user id.
func (r *SQLRepository) GetProfile(ctx context.Context, userID uuid.UUID) (Profile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE user_id = $1`, userID)
	return scanProfile(row)
}

// ListProfiles returns all profiles ordered by name.
func (r *SQLRepository) ListProfiles(ctx context.Context) ([]Profile, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+profileColumns+` FROM user_profiles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProfiles(rows)
}

// ListSubUsers returns profiles created by the given user.
func (r *SQLRepository) ListSubUsers(ctx context.Context, creatorID uuid.UUID) ([]Profile, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+profileColumns+` FROM user_profiles WHERE created_by = $1 ORDER BY name`, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProfiles(rows)
}

// CreateProfile inserts a profile together with its credential hash.
func (r *SQLRepository) CreateProfile(ctx context.Context, profile Profile, passwordHash string) (Profile, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO user_profiles (user_id, name, email, password_hash, role_id, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		 RETURNING `+profileColumns,
		profile.UserID, profile.Name, profile.Email, passwordHash, profile.RoleID, profile.CreatedBy)
	created, err := scanProfile(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Profile{}, ErrEmailTaken
		}
		return Profile{}, err
	}
	return created, nil
}

// UpdateProfile applies partial profile updates.
func (r *SQLRepository) UpdateProfile(ctx context.Context, userID uuid.UUID, name, avatarURL *string) (Profile, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE user_profiles SET
		   name = COALESCE($2, name),
		   avatar_url = COALESCE($3, avatar_url),
		   updated_at = NOW()
		 WHERE user_id = $1
		 RETURNING `+profileColumns,
		userID, name, avatarURL)
	return scanProfile(row)
}

// AssignRole sets (or clears) the profile's role reference.
func (r *SQLRepository) AssignRole(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID) (Profile, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE user_profiles SET role_id = $2, updated_at = NOW()
		 WHERE user_id = $1
		 RETURNING `+profileColumns,
		userID, roleID)
	return scanProfile(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (Profile, error) {
	var p Profile
	err := row.Scan(&p.UserID, &p.Name, &p.Email, &p.AvatarURL, &p.RoleID, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	return p, nil
}

func collectProfiles(rows pgx.Rows) ([]Profile, error) {
	var profiles []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return profiles, nil
}
