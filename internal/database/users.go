package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taskquest/taskquest-api/internal/models"
)

// UserRepository handles user database operations
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, subject, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING created_at, updated_at
	`

	err := r.db.ExecuteWithRetry(ctx, func(pool *sql.DB) error {
		return pool.QueryRowContext(ctx, query,
			user.ID,
			user.Email,
			user.Subject,
			user.Name,
			time.Now(),
		).Scan(&user.CreatedAt, &user.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getBy(ctx, "id = $1", id)
}

// GetBySubject retrieves a user by their token subject
func (r *UserRepository) GetBySubject(ctx context.Context, subject string) (*models.User, error) {
	return r.getBy(ctx, "subject = $1", subject)
}

func (r *UserRepository) getBy(ctx context.Context, where string, arg any) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, email, subject, name, created_at, updated_at
		FROM users
		WHERE ` + where

	err := r.db.ExecuteWithRetry(ctx, func(pool *sql.DB) error {
		return pool.QueryRowContext(ctx, query, arg).Scan(
			&user.ID,
			&user.Email,
			&user.Subject,
			&user.Name,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
	})
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
