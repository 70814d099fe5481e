package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taskquest/taskquest-api/internal/models"
)

// BadgeRepository handles the achievement badge catalog
type BadgeRepository struct {
	db *DB
}

// NewBadgeRepository creates a new badge repository
func NewBadgeRepository(db *DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

// List returns the full badge catalog
func (r *BadgeRepository) List(ctx context.Context) ([]models.AchievementBadge, error) {
	query := `
		SELECT id, name, description, icon, type, threshold, level
		FROM achievement_badges
		ORDER BY id
	`

	var badges []models.AchievementBadge
	err := r.db.ExecuteWithRetry(ctx, func(pool *sql.DB) error {
		rows, err := pool.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		badges = badges[:0]
		for rows.Next() {
			var badge models.AchievementBadge
			if err := rows.Scan(
				&badge.ID,
				&badge.Name,
				&badge.Description,
				&badge.Icon,
				&badge.Type,
				&badge.Threshold,
				&badge.Level,
			); err != nil {
				return err
			}
			badges = append(badges, badge)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	return badges, nil
}

// SeedDefault inserts the fixed badge catalog, but only when the table is
// currently empty. Safe to call on every startup.
func (r *BadgeRepository) SeedDefault(ctx context.Context) error {
	var count int
	err := r.db.ExecuteWithRetry(ctx, func(pool *sql.DB) error {
		return pool.QueryRowContext(ctx, `SELECT COUNT(*) FROM achievement_badges`).Scan(&count)
	})
	if err != nil {
		return fmt.Errorf("failed to count badges: %w", err)
	}
	if count > 0 {
		return nil
	}

	insert := `
		INSERT INTO achievement_badges (name, description, icon, type, threshold, level)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, badge := range models.DefaultBadges {
		err := r.db.ExecuteWithRetry(ctx, func(pool *sql.DB) error {
			_, execErr := pool.ExecContext(ctx, insert,
				badge.Name,
				badge.Description,
				badge.Icon,
				badge.Type,
				badge.Threshold,
				badge.Level,
			)
			return execErr
		})
		if err != nil {
			return fmt.Errorf("failed to seed badge %q: %w", badge.Name, err)
		}
	}
	return nil
}
