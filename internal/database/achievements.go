package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/taskquest/taskquest-api/internal/models"
)

// AchievementRepository handles awarded achievement rows and the
// notification (displayed) flag
type AchievementRepository struct {
	db *DB
}

// NewAchievementRepository creates a new achievement repository
func NewAchievementRepository(db *DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// EarnedBadgeIDs returns the set of badge ids the user has already earned.
func (r *AchievementRepository) EarnedBadgeIDs(ctx context.Context, userID uuid.UUID) (map[int64]struct{}, error) {
	query := `SELECT badge_id FROM user_achievements WHERE user_id = $1`

	earned := make(map[int64]struct{})
	err := r.db.ExecuteWithRetry(ctx, func(pool *sql.DB) error {
		rows, err := pool.QueryContext(ctx, query, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		clear(earned)
		for rows.Next() {
			var badgeID int64
			if err := rows.Scan(&badgeID); err != nil {
				return err
			}
			earned[badgeID] = struct{}{}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load earned badge ids: %w", err)
	}
	return earned, nil
}

// Create inserts an award row. The unique (user_id, badge_id) constraint
// guarantees a badge is never awarded twice; a duplicate insert under race
// surfaces as a constraint error to the caller.
func (r *AchievementRepository) Create(ctx context.Context, achievement *models.UserAchievement) error {
	query := `
		INSERT INTO user_achievements (user_id, badge_id, earned_at, displayed)
		VALUES ($1, $2, $3, false)
		RETURNING id, earned_at, displayed
	`

	now := time.Now()
	err := r.db.ExecuteWithRetry(ctx, func(pool *sql.DB) error {
		return pool.QueryRowContext(ctx, query,
			achievement.UserID,
			achievement.BadgeID,
			now,
		).Scan(&achievement.ID, &achievement.EarnedAt, &achievement.Displayed)
	})
	if err != nil {
		return fmt.Errorf("failed to create achievement: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation, e.g. a concurrent duplicate badge award.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

const achievementJoinColumns = `ua.id, ua.user_id, ua.badge_id, ua.earned_at, ua.displayed,
		       b.id, b.name, b.description, b.icon, b.type, b.threshold, b.level`

func scanAchievementRows(rows *sql.Rows) ([]*models.UserAchievement, error) {
	var achievements []*models.UserAchievement
	for rows.Next() {
		achievement := &models.UserAchievement{Badge: &models.AchievementBadge{}}
		if err := rows.Scan(
			&achievement.ID,
			&achievement.UserID,
			&achievement.BadgeID,
			&achievement.EarnedAt,
			&achievement.Displayed,
			&achievement.Badge.ID,
			&achievement.Badge.Name,
			&achievement.Badge.Description,
			&achievement.Badge.Icon,
			&achievement.Badge.Type,
			&achievement.Badge.Threshold,
			&achievement.Badge.Level,
		); err != nil {
			return nil, err
		}
		achievements = append(achievements, achievement)
	}
	return achievements, rows.Err()
}

// GetUndisplayed returns the user's achievements not yet shown to them,
// joined with badge display fields.
func (r *AchievementRepository) GetUndisplayed(ctx context.Context, userID uuid.UUID) ([]*models.UserAchievement, error) {
	query := `
		SELECT ` + achievementJoinColumns + `
		FROM user_achievements ua
		JOIN achievement_badges b ON b.id = ua.badge_id
		WHERE ua.user_id = $1 AND ua.displayed = false
		ORDER BY ua.earned_at
	`

	var achievements []*models.UserAchievement
	err := r.db.ExecuteWithRetry(ctx, func(pool *sql.DB) error {
		rows, err := pool.QueryContext(ctx, query, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		achievements, err = scanAchievementRows(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get new achievements: %w", err)
	}
	return achievements, nil
}

// MarkDisplayed flips the displayed flag for exactly the given achievement
// ids belonging to the user. An empty id list performs no store operation.
func (r *AchievementRepository) MarkDisplayed(ctx context.Context, userID uuid.UUID, achievementIDs []int64) error {
	if len(achievementIDs) == 0 {
		return nil
	}

	query := `
		UPDATE user_achievements
		SET displayed = true
		WHERE user_id = $1 AND id = ANY($2)
	`

	err := r.db.ExecuteWithRetry(ctx, func(pool *sql.DB) error {
		_, execErr := pool.ExecContext(ctx, query, userID, pq.Array(achievementIDs))
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to mark achievements displayed: %w", err)
	}
	return nil
}

// ListWithBadges returns all the user's achievements joined with badge
// details, ordered by earn time ascending.
func (r *AchievementRepository) ListWithBadges(ctx context.Context, userID uuid.UUID) ([]*models.UserAchievement, error) {
	query := `
		SELECT ` + achievementJoinColumns + `
		FROM user_achievements ua
		JOIN achievement_badges b ON b.id = ua.badge_id
		WHERE ua.user_id = $1
		ORDER BY ua.earned_at
	`

	var achievements []*models.UserAchievement
	err := r.db.ExecuteWithRetry(ctx, func(pool *sql.DB) error {
		rows, err := pool.QueryContext(ctx, query, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		achievements, err = scanAchievementRows(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	return achievements, nil
}
