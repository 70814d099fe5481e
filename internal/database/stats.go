package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taskquest/taskquest-api/internal/models"
)

// StatsRepository handles the per-user gamification stats record
type StatsRepository struct {
	db *DB
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db *DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// StatsUpdate is a partial update of a UserStats record. Nil fields are left
// untouched; a non-nil WeeklyStats replaces the whole weekly_stats blob.
type StatsUpdate struct {
	TasksCompleted        *int
	HighPriorityCompleted *int
	TasksCreated          *int
	AITasksGenerated      *int
	DaysStreak            *int
	LastActive            *time.Time
	Points                *int
	Level                 *int
	WeeklyStats           map[string]models.WeekStats
}

const statsColumns = `user_id, tasks_completed, high_priority_completed, tasks_created,
		       ai_tasks_generated, days_streak, last_active, points, level,
		       weekly_stats, created_at, updated_at`

func scanStats(row *sql.Row) (*models.UserStats, error) {
	stats := &models.UserStats{}
	var weeklyJSON []byte
	var lastActive sql.NullTime

	err := row.Scan(
		&stats.UserID,
		&stats.TasksCompleted,
		&stats.HighPriorityCompleted,
		&stats.TasksCreated,
		&stats.AITasksGenerated,
		&stats.DaysStreak,
		&lastActive,
		&stats.Points,
		&stats.Level,
		&weeklyJSON,
		&stats.CreatedAt,
		&stats.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastActive.Valid {
		stats.LastActive = lastActive.Time
	}
	stats.WeeklyStats = decodeWeeklyStats(weeklyJSON)
	return stats, nil
}

// decodeWeeklyStats parses the weekly_stats blob, skipping malformed legacy
// entries instead of failing the whole read.
func decodeWeeklyStats(data []byte) map[string]models.WeekStats {
	weekly := make(map[string]models.WeekStats)
	if len(data) == 0 {
		return weekly
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return weekly
	}
	for key, entry := range raw {
		var week models.WeekStats
		if err := json.Unmarshal(entry, &week); err != nil {
			continue
		}
		weekly[key] = week
	}
	return weekly
}

// GetOrCreate returns the stats record for a user, inserting a zeroed record
// on first access. Duplicate inserts under concurrent first access are
// absorbed by the primary key (ON CONFLICT DO NOTHING, then re-fetch).
func (r *StatsRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	stats, err := r.get(ctx, userID)
	if err == nil {
		return stats, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}

	insert := `
		INSERT INTO user_stats (user_id, weekly_stats, created_at, updated_at)
		VALUES ($1, '{}', $2, $2)
		ON CONFLICT (user_id) DO NOTHING
	`
	err = r.db.ExecuteWithRetry(ctx, func(pool *sql.DB) error {
		_, execErr := pool.ExecContext(ctx, insert, userID, time.Now())
		return execErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user stats: %w", err)
	}

	stats, err = r.get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-fetch user stats: %w", err)
	}
	return stats, nil
}

func (r *StatsRepository) get(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	query := `SELECT ` + statsColumns + ` FROM user_stats WHERE user_id = $1`

	var stats *models.UserStats
	err := r.db.ExecuteWithRetry(ctx, func(pool *sql.DB) error {
		var scanErr error
		stats, scanErr = scanStats(pool.QueryRowContext(ctx, query, userID))
		return scanErr
	})
	return stats, err
}

// Update applies a partial update and returns the new full record.
func (r *StatsRepository) Update(ctx context.Context, userID uuid.UUID, update StatsUpdate) (*models.UserStats, error) {
	sets := []string{"updated_at = $2"}
	args := []any{userID, time.Now()}

	addSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.TasksCompleted != nil {
		addSet("tasks_completed", *update.TasksCompleted)
	}
	if update.HighPriorityCompleted != nil {
		addSet("high_priority_completed", *update.HighPriorityCompleted)
	}
	if update.TasksCreated != nil {
		addSet("tasks_created", *update.TasksCreated)
	}
	if update.AITasksGenerated != nil {
		addSet("ai_tasks_generated", *update.AITasksGenerated)
	}
	if update.DaysStreak != nil {
		addSet("days_streak", *update.DaysStreak)
	}
	if update.LastActive != nil {
		addSet("last_active", *update.LastActive)
	}
	if update.Points != nil {
		addSet("points", *update.Points)
	}
	if update.Level != nil {
		addSet("level", *update.Level)
	}
	if update.WeeklyStats != nil {
		weeklyJSON, err := json.Marshal(update.WeeklyStats)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal weekly_stats: %w", err)
		}
		addSet("weekly_stats", weeklyJSON)
	}

	query := "UPDATE user_stats SET "
	for i, set := range sets {
		if i > 0 {
			query += ", "
		}
		query += set
	}
	query += " WHERE user_id = $1 RETURNING " + statsColumns

	var stats *models.UserStats
	err := r.db.ExecuteWithRetry(ctx, func(pool *sql.DB) error {
		var scanErr error
		stats, scanErr = scanStats(pool.QueryRowContext(ctx, query, args...))
		return scanErr
	})
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user stats not found for user %s", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user stats: %w", err)
	}
	return stats, nil
}
