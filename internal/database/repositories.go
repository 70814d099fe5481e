package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/taskquest/taskquest-api/internal/models"
)

// StatsRepositoryInterface defines the stats repository operations used by
// the scoring engine. The interface enables mock implementations in tests.
type StatsRepositoryInterface interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.UserStats, error)
	Update(ctx context.Context, userID uuid.UUID, update StatsUpdate) (*models.UserStats, error)
}

// BadgeRepositoryInterface defines the badge catalog operations
type BadgeRepositoryInterface interface {
	List(ctx context.Context) ([]models.AchievementBadge, error)
	SeedDefault(ctx context.Context) error
}

// AchievementRepositoryInterface defines the achievement award and
// notification feed operations
type AchievementRepositoryInterface interface {
	EarnedBadgeIDs(ctx context.Context, userID uuid.UUID) (map[int64]struct{}, error)
	Create(ctx context.Context, achievement *models.UserAchievement) error
	GetUndisplayed(ctx context.Context, userID uuid.UUID) ([]*models.UserAchievement, error)
	MarkDisplayed(ctx context.Context, userID uuid.UUID, achievementIDs []int64) error
	ListWithBadges(ctx context.Context, userID uuid.UUID) ([]*models.UserAchievement, error)
}

// TaskRepositoryInterface defines the task operations the scoring engine and
// the extraction worker rely on
type TaskRepositoryInterface interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
}

// TaskStoreInterface is the full task surface the HTTP handlers use.
type TaskStoreInterface interface {
	TaskRepositoryInterface
	GetByUserID(ctx context.Context, userID uuid.UUID, status *models.TaskStatus) ([]*models.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserRepositoryInterface defines the user operations the auth middleware
// relies on
type UserRepositoryInterface interface {
	Create(ctx context.Context, user *models.User) error
	GetBySubject(ctx context.Context, subject string) (*models.User, error)
}

// Ensure concrete types implement the interfaces
var (
	_ StatsRepositoryInterface       = (*StatsRepository)(nil)
	_ BadgeRepositoryInterface       = (*BadgeRepository)(nil)
	_ AchievementRepositoryInterface = (*AchievementRepository)(nil)
	_ TaskRepositoryInterface        = (*TaskRepository)(nil)
	_ TaskStoreInterface             = (*TaskRepository)(nil)
	_ UserRepositoryInterface        = (*UserRepository)(nil)
)
