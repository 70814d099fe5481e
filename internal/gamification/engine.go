package gamification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taskquest/taskquest-api/internal/database"
	"github.com/taskquest/taskquest-api/internal/models"
	"go.uber.org/zap"
)

// Engine applies scoring events to a user's stats record and triggers
// achievement evaluation. Each event handler runs its steps strictly in
// order: read stats, compute, persist, re-affirm the task row, evaluate
// achievements. Concurrent events for the same user are not serialized here;
// the read-modify-write race is an accepted limitation of the design.
type Engine struct {
	stats     database.StatsRepositoryInterface
	tasks     database.TaskRepositoryInterface
	evaluator *Evaluator
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a logger to the engine and its evaluator.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.evaluator.logger = logger
	}
}

// WithClock overrides the engine's time source (for tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a scoring engine over the given repositories.
func NewEngine(
	stats database.StatsRepositoryInterface,
	badges database.BadgeRepositoryInterface,
	achievements database.AchievementRepositoryInterface,
	tasks database.TaskRepositoryInterface,
	opts ...Option,
) *Engine {
	e := &Engine{
		stats:     stats,
		tasks:     tasks,
		evaluator: NewEvaluator(badges, achievements, stats),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InitializeUserStats returns the user's stats record, creating a zeroed one
// on first access.
func (e *Engine) InitializeUserStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	return e.stats.GetOrCreate(ctx, userID)
}

// HandleTaskCompleted scores a task completion. The task must already be in
// "completed" status; any other status is a no-op returning (nil, nil), which
// also guards against double-scoring a task completed twice. A missing task
// is a hard error.
func (e *Engine) HandleTaskCompleted(ctx context.Context, userID, taskID uuid.UUID) (*models.UserStats, error) {
	task, err := e.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	if task.Status != models.TaskStatusCompleted {
		return nil, nil
	}

	now := e.now()
	stats, err := e.stats.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	highPriority := task.Priority == models.TaskPriorityHigh
	pointsEarned := completionPoints(task, now)

	tasksCompleted := stats.TasksCompleted + 1
	highPriorityCompleted := stats.HighPriorityCompleted
	if highPriority {
		highPriorityCompleted++
	}
	points := stats.Points + pointsEarned
	level := models.LevelForPoints(points)
	streak := nextStreak(stats.DaysStreak, stats.LastActive, now)

	weekly := cloneWeekly(stats.WeeklyStats)
	key := weekKey(now)
	week := weekly[key]
	week.Tasks++
	if highPriority {
		week.HighPriority++
	}
	week.Points += pointsEarned
	weekly[key] = week

	updated, err := e.stats.Update(ctx, userID, database.StatsUpdate{
		TasksCompleted:        &tasksCompleted,
		HighPriorityCompleted: &highPriorityCompleted,
		DaysStreak:            &streak,
		LastActive:            &now,
		Points:                &points,
		Level:                 &level,
		WeeklyStats:           weekly,
	})
	if err != nil {
		return nil, err
	}

	// Re-affirm the task row: completed status plus completion timestamp.
	task.Status = models.TaskStatusCompleted
	task.CompletedAt = &now
	if err := e.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task completion: %w", err)
	}

	e.logger.Debug("task_completion_scored",
		zap.String("user_id", userID.String()),
		zap.String("task_id", taskID.String()),
		zap.Int("points_earned", pointsEarned),
		zap.Int("streak", streak),
	)

	if _, err := e.evaluator.Evaluate(ctx, userID, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// HandleTaskCreated scores a task creation. Creation earns a flat 2 points;
// it does not recompute the level and does not run achievement evaluation.
func (e *Engine) HandleTaskCreated(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	stats, err := e.stats.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	tasksCreated := stats.TasksCreated + 1
	points := stats.Points + taskCreatedPoints

	return e.stats.Update(ctx, userID, database.StatsUpdate{
		TasksCreated: &tasksCreated,
		Points:       &points,
		LastActive:   &now,
	})
}

// HandleAITasksGenerated scores a batch of AI-extracted tasks (5 points per
// task) and runs achievement evaluation.
func (e *Engine) HandleAITasksGenerated(ctx context.Context, userID uuid.UUID, count int) (*models.UserStats, error) {
	stats, err := e.stats.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	aiGenerated := stats.AITasksGenerated + count
	points := stats.Points + aiGeneratedPerTask*count

	updated, err := e.stats.Update(ctx, userID, database.StatsUpdate{
		AITasksGenerated: &aiGenerated,
		Points:           &points,
		LastActive:       &now,
	})
	if err != nil {
		return nil, err
	}

	if _, err := e.evaluator.Evaluate(ctx, userID, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// GetNewAchievements returns achievements not yet shown to the user, joined
// with badge display fields.
func (e *Engine) GetNewAchievements(ctx context.Context, userID uuid.UUID) ([]*models.UserAchievement, error) {
	return e.evaluator.achievements.GetUndisplayed(ctx, userID)
}

// MarkAchievementsAsDisplayed marks the given achievement ids as shown.
// An empty list is a no-op.
func (e *Engine) MarkAchievementsAsDisplayed(ctx context.Context, userID uuid.UUID, achievementIDs []int64) error {
	return e.evaluator.achievements.MarkDisplayed(ctx, userID, achievementIDs)
}

// GetUserBadgesWithDetails returns all of a user's earned badges with their
// catalog details, ordered by earn time ascending.
func (e *Engine) GetUserBadgesWithDetails(ctx context.Context, userID uuid.UUID) ([]*models.UserAchievement, error) {
	return e.evaluator.achievements.ListWithBadges(ctx, userID)
}
