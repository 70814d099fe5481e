package gamification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/taskquest/taskquest-api/internal/database"
	"github.com/taskquest/taskquest-api/internal/models"
	"go.uber.org/zap"
)

// Evaluator compares updated stats against the badge catalog and awards
// newly-qualified badges exactly once. Evaluation is a single pass per
// event: bonus points granted for an award do not recompute the level and do
// not cascade into further qualification checks within the same pass.
type Evaluator struct {
	badges       database.BadgeRepositoryInterface
	achievements database.AchievementRepositoryInterface
	stats        database.StatsRepositoryInterface
	logger       *zap.Logger
}

// NewEvaluator creates an achievement evaluator.
func NewEvaluator(
	badges database.BadgeRepositoryInterface,
	achievements database.AchievementRepositoryInterface,
	stats database.StatsRepositoryInterface,
) *Evaluator {
	return &Evaluator{
		badges:       badges,
		achievements: achievements,
		stats:        stats,
		logger:       zap.NewNop(),
	}
}

// AwardResult reports one badge awarded during an evaluation pass.
type AwardResult struct {
	Earned bool                    `json:"earned"`
	Badge  models.AchievementBadge `json:"badge"`
}

// Evaluate loads the catalog and the user's earned badge ids once, awards
// every newly qualifying badge, and credits tier*25 bonus points per award.
// Already-earned badges are excluded up front, so re-running with unchanged
// stats awards nothing.
func (v *Evaluator) Evaluate(ctx context.Context, userID uuid.UUID, stats *models.UserStats) ([]AwardResult, error) {
	catalog, err := v.badges.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load badge catalog: %w", err)
	}
	earned, err := v.achievements.EarnedBadgeIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	var results []AwardResult
	points := stats.Points
	for _, badge := range catalog {
		if _, already := earned[badge.ID]; already {
			continue
		}
		if !qualifies(badge, stats) {
			continue
		}

		achievement := &models.UserAchievement{UserID: userID, BadgeID: badge.ID}
		if err := v.achievements.Create(ctx, achievement); err != nil {
			return nil, err
		}

		points += badge.Level * badgeBonusPerTier
		if _, err := v.stats.Update(ctx, userID, database.StatsUpdate{Points: &points}); err != nil {
			return nil, fmt.Errorf("failed to credit badge bonus: %w", err)
		}

		v.logger.Info("achievement_awarded",
			zap.String("user_id", userID.String()),
			zap.String("badge", badge.Name),
			zap.Int("bonus_points", badge.Level*badgeBonusPerTier),
		)
		results = append(results, AwardResult{Earned: true, Badge: badge})
	}
	return results, nil
}

// qualifies tests a badge threshold against the stats counter its type
// refers to.
func qualifies(badge models.AchievementBadge, stats *models.UserStats) bool {
	switch badge.Type {
	case models.BadgeTypeTask:
		return stats.TasksCompleted >= badge.Threshold
	case models.BadgeTypePriority:
		return stats.HighPriorityCompleted >= badge.Threshold
	case models.BadgeTypeStreak:
		return stats.DaysStreak >= badge.Threshold
	case models.BadgeTypeAI:
		return stats.AITasksGenerated >= badge.Threshold
	case models.BadgeTypeLevel:
		return stats.Level >= badge.Threshold
	default:
		return false
	}
}
