package handlers

import (
	"context"

	"github.com/google/uuid"
	"github.com/taskquest/taskquest-api/internal/gamification"
	"github.com/taskquest/taskquest-api/internal/models"
)

// Engine is the gamification surface the HTTP handlers depend on.
// The interface enables mock implementations in tests.
type Engine interface {
	InitializeUserStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error)
	HandleTaskCreated(ctx context.Context, userID uuid.UUID) (*models.UserStats, error)
	HandleTaskCompleted(ctx context.Context, userID, taskID uuid.UUID) (*models.UserStats, error)
	GetNewAchievements(ctx context.Context, userID uuid.UUID) ([]*models.UserAchievement, error)
	MarkAchievementsAsDisplayed(ctx context.Context, userID uuid.UUID, achievementIDs []int64) error
	GetUserBadgesWithDetails(ctx context.Context, userID uuid.UUID) ([]*models.UserAchievement, error)
}

var _ Engine = (*gamification.Engine)(nil)
