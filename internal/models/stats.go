package models

import (
	"time"

	"github.com/google/uuid"
)

// PointsPerLevel is the number of points needed to advance one level.
const PointsPerLevel = 100

// WeekStats aggregates activity for a single week of the year.
type WeekStats struct {
	Tasks        int `json:"tasks"`
	HighPriority int `json:"highPriority"`
	Points       int `json:"points"`
}

// UserStats is the single gamification record for a user. It is created
// lazily with zeroed counters on first access and mutated only by the
// scoring engine and the achievement evaluator.
type UserStats struct {
	UserID                uuid.UUID            `json:"user_id"`
	TasksCompleted        int                  `json:"tasks_completed"`
	HighPriorityCompleted int                  `json:"high_priority_completed"`
	TasksCreated          int                  `json:"tasks_created"`
	AITasksGenerated      int                  `json:"ai_tasks_generated"`
	DaysStreak            int                  `json:"days_streak"`
	LastActive            time.Time            `json:"last_active"`
	Points                int                  `json:"points"`
	Level                 int                  `json:"level"`
	WeeklyStats           map[string]WeekStats `json:"weekly_stats"`
	CreatedAt             time.Time            `json:"created_at"`
	UpdatedAt             time.Time            `json:"updated_at"`
}

// LevelForPoints derives the level from a points total. The invariant
// level == points/100 + 1 must hold after every stats update.
func LevelForPoints(points int) int {
	if points < 0 {
		points = 0
	}
	return points/PointsPerLevel + 1
}
