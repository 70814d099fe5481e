package models

import (
	"time"

	"github.com/google/uuid"
)

// BadgeType categorizes which stats counter a badge threshold applies to
type BadgeType string

const (
	BadgeTypeTask     BadgeType = "task"
	BadgeTypePriority BadgeType = "priority"
	BadgeTypeStreak   BadgeType = "streak"
	BadgeTypeAI       BadgeType = "ai"
	BadgeTypeLevel    BadgeType = "level"
)

// Badge tiers. The tier also determines the bonus points granted when the
// badge is awarded (tier * 25).
const (
	BadgeTierBronze = 1
	BadgeTierSilver = 2
	BadgeTierGold   = 3
)

// AchievementBadge is a catalog definition of an earnable award. The catalog
// is seeded once and immutable thereafter.
type AchievementBadge struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Type        BadgeType `json:"type"`
	Threshold   int       `json:"threshold"`
	Level       int       `json:"level"`
}

// UserAchievement records one badge having been earned by one user. Rows are
// created exactly once per (user, badge) pair and mutated only to flip
// Displayed.
type UserAchievement struct {
	ID        int64     `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	BadgeID   int64     `json:"badge_id"`
	EarnedAt  time.Time `json:"earned_at"`
	Displayed bool      `json:"displayed"`

	// Badge display fields, populated on joined reads.
	Badge *AchievementBadge `json:"badge,omitempty"`
}

// DefaultBadges is the fixed catalog seeded by initializeAchievementBadges:
// eleven badges across the five categories.
var DefaultBadges = []AchievementBadge{
	{Name: "First Steps", Description: "Complete your first task", Icon: "footsteps", Type: BadgeTypeTask, Threshold: 1, Level: BadgeTierBronze},
	{Name: "Task Master", Description: "Complete 10 tasks", Icon: "checklist", Type: BadgeTypeTask, Threshold: 10, Level: BadgeTierSilver},
	{Name: "Productivity Champion", Description: "Complete 50 tasks", Icon: "trophy", Type: BadgeTypeTask, Threshold: 50, Level: BadgeTierGold},
	{Name: "Priority Handler", Description: "Complete 5 high priority tasks", Icon: "flame", Type: BadgeTypePriority, Threshold: 5, Level: BadgeTierSilver},
	{Name: "Crisis Manager", Description: "Complete 20 high priority tasks", Icon: "shield", Type: BadgeTypePriority, Threshold: 20, Level: BadgeTierGold},
	{Name: "Consistent", Description: "Stay active 3 days in a row", Icon: "calendar", Type: BadgeTypeStreak, Threshold: 3, Level: BadgeTierBronze},
	{Name: "Dedicated", Description: "Stay active 7 days in a row", Icon: "star", Type: BadgeTypeStreak, Threshold: 7, Level: BadgeTierSilver},
	{Name: "Unstoppable", Description: "Stay active 30 days in a row", Icon: "rocket", Type: BadgeTypeStreak, Threshold: 30, Level: BadgeTierGold},
	{Name: "AI Apprentice", Description: "Generate 5 tasks from email", Icon: "sparkles", Type: BadgeTypeAI, Threshold: 5, Level: BadgeTierBronze},
	{Name: "AI Power User", Description: "Generate 25 tasks from email", Icon: "robot", Type: BadgeTypeAI, Threshold: 25, Level: BadgeTierSilver},
	{Name: "Rising Star", Description: "Reach level 5", Icon: "medal", Type: BadgeTypeLevel, Threshold: 5, Level: BadgeTierSilver},
}
