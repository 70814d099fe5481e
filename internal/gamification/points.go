package gamification

import (
	"fmt"
	"math"
	"time"

	"github.com/taskquest/taskquest-api/internal/models"
)

// Point values. These are fixed product rules, not configuration.
const (
	// Task completion: base, plus priority and deadline bonuses.
	completionBasePoints = 10
	highPriorityBonus    = 10
	mediumPriorityBonus  = 5
	beforeDueDateBonus   = 15

	// Other scoring events.
	taskCreatedPoints   = 2
	aiGeneratedPerTask  = 5
	badgeBonusPerTier   = 25
)

// Streak windows: activity within a day extends the streak (once per
// calendar day), a single missed day is forgiven, anything longer resets.
const (
	streakExtendWindow = 24 * time.Hour
	streakGraceWindow  = 48 * time.Hour
)

// completionPoints computes the points earned for completing a task:
// base 10, +10 for high priority, +5 for medium, +15 when the due date is
// still in the future.
func completionPoints(task *models.Task, now time.Time) int {
	points := completionBasePoints
	switch task.Priority {
	case models.TaskPriorityHigh:
		points += highPriorityBonus
	case models.TaskPriorityMedium:
		points += mediumPriorityBonus
	}
	if task.DueDate != nil && task.DueDate.After(now) {
		points += beforeDueDateBonus
	}
	return points
}

// nextStreak computes the new consecutive-day streak given the previous
// activity timestamp. Repeat activity on the same calendar day does not
// double-count.
func nextStreak(current int, lastActive, now time.Time) int {
	since := now.Sub(lastActive)
	switch {
	case since <= streakExtendWindow:
		if !sameCalendarDay(lastActive, now) {
			return current + 1
		}
		return current
	case since <= streakGraceWindow:
		return current
	default:
		return 1
	}
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// weekKey labels the week of the year containing t:
// week number = ceil((daysSinceJan1 + weekdayOfJan1 + 1) / 7), with the
// weekday convention 0=Sunday.
func weekKey(t time.Time) string {
	jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	daysSinceJan1 := int(t.Sub(jan1).Hours() / 24)
	week := int(math.Ceil(float64(daysSinceJan1+int(jan1.Weekday())+1) / 7.0))
	return fmt.Sprintf("week_%d", week)
}

// cloneWeekly copies a weekly stats map so an update never mutates the
// record read from the store.
func cloneWeekly(weekly map[string]models.WeekStats) map[string]models.WeekStats {
	clone := make(map[string]models.WeekStats, len(weekly)+1)
	for key, week := range weekly {
		clone[key] = week
	}
	return clone
}
