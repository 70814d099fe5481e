package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/taskquest/taskquest-api/internal/database"
)

// NewShowStatsCmd creates the show-stats command
func NewShowStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show-stats <user-id>",
		Short: "Show a user's gamification stats and earned badges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}

			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDatabase(db)

			ctx := context.Background()
			statsRepo := database.NewStatsRepository(db)
			achievementRepo := database.NewAchievementRepository(db)

			stats, err := statsRepo.GetOrCreate(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to load stats: %w", err)
			}

			fmt.Printf("User %s\n", userID)
			fmt.Printf("  Level:          %d\n", stats.Level)
			fmt.Printf("  Points:         %d\n", stats.Points)
			fmt.Printf("  Streak:         %d days\n", stats.DaysStreak)
			fmt.Printf("  Completed:      %d tasks (%d high priority)\n",
				stats.TasksCompleted, stats.HighPriorityCompleted)
			fmt.Printf("  AI generated:   %d tasks\n", stats.AITasksGenerated)

			if len(stats.WeeklyStats) > 0 {
				weeks := make([]string, 0, len(stats.WeeklyStats))
				for week := range stats.WeeklyStats {
					weeks = append(weeks, week)
				}
				sort.Strings(weeks)
				fmt.Println("  Weekly activity:")
				for _, week := range weeks {
					ws := stats.WeeklyStats[week]
					fmt.Printf("    %s: %d completed, %d points\n", week, ws.Tasks, ws.Points)
				}
			}

			achievements, err := achievementRepo.ListWithBadges(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to load achievements: %w", err)
			}
			if len(achievements) == 0 {
				fmt.Println("  No badges earned yet")
				return nil
			}

			fmt.Println("  Badges:")
			for _, achievement := range achievements {
				if achievement.Badge == nil {
					continue
				}
				fmt.Printf("    %s %s (earned %s)\n",
					achievement.Badge.Icon,
					achievement.Badge.Name,
					achievement.EarnedAt.Format("2006-01-02"),
				)
			}
			return nil
		},
	}
}
