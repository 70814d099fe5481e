package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/taskquest/taskquest-api/internal/database"
)

// NewSeedBadgesCmd creates the seed-badges command
func NewSeedBadgesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-badges",
		Short: "Insert the default badge catalog",
		Long:  "Insert the default badge catalog; badges already present are left untouched",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDatabase(db)

			badgeRepo := database.NewBadgeRepository(db)
			if err := badgeRepo.SeedDefault(context.Background()); err != nil {
				return fmt.Errorf("failed to seed badges: %w", err)
			}

			fmt.Println("Badge catalog seeded")
			return nil
		},
	}
}

// NewListBadgesCmd creates the list-badges command
func NewListBadgesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-badges",
		Short: "List the badge catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDatabase(db)

			badgeRepo := database.NewBadgeRepository(db)
			badges, err := badgeRepo.List(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list badges: %w", err)
			}

			if len(badges) == 0 {
				fmt.Println("No badges configured; run seed-badges first")
				return nil
			}

			for _, badge := range badges {
				fmt.Printf("  %s %s (tier %d)\n", badge.Icon, badge.Name, badge.Level)
				fmt.Printf("    %s\n", badge.Description)
				fmt.Printf("    Type: %s, threshold: %d\n\n", badge.Type, badge.Threshold)
			}
			return nil
		},
	}
}
