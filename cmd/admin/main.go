package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/taskquest/taskquest-api/cmd/admin/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "taskquest-admin",
		Short: "Admin tool for the TaskQuest API",
		Long:  "CLI tool for seeding the badge catalog and inspecting user progress",
	}

	rootCmd.AddCommand(commands.NewSeedBadgesCmd())
	rootCmd.AddCommand(commands.NewListBadgesCmd())
	rootCmd.AddCommand(commands.NewShowStatsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
