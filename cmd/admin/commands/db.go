package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/taskquest/taskquest-api/internal/database"
)

// openDatabase connects using DATABASE_URL. The admin tool talks only to
// Postgres, so it skips the full service configuration.
func openDatabase() (*database.DB, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	db := database.New(databaseURL)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func closeDatabase(db *database.DB) {
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
	}
}
