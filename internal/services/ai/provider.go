package ai

import (
	"context"
	"time"

	"github.com/taskquest/taskquest-api/internal/models"
)

// ExtractedTask is a single actionable item pulled out of an email body.
type ExtractedTask struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Priority    models.TaskPriority `json:"priority"`
	DueDate     *time.Time          `json:"due_date,omitempty"`
}

// Provider is the interface for task extraction backends.
type Provider interface {
	// ExtractTasks reads an email body and returns the actionable tasks it
	// contains. An email with no actionable content yields an empty slice.
	ExtractTasks(ctx context.Context, emailText string) ([]ExtractedTask, error)
}
