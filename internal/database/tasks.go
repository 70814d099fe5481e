package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taskquest/taskquest-api/internal/models"
)

// TaskRepository handles task database operations
type TaskRepository struct {
	db *DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, user_id, board_id, title, description, status, priority,
		       due_date, ai_generated, created_at, updated_at, completed_at`

type taskScanner interface {
	Scan(dest ...any) error
}

func scanTask(row taskScanner) (*models.Task, error) {
	task := &models.Task{}
	var boardID uuid.NullUUID
	var dueDate, completedAt sql.NullTime

	err := row.Scan(
		&task.ID,
		&task.UserID,
		&boardID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&dueDate,
		&task.AIGenerated,
		&task.CreatedAt,
		&task.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if boardID.Valid {
		task.BoardID = &boardID.UUID
	}
	if dueDate.Valid {
		task.DueDate = &dueDate.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	return task, nil
}

// Create creates a new task
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO tasks (id, user_id, board_id, title, description, status, priority, due_date, ai_generated, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING created_at, updated_at
	`

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	if task.Priority == "" {
		task.Priority = models.TaskPriorityMedium
	}

	var boardID uuid.NullUUID
	if task.BoardID != nil {
		boardID = uuid.NullUUID{UUID: *task.BoardID, Valid: true}
	}
	var dueDate sql.NullTime
	if task.DueDate != nil {
		dueDate = sql.NullTime{Time: *task.DueDate, Valid: true}
	}

	err := r.db.ExecuteWithRetry(ctx, func(pool *sql.DB) error {
		return pool.QueryRowContext(ctx, query,
			task.ID,
			task.UserID,
			boardID,
			task.Title,
			task.Description,
			task.Status,
			task.Priority,
			dueDate,
			task.AIGenerated,
			time.Now(),
		).Scan(&task.CreatedAt, &task.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetByID retrieves a task by ID
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	var task *models.Task
	err := r.db.ExecuteWithRetry(ctx, func(pool *sql.DB) error {
		var scanErr error
		task, scanErr = scanTask(pool.QueryRowContext(ctx, query, id))
		return scanErr
	})
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// GetByUserID retrieves all tasks for a user, optionally filtered by status
func (r *TaskRepository) GetByUserID(ctx context.Context, userID uuid.UUID, status *models.TaskStatus) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1`
	args := []any{userID}

	if status != nil {
		query += " AND status = $2"
		args = append(args, string(*status))
	}
	query += " ORDER BY created_at DESC"

	var tasks []*models.Task
	err := r.db.ExecuteWithRetry(ctx, func(pool *sql.DB) error {
		rows, err := pool.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		tasks = tasks[:0]
		for rows.Next() {
			task, err := scanTask(rows)
			if err != nil {
				return err
			}
			tasks = append(tasks, task)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	return tasks, nil
}

// Update updates an existing task
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	query := `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, priority = $5, due_date = $6, updated_at = $7, completed_at = $8
		WHERE id = $1
		RETURNING updated_at
	`

	var dueDate, completedAt sql.NullTime
	if task.DueDate != nil {
		dueDate = sql.NullTime{Time: *task.DueDate, Valid: true}
	}
	if task.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *task.CompletedAt, Valid: true}
	}

	err := r.db.ExecuteWithRetry(ctx, func(pool *sql.DB) error {
		return pool.QueryRowContext(ctx, query,
			task.ID,
			task.Title,
			task.Description,
			task.Status,
			task.Priority,
			dueDate,
			time.Now(),
			completedAt,
		).Scan(&task.UpdatedAt)
	})
	if err == sql.ErrNoRows {
		return fmt.Errorf("task not found: %w", err)
	}
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

// Delete deletes a task by ID
func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM tasks WHERE id = $1`

	var rowsAffected int64
	err := r.db.ExecuteWithRetry(ctx, func(pool *sql.DB) error {
		result, err := pool.ExecContext(ctx, query, id)
		if err != nil {
			return err
		}
		rowsAffected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task not found")
	}
	return nil
}
