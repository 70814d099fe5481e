package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/taskquest/taskquest-api/internal/database"
	logpkg "github.com/taskquest/taskquest-api/internal/logger"
	"github.com/taskquest/taskquest-api/internal/models"
	"github.com/taskquest/taskquest-api/internal/request"
	"github.com/taskquest/taskquest-api/internal/validation"
	"go.uber.org/zap"
)

const (
	// MaxTaskTitleLength is the maximum length for task titles
	MaxTaskTitleLength = 500
	// MaxTaskDescriptionLength is the maximum length for task descriptions
	MaxTaskDescriptionLength = 10000
)

// TaskHandler handles task CRUD and completion requests
type TaskHandler struct {
	tasks  database.TaskStoreInterface
	engine Engine
	logger *zap.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(tasks database.TaskStoreInterface, engine Engine, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, engine: engine, logger: logger}
}

// RegisterRoutes registers task routes on the given router. The router should
// already carry the /tasks prefix.
func (h *TaskHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListTasks).Methods("GET")
	r.HandleFunc("", h.CreateTask).Methods("POST")
	r.HandleFunc("/{id}", h.GetTask).Methods("GET")
	r.HandleFunc("/{id}", h.UpdateTask).Methods("PATCH")
	r.HandleFunc("/{id}", h.DeleteTask).Methods("DELETE")
	r.HandleFunc("/{id}/complete", h.CompleteTask).Methods("POST")
}

// CreateTaskRequest represents a create task request
type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,min=1,max=500"`
	Description string     `json:"description" validate:"max=10000"`
	Priority    string     `json:"priority" validate:"omitempty,task_priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	BoardID     *uuid.UUID `json:"board_id,omitempty"`
}

// UpdateTaskRequest represents a partial task update
type UpdateTaskRequest struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,min=1,max=500"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=10000"`
	Priority    *string    `json:"priority,omitempty" validate:"omitempty,task_priority"`
	Status      *string    `json:"status,omitempty" validate:"omitempty,task_status"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// CompleteTaskResponse carries the completed task together with the updated
// progress snapshot.
type CompleteTaskResponse struct {
	Task  *models.Task      `json:"task"`
	Stats *models.UserStats `json:"stats,omitempty"`
}

// ListTasks lists the authenticated user's tasks, optionally filtered by
// status.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var status *models.TaskStatus
	if s := r.URL.Query().Get("status"); s != "" {
		if err := validation.ValidateTaskStatus(s); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		value := models.TaskStatus(s)
		status = &value
	}

	tasks, err := h.tasks.GetByUserID(r.Context(), user.ID, status)
	if err != nil {
		h.logger.Error("list_tasks_failed", zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to list tasks")
		return
	}

	respondJSON(w, http.StatusOK, tasks)
}

// CreateTask creates a task and credits creation points.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	req.Title = validation.SanitizeText(req.Title)
	req.Description = validation.SanitizeText(req.Description)
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	task := &models.Task{
		UserID:      user.ID,
		BoardID:     req.BoardID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    models.TaskPriority(req.Priority),
		DueDate:     req.DueDate,
	}
	if err := h.tasks.Create(r.Context(), task); err != nil {
		h.logger.Error("create_task_failed", zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create task")
		return
	}

	// Creation points are best effort: the task exists either way.
	if _, err := h.engine.HandleTaskCreated(r.Context(), user.ID); err != nil {
		h.logger.Error("creation_points_failed",
			zap.String("task_id", task.ID.String()),
			zap.String("error", logpkg.SanitizeError(err)),
		)
	}

	respondJSON(w, http.StatusCreated, task)
}

// GetTask returns a single task owned by the authenticated user.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	task, ok := h.loadOwnedTask(w, r, user.ID)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, task)
}

// UpdateTask applies a partial update. Status changes through PATCH do not
// award completion points; POST /{id}/complete is the scoring path.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	task, ok := h.loadOwnedTask(w, r, user.ID)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	if req.Title != nil {
		*req.Title = validation.SanitizeText(*req.Title)
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = validation.SanitizeText(*req.Description)
	}
	if req.Priority != nil {
		task.Priority = models.TaskPriority(*req.Priority)
	}
	if req.Status != nil {
		task.Status = models.TaskStatus(*req.Status)
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}

	if err := h.tasks.Update(r.Context(), task); err != nil {
		h.logger.Error("update_task_failed", zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update task")
		return
	}
	respondJSON(w, http.StatusOK, task)
}

// DeleteTask removes a task owned by the authenticated user.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	task, ok := h.loadOwnedTask(w, r, user.ID)
	if !ok {
		return
	}

	if err := h.tasks.Delete(r.Context(), task.ID); err != nil {
		h.logger.Error("delete_task_failed", zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to delete task")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": task.ID.String()})
}

// CompleteTask marks a task completed and runs the scoring pass.
func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	task, ok := h.loadOwnedTask(w, r, user.ID)
	if !ok {
		return
	}
	if task.Status == models.TaskStatusCompleted {
		respondJSONError(w, http.StatusConflict, "Conflict", "Task is already completed")
		return
	}

	task.Status = models.TaskStatusCompleted
	if err := h.tasks.Update(r.Context(), task); err != nil {
		h.logger.Error("complete_task_failed", zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to complete task")
		return
	}

	stats, err := h.engine.HandleTaskCompleted(r.Context(), user.ID, task.ID)
	if err != nil {
		h.logger.Error("completion_scoring_failed",
			zap.String("task_id", task.ID.String()),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to score completion")
		return
	}

	respondJSON(w, http.StatusOK, CompleteTaskResponse{Task: task, Stats: stats})
}

// loadOwnedTask resolves the {id} path variable to a task owned by userID.
// A task belonging to someone else reads as not found.
func (h *TaskHandler) loadOwnedTask(w http.ResponseWriter, r *http.Request, userID uuid.UUID) (*models.Task, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task id")
		return nil, false
	}

	task, err := h.tasks.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
			return nil, false
		}
		h.logger.Error("get_task_failed", zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load task")
		return nil, false
	}
	if task.UserID != userID {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
		return nil, false
	}
	return task, true
}
