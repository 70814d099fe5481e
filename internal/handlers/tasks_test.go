package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/taskquest/taskquest-api/internal/models"
	"github.com/taskquest/taskquest-api/internal/request"
	"go.uber.org/zap"
)

type mockTaskStore struct {
	tasks       map[uuid.UUID]*models.Task
	createErr   error
	lastCreated *models.Task
	deleted     []uuid.UUID
}

func newMockTaskStore() *mockTaskStore {
	return &mockTaskStore{tasks: make(map[uuid.UUID]*models.Task)}
}

func (m *mockTaskStore) Create(_ context.Context, task *models.Task) error {
	if m.createErr != nil {
		return m.createErr
	}
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	if task.Priority == "" {
		task.Priority = models.TaskPriorityMedium
	}
	m.tasks[task.ID] = task
	m.lastCreated = task
	return nil
}

func (m *mockTaskStore) GetByID(_ context.Context, id uuid.UUID) (*models.Task, error) {
	task, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task not found: %w", sql.ErrNoRows)
	}
	return task, nil
}

func (m *mockTaskStore) Update(_ context.Context, task *models.Task) error {
	m.tasks[task.ID] = task
	return nil
}

func (m *mockTaskStore) GetByUserID(_ context.Context, userID uuid.UUID, status *models.TaskStatus) ([]*models.Task, error) {
	var out []*models.Task
	for _, task := range m.tasks {
		if task.UserID != userID {
			continue
		}
		if status != nil && task.Status != *status {
			continue
		}
		out = append(out, task)
	}
	return out, nil
}

func (m *mockTaskStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.tasks, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockHandlerEngine struct {
	createdCalls   int
	completedCalls int
	completedTask  uuid.UUID
	completeErr    error
	marked         []int64
	newFeed        []*models.UserAchievement
	badges         []*models.UserAchievement
	stats          *models.UserStats
	statsErr       error
}

func (m *mockHandlerEngine) InitializeUserStats(_ context.Context, userID uuid.UUID) (*models.UserStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	if m.stats != nil {
		return m.stats, nil
	}
	return &models.UserStats{UserID: userID, Level: 1}, nil
}

func (m *mockHandlerEngine) HandleTaskCreated(_ context.Context, userID uuid.UUID) (*models.UserStats, error) {
	m.createdCalls++
	return &models.UserStats{UserID: userID}, nil
}

func (m *mockHandlerEngine) HandleTaskCompleted(_ context.Context, userID, taskID uuid.UUID) (*models.UserStats, error) {
	m.completedCalls++
	m.completedTask = taskID
	if m.completeErr != nil {
		return nil, m.completeErr
	}
	return &models.UserStats{UserID: userID, Points: 35, TasksCompleted: 1, Level: 1}, nil
}

func (m *mockHandlerEngine) GetNewAchievements(context.Context, uuid.UUID) ([]*models.UserAchievement, error) {
	return m.newFeed, nil
}

func (m *mockHandlerEngine) MarkAchievementsAsDisplayed(_ context.Context, _ uuid.UUID, ids []int64) error {
	m.marked = ids
	return nil
}

func (m *mockHandlerEngine) GetUserBadgesWithDetails(context.Context, uuid.UUID) ([]*models.UserAchievement, error) {
	return m.badges, nil
}

var _ Engine = (*mockHandlerEngine)(nil)

// taskRouter builds a router with the task routes mounted the way the server
// does it.
func taskRouter(store *mockTaskStore, engine *mockHandlerEngine) *mux.Router {
	router := mux.NewRouter()
	handler := NewTaskHandler(store, engine, zap.NewNop())
	handler.RegisterRoutes(router.PathPrefix("/api/v1/tasks").Subrouter())
	return router
}

func authedRequest(t *testing.T, method, target string, body any, user *models.User) *http.Request {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if user != nil {
		req = req.WithContext(request.WithUser(req.Context(), user))
	}
	return req
}

func decodeData(t *testing.T, body []byte, out any) {
	t.Helper()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("response is not an envelope: %v", err)
	}
	if !envelope.Success {
		t.Fatalf("expected a success envelope: %s", body)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
}

func TestCreateTaskCreditsCreationPoints(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: uuid.New()}
	store := newMockTaskStore()
	engine := &mockHandlerEngine{}
	router := taskRouter(store, engine)

	req := authedRequest(t, http.MethodPost, "/api/v1/tasks", map[string]string{
		"title":    "  Write release notes  ",
		"priority": "high",
	}, user)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if store.lastCreated == nil {
		t.Fatal("no task was stored")
	}
	if store.lastCreated.Title != "Write release notes" {
		t.Errorf("title = %q, expected sanitized title", store.lastCreated.Title)
	}
	if store.lastCreated.UserID != user.ID {
		t.Errorf("task user = %s, expected the authenticated user", store.lastCreated.UserID)
	}
	if engine.createdCalls != 1 {
		t.Errorf("creation credit calls = %d, expected 1", engine.createdCalls)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: uuid.New()}
	router := taskRouter(newMockTaskStore(), &mockHandlerEngine{})

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing title", map[string]string{"priority": "high"}},
		{"blank title", map[string]string{"title": "   "}},
		{"bad priority", map[string]string{"title": "x", "priority": "urgent"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := authedRequest(t, http.MethodPost, "/api/v1/tasks", tt.body, user)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, expected 400", rec.Code)
			}
		})
	}
}

func TestCompleteTaskScoresOnce(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: uuid.New()}
	store := newMockTaskStore()
	task := &models.Task{ID: uuid.New(), UserID: user.ID, Title: "ship it", Status: models.TaskStatusPending, Priority: models.TaskPriorityHigh}
	store.tasks[task.ID] = task
	engine := &mockHandlerEngine{}
	router := taskRouter(store, engine)

	req := authedRequest(t, http.MethodPost, "/api/v1/tasks/"+task.ID.String()+"/complete", nil, user)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if task.Status != models.TaskStatusCompleted {
		t.Errorf("task status = %s, expected completed", task.Status)
	}
	if engine.completedCalls != 1 || engine.completedTask != task.ID {
		t.Errorf("scoring calls = %d for %s, expected one for the task", engine.completedCalls, engine.completedTask)
	}

	var response CompleteTaskResponse
	decodeData(t, rec.Body.Bytes(), &response)
	if response.Stats == nil || response.Stats.Points != 35 {
		t.Errorf("stats = %+v, expected the engine snapshot", response.Stats)
	}

	// A second completion attempt conflicts instead of double scoring.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/v1/tasks/"+task.ID.String()+"/complete", nil, user))
	if rec.Code != http.StatusConflict {
		t.Errorf("second completion status = %d, expected 409", rec.Code)
	}
	if engine.completedCalls != 1 {
		t.Errorf("scoring calls after retry = %d, expected still 1", engine.completedCalls)
	}
}

func TestCompleteTaskHidesForeignTasks(t *testing.T) {
	t.Parallel()

	owner := &models.User{ID: uuid.New()}
	intruder := &models.User{ID: uuid.New()}
	store := newMockTaskStore()
	task := &models.Task{ID: uuid.New(), UserID: owner.ID, Status: models.TaskStatusPending}
	store.tasks[task.ID] = task
	engine := &mockHandlerEngine{}
	router := taskRouter(store, engine)

	req := authedRequest(t, http.MethodPost, "/api/v1/tasks/"+task.ID.String()+"/complete", nil, intruder)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, foreign tasks must read as not found", rec.Code)
	}
	if engine.completedCalls != 0 {
		t.Error("foreign completion must not score")
	}
}

func TestGetTaskHandlesBadIDs(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: uuid.New()}
	router := taskRouter(newMockTaskStore(), &mockHandlerEngine{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/api/v1/tasks/not-a-uuid", nil, user))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed id status = %d, expected 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/api/v1/tasks/"+uuid.NewString(), nil, user))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, expected 404", rec.Code)
	}
}

func TestListTasksFiltersByStatus(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: uuid.New()}
	store := newMockTaskStore()
	store.tasks[uuid.New()] = &models.Task{ID: uuid.New(), UserID: user.ID, Status: models.TaskStatusPending}
	done := &models.Task{ID: uuid.New(), UserID: user.ID, Status: models.TaskStatusCompleted}
	store.tasks[done.ID] = done
	router := taskRouter(store, &mockHandlerEngine{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/api/v1/tasks?status=completed", nil, user))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var tasks []*models.Task
	decodeData(t, rec.Body.Bytes(), &tasks)
	if len(tasks) != 1 || tasks[0].Status != models.TaskStatusCompleted {
		t.Errorf("tasks = %+v, expected only the completed one", tasks)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/api/v1/tasks?status=bogus", nil, user))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid filter status = %d, expected 400", rec.Code)
	}
}

func TestTaskRoutesRequireUser(t *testing.T) {
	t.Parallel()

	router := taskRouter(newMockTaskStore(), &mockHandlerEngine{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/api/v1/tasks", nil, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, expected 401 without a user", rec.Code)
	}
}

func TestCompleteTaskSurfacesScoringFailure(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: uuid.New()}
	store := newMockTaskStore()
	task := &models.Task{ID: uuid.New(), UserID: user.ID, Status: models.TaskStatusPending}
	store.tasks[task.ID] = task
	engine := &mockHandlerEngine{completeErr: errors.New("stats row gone")}
	router := taskRouter(store, engine)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/v1/tasks/"+task.ID.String()+"/complete", nil, user))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, expected 500 when scoring fails", rec.Code)
	}
}
