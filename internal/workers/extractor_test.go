package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/taskquest/taskquest-api/internal/models"
	"github.com/taskquest/taskquest-api/internal/queue"
	"github.com/taskquest/taskquest-api/internal/services/ai"
	"go.uber.org/zap"
)

type mockProvider struct {
	tasks []ai.ExtractedTask
	err   error
	calls int
}

func (m *mockProvider) ExtractTasks(context.Context, string) ([]ai.ExtractedTask, error) {
	m.calls++
	return m.tasks, m.err
}

type mockTaskStore struct {
	created   []*models.Task
	failTitle string
}

func (m *mockTaskStore) Create(_ context.Context, task *models.Task) error {
	if m.failTitle != "" && task.Title == m.failTitle {
		return errors.New("insert failed")
	}
	m.created = append(m.created, task)
	return nil
}

func (m *mockTaskStore) GetByID(context.Context, uuid.UUID) (*models.Task, error) {
	return nil, errors.New("not implemented")
}

func (m *mockTaskStore) Update(context.Context, *models.Task) error {
	return errors.New("not implemented")
}

type mockEngine struct {
	userID uuid.UUID
	count  int
	calls  int
	err    error
}

func (m *mockEngine) HandleAITasksGenerated(_ context.Context, userID uuid.UUID, count int) (*models.UserStats, error) {
	m.calls++
	m.userID = userID
	m.count = count
	return &models.UserStats{UserID: userID}, m.err
}

type mockMessage struct {
	job     *queue.Job
	acked   bool
	nacked  bool
	requeue bool
}

func (m *mockMessage) Ack() error { m.acked = true; return nil }
func (m *mockMessage) Nack(requeue bool) error {
	m.nacked = true
	m.requeue = requeue
	return nil
}
func (m *mockMessage) GetJob() *queue.Job { return m.job }

type mockJobQueue struct {
	enqueued []*queue.Job
}

func (m *mockJobQueue) Enqueue(_ context.Context, job *queue.Job) error {
	m.enqueued = append(m.enqueued, job)
	return nil
}

func (m *mockJobQueue) Consume(context.Context, int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, errors.New("not implemented")
}

func (m *mockJobQueue) Close() error                      { return nil }
func (m *mockJobQueue) HealthCheck(context.Context) error { return nil }

func newExtractor(provider *mockProvider, store *mockTaskStore, engine *mockEngine, jobQueue queue.JobQueue) *TaskExtractor {
	return NewTaskExtractor(provider, store, engine, jobQueue, zap.NewNop())
}

func TestProcessJobCreatesTasksAndCredits(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	due := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)
	provider := &mockProvider{tasks: []ai.ExtractedTask{
		{Title: "Send Q3 report", Priority: models.TaskPriorityHigh, DueDate: &due},
		{Title: "Book meeting room", Priority: models.TaskPriorityLow},
	}}
	store := &mockTaskStore{}
	engine := &mockEngine{}
	extractor := newExtractor(provider, store, engine, &mockJobQueue{})

	msg := &mockMessage{job: queue.NewEmailExtractionJob(userID, "the email body")}
	if err := extractor.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.created) != 2 {
		t.Fatalf("created = %d tasks, expected 2", len(store.created))
	}
	for _, task := range store.created {
		if !task.AIGenerated {
			t.Errorf("task %q must be flagged ai_generated", task.Title)
		}
		if task.UserID != userID {
			t.Errorf("task %q has user %s, expected the job user", task.Title, task.UserID)
		}
	}
	if engine.calls != 1 || engine.count != 2 || engine.userID != userID {
		t.Errorf("engine credit = %d calls for %d tasks, expected one call for 2", engine.calls, engine.count)
	}
	if !msg.acked || msg.nacked {
		t.Error("successful job must be acked")
	}
}

func TestProcessJobSkipsFailedInsertsWhenCrediting(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{tasks: []ai.ExtractedTask{
		{Title: "keep", Priority: models.TaskPriorityMedium},
		{Title: "drop", Priority: models.TaskPriorityMedium},
	}}
	store := &mockTaskStore{failTitle: "drop"}
	engine := &mockEngine{}
	extractor := newExtractor(provider, store, engine, &mockJobQueue{})

	msg := &mockMessage{job: queue.NewEmailExtractionJob(uuid.New(), "body")}
	if err := extractor.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if engine.count != 1 {
		t.Errorf("credited %d tasks, expected only the persisted one", engine.count)
	}
	if !msg.acked {
		t.Error("job must still be acked")
	}
}

func TestProcessJobRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{err: errors.New("connection reset")}
	extractor := newExtractor(provider, &mockTaskStore{}, &mockEngine{}, &mockJobQueue{})

	msg := &mockMessage{job: queue.NewEmailExtractionJob(uuid.New(), "body")}
	if err := extractor.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("expected an error for a failed extraction")
	}

	if !msg.nacked || !msg.requeue {
		t.Error("transient failure must nack with requeue")
	}
	if msg.job.RetryCount != 1 {
		t.Errorf("retry count = %d, expected 1", msg.job.RetryCount)
	}
}

func TestProcessJobDelaysRateLimitedJobs(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{err: &ai.APIError{StatusCode: 429, Message: "slow down"}}
	jobQueue := &mockJobQueue{}
	extractor := newExtractor(provider, &mockTaskStore{}, &mockEngine{}, jobQueue)

	msg := &mockMessage{job: queue.NewEmailExtractionJob(uuid.New(), "body")}
	if err := extractor.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("rate limited job should be handled, got %v", err)
	}

	if !msg.acked {
		t.Error("rate limited job must be acked before re-enqueueing")
	}
	if len(jobQueue.enqueued) != 1 {
		t.Fatalf("enqueued = %d jobs, expected 1 delayed retry", len(jobQueue.enqueued))
	}
	delayed := jobQueue.enqueued[0]
	if delayed.NotBefore == nil || !delayed.NotBefore.After(time.Now()) {
		t.Error("delayed retry must carry a future NotBefore")
	}
	if delayed.RetryCount != 1 {
		t.Errorf("delayed retry count = %d, expected 1", delayed.RetryCount)
	}
	if delayed.EmailText() != "body" {
		t.Error("delayed retry must keep the email payload")
	}
}

func TestProcessJobDeadLettersAfterMaxRetries(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{err: errors.New("still failing")}
	extractor := newExtractor(provider, &mockTaskStore{}, &mockEngine{}, &mockJobQueue{})

	job := queue.NewEmailExtractionJob(uuid.New(), "body")
	job.RetryCount = job.MaxRetries
	msg := &mockMessage{job: job}

	if err := extractor.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("expected an error")
	}
	if !msg.nacked || msg.requeue {
		t.Error("exhausted job must nack without requeue")
	}
}

func TestProcessJobAcksExpiredJobs(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{}
	extractor := newExtractor(provider, &mockTaskStore{}, &mockEngine{}, &mockJobQueue{})

	job := queue.NewEmailExtractionJob(uuid.New(), "body")
	past := time.Now().Add(-time.Minute)
	job.NotAfter = &past
	msg := &mockMessage{job: job}

	if err := extractor.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !msg.acked {
		t.Error("expired job must be acked away")
	}
	if provider.calls != 0 {
		t.Error("expired job must not reach the provider")
	}
}

func TestProcessJobRejectsUnknownType(t *testing.T) {
	t.Parallel()

	extractor := newExtractor(&mockProvider{}, &mockTaskStore{}, &mockEngine{}, &mockJobQueue{})
	msg := &mockMessage{job: queue.NewJob(queue.JobType("mystery"), uuid.New())}

	if err := extractor.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("expected an error")
	}
	if !msg.nacked || msg.requeue {
		t.Error("unknown job type must dead-letter")
	}
}

func TestProcessJobFailsWithoutEmailText(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{}
	extractor := newExtractor(provider, &mockTaskStore{}, &mockEngine{}, &mockJobQueue{})

	msg := &mockMessage{job: queue.NewJob(queue.JobTypeEmailExtraction, uuid.New())}
	if err := extractor.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("expected an error for a job without email text")
	}
	if provider.calls != 0 {
		t.Error("empty job must not reach the provider")
	}
}
