package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taskquest/taskquest-api/internal/database"
	"github.com/taskquest/taskquest-api/internal/models"
	"github.com/taskquest/taskquest-api/internal/queue"
	"github.com/taskquest/taskquest-api/internal/services/ai"
	"go.uber.org/zap"
)

// scoringEngine is the slice of the gamification engine the worker needs.
type scoringEngine interface {
	HandleAITasksGenerated(ctx context.Context, userID uuid.UUID, count int) (*models.UserStats, error)
}

// TaskExtractor consumes email extraction jobs, turns the email body into
// tasks, and credits the user for the generated tasks.
type TaskExtractor struct {
	provider ai.Provider
	tasks    database.TaskRepositoryInterface
	engine   scoringEngine
	jobQueue queue.JobQueue // for re-enqueueing delayed retries
	logger   *zap.Logger
}

// NewTaskExtractor creates a new extraction worker.
func NewTaskExtractor(
	provider ai.Provider,
	tasks database.TaskRepositoryInterface,
	engine scoringEngine,
	jobQueue queue.JobQueue,
	logger *zap.Logger,
) *TaskExtractor {
	return &TaskExtractor{
		provider: provider,
		tasks:    tasks,
		engine:   engine,
		jobQueue: jobQueue,
		logger:   logger,
	}
}

// ProcessJob dispatches a message by job type and settles its acknowledgment.
func (w *TaskExtractor) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if job.IsExpired() {
		w.logger.Info("job_expired",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
		)
		if err := msg.Ack(); err != nil {
			w.logger.Warn("ack_failed", zap.Error(err))
		}
		return nil
	}

	switch job.Type {
	case queue.JobTypeEmailExtraction:
		if err := w.processExtraction(ctx, job); err != nil {
			return w.handleJobError(ctx, msg, job, err)
		}
		if err := msg.Ack(); err != nil {
			w.logger.Warn("ack_failed", zap.Error(err))
		}
		return nil

	default:
		// Unknown job type goes to the DLQ.
		if err := msg.Nack(false); err != nil {
			w.logger.Warn("nack_failed", zap.Error(err))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// processExtraction runs the extraction and persists each task before
// crediting points, so a scoring failure never loses extracted tasks.
func (w *TaskExtractor) processExtraction(ctx context.Context, job *queue.Job) error {
	emailText := job.EmailText()
	if emailText == "" {
		return fmt.Errorf("extraction job %s has no email text", job.ID)
	}

	extracted, err := w.provider.ExtractTasks(ctx, emailText)
	if err != nil {
		return fmt.Errorf("failed to extract tasks: %w", err)
	}

	created := 0
	for _, item := range extracted {
		task := &models.Task{
			UserID:      job.UserID,
			Title:       item.Title,
			Description: item.Description,
			Priority:    item.Priority,
			DueDate:     item.DueDate,
			AIGenerated: true,
		}
		if err := w.tasks.Create(ctx, task); err != nil {
			w.logger.Error("task_create_failed",
				zap.String("job_id", job.ID.String()),
				zap.Error(err),
			)
			continue
		}
		created++
	}

	if created > 0 {
		if _, err := w.engine.HandleAITasksGenerated(ctx, job.UserID, created); err != nil {
			w.logger.Error("scoring_failed",
				zap.String("job_id", job.ID.String()),
				zap.Int("tasks_created", created),
				zap.Error(err),
			)
		}
	}

	w.logger.Info("extraction_completed",
		zap.String("job_id", job.ID.String()),
		zap.Int("tasks_extracted", len(extracted)),
		zap.Int("tasks_created", created),
	)
	return nil
}

// handleJobError settles a failed message. Rate limit and quota errors are
// re-enqueued with a NotBefore delay; other errors retry until MaxRetries and
// then dead-letter.
func (w *TaskExtractor) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	if ai.IsQuotaError(err) || ai.IsRateLimitError(err) {
		retryDelay := ai.GetRetryDelay(err, job.RetryCount)

		if job.CanRetry() && w.jobQueue != nil {
			notBefore := time.Now().Add(retryDelay)
			delayedJob := *job
			delayedJob.NotBefore = &notBefore
			delayedJob.RetryCount = job.RetryCount + 1

			if ackErr := msg.Ack(); ackErr != nil {
				w.logger.Warn("ack_failed", zap.Error(ackErr))
			}
			if enqueueErr := w.jobQueue.Enqueue(ctx, &delayedJob); enqueueErr != nil {
				return fmt.Errorf("failed to re-enqueue job %s: %w", job.ID, enqueueErr)
			}

			w.logger.Warn("job_delayed",
				zap.String("job_id", job.ID.String()),
				zap.Duration("retry_delay", retryDelay),
				zap.Int("retry_count", delayedJob.RetryCount),
				zap.Error(err),
			)
			return nil
		}
	}

	if job.CanRetry() {
		job.IncrementRetry()
		if nackErr := msg.Nack(true); nackErr != nil {
			w.logger.Warn("nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("job failed (will retry): %w", err)
	}

	if nackErr := msg.Nack(false); nackErr != nil {
		w.logger.Warn("nack_failed", zap.Error(nackErr))
	}
	return fmt.Errorf("job failed after %d retries: %w", job.MaxRetries, err)
}
