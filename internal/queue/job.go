package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of background job
type JobType string

const (
	// JobTypeEmailExtraction extracts actionable tasks from a pasted email
	JobTypeEmailExtraction JobType = "email_extraction"
)

// Metadata keys used by extraction jobs.
const (
	metadataEmailText = "email_text"
)

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID      `json:"id"`
	Type       JobType        `json:"type"`
	UserID     uuid.UUID      `json:"user_id"`
	NotBefore  *time.Time     `json:"not_before,omitempty"` // Earliest time to process (nil = immediate)
	NotAfter   *time.Time     `json:"not_after,omitempty"`  // Latest time to process (nil = no expiration)
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	RetryCount int            `json:"retry_count"`
	MaxRetries int            `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType, userID uuid.UUID) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		UserID:     userID,
		Metadata:   make(map[string]any),
		CreatedAt:  time.Now(),
		MaxRetries: 3,
	}
}

// NewEmailExtractionJob creates an extraction job carrying the email body.
func NewEmailExtractionJob(userID uuid.UUID, emailText string) *Job {
	job := NewJob(JobTypeEmailExtraction, userID)
	job.Metadata[metadataEmailText] = emailText
	return job
}

// EmailText returns the email body for an extraction job, or "" when absent.
func (j *Job) EmailText() string {
	text, _ := j.Metadata[metadataEmailText].(string)
	return text
}

// ShouldProcess checks if the job is inside its processing window.
func (j *Job) ShouldProcess() bool {
	now := time.Now()
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}
	return true
}

// IsExpired checks if the job has passed its NotAfter deadline.
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}
