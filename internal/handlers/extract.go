package handlers

import (
	"encoding/json"
	"net/http"

	logpkg "github.com/taskquest/taskquest-api/internal/logger"
	"github.com/taskquest/taskquest-api/internal/queue"
	"github.com/taskquest/taskquest-api/internal/request"
	"github.com/taskquest/taskquest-api/internal/validation"
	"go.uber.org/zap"
)

// MaxEmailLength bounds pasted email bodies.
const MaxEmailLength = 50000

// ExtractHandler accepts pasted emails and enqueues extraction jobs.
type ExtractHandler struct {
	jobQueue queue.JobQueue
	logger   *zap.Logger
}

// NewExtractHandler creates a new extraction handler
func NewExtractHandler(jobQueue queue.JobQueue, logger *zap.Logger) *ExtractHandler {
	return &ExtractHandler{jobQueue: jobQueue, logger: logger}
}

// ExtractRequest carries the email body to mine for tasks.
type ExtractRequest struct {
	EmailText string `json:"email_text" validate:"required,min=1,max=50000"`
}

// Extract enqueues an email extraction job and returns its id. Extraction is
// asynchronous; tasks appear on the board when the worker finishes.
func (h *ExtractHandler) Extract(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	req.EmailText = validation.SanitizeText(req.EmailText)
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	job := queue.NewEmailExtractionJob(user.ID, req.EmailText)
	if err := h.jobQueue.Enqueue(r.Context(), job); err != nil {
		h.logger.Error("enqueue_extraction_failed", zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Failed to enqueue extraction")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID.String()})
}
