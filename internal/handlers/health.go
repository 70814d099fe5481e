package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/taskquest/taskquest-api/internal/queue"
)

// Pinger is the database surface the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker handles health check requests
type HealthChecker struct {
	db    Pinger
	redis *redis.Client
	queue queue.JobQueue
}

// NewHealthChecker creates a health checker. Nil dependencies are skipped in
// extended mode.
func NewHealthChecker(db Pinger, redisClient *redis.Client, jobQueue queue.JobQueue) *HealthChecker {
	return &HealthChecker{db: db, redis: redisClient, queue: jobQueue}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint. The basic mode only confirms
// the process serves requests; ?mode=extended probes the dependencies.
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	statusCode := http.StatusOK

	if r.URL.Query().Get("mode") == "extended" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := make(map[string]string)
		if h.db != nil {
			checks["database"] = h.checkResult(h.db.Ping(ctx))
		}
		if h.redis != nil {
			checks["redis"] = h.checkResult(h.redis.Ping(ctx).Err())
		}
		if h.queue != nil {
			checks["queue"] = h.checkResult(h.queue.HealthCheck(ctx))
		}
		response.Checks = checks

		for _, result := range checks {
			if result != "healthy" {
				response.Status = "unhealthy"
				statusCode = http.StatusServiceUnavailable
				break
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func (h *HealthChecker) checkResult(err error) string {
	if err != nil {
		return "unhealthy: " + err.Error()
	}
	return "healthy"
}
