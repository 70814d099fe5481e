package ai

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrRateLimited indicates the API rate limit was exceeded
	ErrRateLimited = errors.New("rate limited")
	// ErrQuotaExceeded indicates the API quota was exceeded
	ErrQuotaExceeded = errors.New("quota exceeded")
)

// APIError represents an error from the extraction provider API
type APIError struct {
	Message     string
	Type        string
	Code        string
	StatusCode  int
	RetryAfter  *time.Duration
	IsPermanent bool // true for quota errors, false for rate limits
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
}

// IsRateLimitError checks if an error is a transient rate limit error.
// Rate limited jobs are requeued; quota errors are not.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 && !apiErr.IsPermanent
	}

	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

// IsQuotaError checks if an error is a permanent quota exhaustion error.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsPermanent || apiErr.Code == "insufficient_quota"
	}

	errStr := err.Error()
	return strings.Contains(errStr, "insufficient_quota") ||
		strings.Contains(errStr, "quota") ||
		strings.Contains(errStr, "billing")
}

// GetRetryDelay calculates the delay before retrying based on error type.
func GetRetryDelay(err error, attempt int) time.Duration {
	shift := uint(0)
	if attempt > 0 {
		if attempt > 10 {
			attempt = 10
		}
		shift = uint(attempt)
	}

	if IsQuotaError(err) {
		// Quota refills take hours, not seconds.
		delay := time.Hour << shift
		if delay > 24*time.Hour {
			delay = 24 * time.Hour
		}
		return delay
	}

	if IsRateLimitError(err) {
		delay := (60 * time.Second) << shift
		if delay > 15*time.Minute {
			delay = 15 * time.Minute
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter != nil && *apiErr.RetryAfter > delay {
			delay = *apiErr.RetryAfter
		}
		return delay
	}

	delay := (5 * time.Second) << shift
	if delay > 5*time.Minute {
		delay = 5 * time.Minute
	}
	return delay
}
