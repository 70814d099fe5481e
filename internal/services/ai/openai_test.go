package ai

import (
	"errors"
	"testing"

	"github.com/taskquest/taskquest-api/internal/models"
)

func TestParseExtractionResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		content   string
		expectErr bool
		expected  int
		validate  func(*testing.T, []ExtractedTask)
	}{
		{
			name:     "clean json",
			content:  `{"tasks":[{"title":"Send Q3 report","description":"To finance","priority":"high","due_date":"2026-09-04"}]}`,
			expected: 1,
			validate: func(t *testing.T, tasks []ExtractedTask) {
				if tasks[0].Title != "Send Q3 report" {
					t.Errorf("title = %q", tasks[0].Title)
				}
				if tasks[0].Priority != models.TaskPriorityHigh {
					t.Errorf("priority = %q, expected high", tasks[0].Priority)
				}
				if tasks[0].DueDate == nil || tasks[0].DueDate.Format("2006-01-02") != "2026-09-04" {
					t.Errorf("due date = %v", tasks[0].DueDate)
				}
			},
		},
		{
			name:     "json wrapped in prose",
			content:  "Here are the tasks:\n```json\n{\"tasks\":[{\"title\":\"Book room\",\"priority\":\"low\"}]}\n```",
			expected: 1,
			validate: func(t *testing.T, tasks []ExtractedTask) {
				if tasks[0].Priority != models.TaskPriorityLow {
					t.Errorf("priority = %q", tasks[0].Priority)
				}
			},
		},
		{
			name:     "unknown priority falls back to medium",
			content:  `{"tasks":[{"title":"Follow up","priority":"urgent"}]}`,
			expected: 1,
			validate: func(t *testing.T, tasks []ExtractedTask) {
				if tasks[0].Priority != models.TaskPriorityMedium {
					t.Errorf("priority = %q, expected medium fallback", tasks[0].Priority)
				}
			},
		},
		{
			name:     "malformed due date dropped, task kept",
			content:  `{"tasks":[{"title":"Call vendor","priority":"medium","due_date":"next Tuesday"}]}`,
			expected: 1,
			validate: func(t *testing.T, tasks []ExtractedTask) {
				if tasks[0].DueDate != nil {
					t.Errorf("due date = %v, expected nil", tasks[0].DueDate)
				}
			},
		},
		{
			name:     "untitled entries skipped",
			content:  `{"tasks":[{"title":"  "},{"title":"Real task"}]}`,
			expected: 1,
		},
		{
			name:     "no actionable content",
			content:  `{"tasks":[]}`,
			expected: 0,
		},
		{
			name:      "not json at all",
			content:   "I could not find any tasks, sorry!",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tasks, err := parseExtractionResponse(tt.content)
			if tt.expectErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(tasks) != tt.expected {
				t.Fatalf("tasks = %d, expected %d: %+v", len(tasks), tt.expected, tasks)
			}
			if tt.validate != nil {
				tt.validate(t, tasks)
			}
		})
	}
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		rateLimit bool
		quota     bool
	}{
		{"nil", nil, false, false},
		{"429 api error", &APIError{StatusCode: 429}, true, false},
		{"quota api error", &APIError{StatusCode: 429, IsPermanent: true, Code: "insufficient_quota"}, false, true},
		{"message with 429", errors.New("unexpected status 429 from upstream"), true, false},
		{"message with quota", errors.New("insufficient_quota: check billing"), false, true},
		{"plain failure", errors.New("connection reset"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsRateLimitError(tt.err); got != tt.rateLimit {
				t.Errorf("IsRateLimitError = %v, expected %v", got, tt.rateLimit)
			}
			if got := IsQuotaError(tt.err); got != tt.quota {
				t.Errorf("IsQuotaError = %v, expected %v", got, tt.quota)
			}
		})
	}
}
