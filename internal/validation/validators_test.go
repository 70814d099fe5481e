package validation

import "testing"

func TestValidateTaskStatus(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"pending", "in_progress", "completed"} {
		if err := ValidateTaskStatus(valid); err != nil {
			t.Errorf("ValidateTaskStatus(%q) = %v, expected nil", valid, err)
		}
	}
	for _, invalid := range []string{"", "done", "PENDING", "archived"} {
		if err := ValidateTaskStatus(invalid); err == nil {
			t.Errorf("ValidateTaskStatus(%q) = nil, expected an error", invalid)
		}
	}
}

func TestValidateTaskPriority(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"low", "medium", "high"} {
		if err := ValidateTaskPriority(valid); err != nil {
			t.Errorf("ValidateTaskPriority(%q) = %v, expected nil", valid, err)
		}
	}
	for _, invalid := range []string{"", "urgent", "High"} {
		if err := ValidateTaskPriority(invalid); err == nil {
			t.Errorf("ValidateTaskPriority(%q) = nil, expected an error", invalid)
		}
	}
}

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"trims whitespace", "  buy milk  ", "buy milk"},
		{"keeps newline and tab", "line1\n\tline2", "line1\n\tline2"},
		{"strips control characters", "task\x00\x1bname", "taskname"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := SanitizeText(tt.input); got != tt.expected {
				t.Errorf("SanitizeText(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}
