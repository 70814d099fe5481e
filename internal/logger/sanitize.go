package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxPathLength caps URL paths in log fields
	MaxPathLength = 500
	// MaxUserIDLength caps user identifiers in log fields
	MaxUserIDLength = 128
	// MaxErrorMessageLength caps error messages in log fields
	MaxErrorMessageLength = 1000
	// MaxGeneralStringLength is the fallback cap for SanitizeString
	MaxGeneralStringLength = 2000
)

// SanitizePath prepares a URL path for logging: strips control characters,
// repairs invalid UTF-8, and truncates to MaxPathLength.
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeString strips control characters, repairs invalid UTF-8, and
// truncates to maxLength. A non-positive maxLength uses the general cap.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	s = stripControlRunes(s)
	if len(s) > maxLength {
		s = s[:maxLength] + "..."
	}
	return s
}

func stripControlRunes(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// SanitizeError renders an error for logging, empty for nil.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizeUserID prepares a subject or user ID for logging.
func SanitizeUserID(userID string) string {
	return SanitizeString(userID, MaxUserIDLength)
}
