package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// Control characters (except common whitespace)
var controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

// Driver IDs come from device payloads and end up in log lines, KV keys and
// NATS subjects, so the charset is kept deliberately tight.
var driverIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// ValidateDriverID validates a driver identifier from an untrusted source
func ValidateDriverID(id string) error {
	if id == "" {
		return fmt.Errorf("driver id is required")
	}
	if len(id) > 64 {
		return fmt.Errorf("driver id too long (max 64 characters)")
	}
	if !driverIDPattern.MatchString(id) {
		return fmt.Errorf("driver id must contain only letters, digits, dashes and underscores, starting with a letter")
	}
	return nil
}

// MaxNotesLength caps dispatcher resolution notes.
const MaxNotesLength = 1024

// SanitizeNotes strips control characters from free-form dispatcher notes and
// caps their length
func SanitizeNotes(notes string) string {
	notes = controlCharPattern.ReplaceAllString(notes, "")
	notes = strings.TrimSpace(notes)
	if len(notes) > MaxNotesLength {
		notes = notes[:MaxNotesLength]
	}
	return notes
}

// EscapeForLogging escapes untrusted content for safe single-line logging
func EscapeForLogging(text string, maxLen int) string {
	// Truncate
	if len(text) > maxLen {
		text = text[:maxLen] + "..."
	}

	// Remove newlines for single-line logging
	text = strings.ReplaceAll(text, "\n", "\\n")
	text = strings.ReplaceAll(text, "\r", "\\r")
	text = strings.ReplaceAll(text, "\t", "\\t")

	return text
}
