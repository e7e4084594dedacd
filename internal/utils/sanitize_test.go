package utils

import (
	"strings"
	"testing"
)

func TestValidateDriverID(t *testing.T) {
	valid := []string{"DRV001", "driver-17", "cab_42", "A"}
	for _, id := range valid {
		if err := ValidateDriverID(id); err != nil {
			t.Errorf("ValidateDriverID(%q) = %v; want nil", id, err)
		}
	}

	invalid := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"starts with digit", "1DRV"},
		{"starts with dash", "-DRV"},
		{"contains space", "DRV 001"},
		{"contains slash", "DRV/001"},
		{"contains dot", "DRV.001"},
		{"too long", strings.Repeat("D", 65)},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateDriverID(tt.id); err == nil {
				t.Errorf("ValidateDriverID(%q) = nil; want error", tt.id)
			}
		})
	}
}

func TestSanitizeNotes(t *testing.T) {
	tests := []struct {
		name     string
		notes    string
		expected string
	}{
		{"clean", "driver pulled over at rest stop", "driver pulled over at rest stop"},
		{"control chars removed", "called\x00 the\x1f driver", "called the driver"},
		{"whitespace trimmed", "  noted  ", "noted"},
		{"newlines kept", "line one\nline two", "line one\nline two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeNotes(tt.notes)
			if result != tt.expected {
				t.Errorf("SanitizeNotes(%q) = %q; want %q", tt.notes, result, tt.expected)
			}
		})
	}
}

func TestSanitizeNotes_LongInput(t *testing.T) {
	long := strings.Repeat("a", MaxNotesLength+500)
	result := SanitizeNotes(long)
	if len(result) != MaxNotesLength {
		t.Errorf("len(SanitizeNotes(long)) = %d; want %d", len(result), MaxNotesLength)
	}
}

func TestEscapeForLogging(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxLen   int
		expected string
	}{
		{"simple", "hello", 10, "hello"},
		{"with newline", "hello\nworld", 20, "hello\\nworld"},
		{"with tabs", "hello\tworld", 20, "hello\\tworld"},
		{"truncated", "hello world this is long", 10, "hello worl..."},
		{"all escapes", "a\nb\rc\td", 20, "a\\nb\\rc\\td"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EscapeForLogging(tt.text, tt.maxLen)
			if result != tt.expected {
				t.Errorf("EscapeForLogging(%q, %d) = %q; want %q",
					tt.text, tt.maxLen, result, tt.expected)
			}
		})
	}
}
