package strings

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"short string unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"long string truncated", "hello world this is a long string", 15, "hello world ..."},
		{"newlines collapsed", "verification\r\n\n failed", 40, "verification failed"},
		{"tabs collapsed", "a\t\tb", 10, "a b"},
		{"unicode cut on rune boundary", "Überprüfung fehlgeschlagen", 8, "Überp..."},
		{"tiny maxLen clamped", "abcdefgh", 1, "a..."},
		{"empty", "", 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.input, tt.maxLen); got != tt.expected {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.expected)
			}
		})
	}
}
