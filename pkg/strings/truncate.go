package strings

import (
	"strings"
)

// DefaultMessageMaxLen caps provider-supplied text shown to the user.
const DefaultMessageMaxLen = 300

// MinTruncateLen is the smallest maxLen Truncate honours: one character
// plus "...".
const MinTruncateLen = 4

// Truncate collapses all whitespace in s to single spaces and cuts it to
// maxLen runes, ending in "..." when shortened.
func Truncate(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
