package strings

import (
	"strings"
)

// DefaultCellMaxLen bounds free-form values shown in CLI tables.
const DefaultCellMaxLen = 60

// minTruncateLen leaves room for one character plus "...".
const minTruncateLen = 4

// TruncateCell flattens s onto one line and shortens it to maxLen runes,
// ending in "..." when something was cut. maxLen below 4 is raised to 4.
func TruncateCell(s string, maxLen int) string {
	if maxLen < minTruncateLen {
		maxLen = minTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

// Middle shortens s to maxLen runes by cutting out its middle, so both the
// scheme and the tail of a long URI stay visible.
func Middle(s string, maxLen int) string {
	if maxLen < minTruncateLen {
		maxLen = minTruncateLen
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	keep := maxLen - 3
	head := (keep + 1) / 2
	tail := keep - head
	return string(runes[:head]) + "..." + string(runes[len(runes)-tail:])
}
