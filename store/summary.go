package store

import (
	"strings"
	"unicode"
)

// MergeSummary appends addition to existing, separated by a single space.
// A blank addition leaves existing untouched, byte for byte.
func MergeSummary(existing, addition string) string {
	addition = strings.TrimSpace(addition)
	if addition == "" {
		return existing
	}
	existing = strings.TrimSpace(existing)
	if existing == "" {
		return addition
	}
	return existing + " " + addition
}

// CapSummary keeps at most maxRunes runes of summary, dropping the oldest (leading)
// text first and cutting at a word boundary when one is available. A maxRunes of zero
// or less disables the cap.
func CapSummary(summary string, maxRunes int) string {
	if maxRunes <= 0 {
		return summary
	}
	runes := []rune(summary)
	if len(runes) <= maxRunes {
		return summary
	}

	tail := runes[len(runes)-maxRunes:]
	// Avoid starting mid-word when the cut did not land on whitespace.
	if !unicode.IsSpace(runes[len(runes)-maxRunes-1]) {
		for i, r := range tail {
			if unicode.IsSpace(r) {
				tail = tail[i:]
				break
			}
		}
	}
	return strings.TrimSpace(string(tail))
}
