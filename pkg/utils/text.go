// Package utils provides small shared helpers for text, math, and logging.
package utils

// Truncate returns s cut to at most maxRunes runes, with "..." appended when
// anything was cut. Counting runes keeps multi-byte characters (accented
// Spanish text) intact. maxRunes <= 0 returns s unchanged.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}
