package record

import (
	"strings"
	"unicode/utf8"
)

// CountWords returns the number of whitespace-delimited tokens.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// CountChars returns the character count as runes (not bytes).
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}

// Preview returns at most n runes of text, with "..." appended when truncated.
func Preview(text string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n]) + "..."
}

// ShortHash returns the first 8 characters of a content hash for display.
func ShortHash(hash *string) string {
	if hash == nil || *hash == "" {
		return "-"
	}
	h := *hash
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
