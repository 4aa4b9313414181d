/*
Package text implements the text handling applied to incoming learning queries.

It provides input sanitation for untrusted query text and keyword extraction
used by the catalog matcher.
*/
package text

import (
	"strings"
	"unicode/utf8"
)

// MaxQueryLength is the maximum number of characters (runes) kept by Sanitize.
const MaxQueryLength = 500

var markupStripper = strings.NewReplacer("<", "", ">", "")

// Sanitize normalizes untrusted query text.
//
// Surrounding whitespace is trimmed, every '<' and '>' is removed and the
// result is truncated to MaxQueryLength runes. Nothing else is altered.
func Sanitize(input string) string {
	s := markupStripper.Replace(strings.TrimSpace(input))
	return truncate(s, MaxQueryLength)
}

// truncate cuts s to at most n runes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
