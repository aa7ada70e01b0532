// Package promise detects the delimited completion phrase an agent
// emits to signal that its work is done. The agent wraps the phrase in
// literal <promise>...</promise> tags; matching against the configured
// phrase is exact string equality after whitespace normalization, with
// no fuzzy matching and no case folding.
package promise

import (
	"regexp"
	"strings"
)

var (
	// promiseRe captures the first delimited span. (?s) lets the span
	// cross newlines; the tags themselves are case-sensitive literals.
	promiseRe = regexp.MustCompile(`(?s)<promise>(.*?)</promise>`)

	// whitespaceRe collapses internal whitespace runs, newlines included.
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Extract returns the normalized text of the first <promise> span in
// text, or ("", false) if no delimited span exists. Spans after the
// first are ignored.
func Extract(text string) (string, bool) {
	m := promiseRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return Normalize(m[1]), true
}

// Normalize trims leading and trailing whitespace and collapses every
// internal whitespace run to a single space.
func Normalize(s string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Matches reports whether text contains a promise span whose normalized
// content equals phrase exactly. An empty phrase never matches.
func Matches(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	got, ok := Extract(text)
	return ok && got == phrase
}
