package main

import "strings"

// clip trims whitespace and clamps the string to limit runes, marking the cut
// with an ellipsis.
func clip(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

// snippet shortens a response body for failure reasons.
func snippet(body []byte) string {
	return clip(string(body), 256)
}
