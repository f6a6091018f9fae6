package utils

import (
	"regexp"
	"strings"
)

// Reasoning spans some models emit ahead of the actual answer. The trailing
// newline is part of the span so the answer text keeps its own spacing.
var thinkTagRe = regexp.MustCompile(`(?s)<think>.*?</think>\n`)

// StripThinkTags removes <think>...</think> reasoning blocks from a model
// response, leaving only the user-facing answer text
func StripThinkTags(response string) string {
	return thinkTagRe.ReplaceAllString(response, "")
}

// IsValidHTTPURL reports whether raw is a non-blank URL with an explicit
// http or https scheme. This is the user-input gate, not a full parse;
// stricter parsing happens when the URL is actually used.
func IsValidHTTPURL(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}
	return strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://")
}
