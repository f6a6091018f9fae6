package utils

import (
	"regexp"
	"strings"
)

var (
	unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)
	underscoreRuns      = regexp.MustCompile(`_+`)
)

// maxFilenameLen caps sanitized names in bytes, not runes
const maxFilenameLen = 100

// SanitizeFilename makes name safe as a single path component on both
// Windows and Unix. Unsafe characters become underscores and runs of them
// collapse to one; dots survive, so hostnames keep their shape. A name
// that sanitizes away entirely becomes "untitled".
func SanitizeFilename(name string) string {
	safe := unsafeFilenameChars.ReplaceAllString(name, "_")
	safe = underscoreRuns.ReplaceAllString(safe, "_")
	safe = strings.Trim(safe, "_ ")

	if len(safe) > maxFilenameLen {
		// truncation can expose an underscore or space at the new edge
		safe = safe[:maxFilenameLen]
		safe = strings.Trim(safe, "_ ")
	}

	if safe == "" {
		return "untitled"
	}
	return safe
}
