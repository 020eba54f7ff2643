package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// reservedChars cannot appear in a path segment on at least one supported filesystem.
const reservedChars = `/\:*?"<>|`

// Sanitizer rewrites free text into a single safe path segment.
type Sanitizer struct {
	replacement string
}

// NewSanitizer returns a Sanitizer that substitutes reserved characters with
// replacement. An empty replacement drops them.
func NewSanitizer(replacement string) Sanitizer {
	return Sanitizer{replacement: replacement}
}

// Segment normalizes value to NFC, replaces reserved and control characters,
// collapses whitespace and trims trailing dots so the result is usable as one
// file or directory name.
func (s Sanitizer) Segment(value string) string {
	value = norm.NFC.String(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(value))
	lastSpace := false
	for _, r := range value {
		switch {
		case strings.ContainsRune(reservedChars, r):
			b.WriteString(s.replacement)
			lastSpace = false
		case unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
			}
			lastSpace = true
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimRight(strings.TrimSpace(b.String()), ". ")
}

// SanitizeFileName replaces filesystem-unsafe characters with "-".
func SanitizeFileName(name string) string {
	return NewSanitizer("-").Segment(name)
}
