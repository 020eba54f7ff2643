package organizer

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MaxNameBytes is the longest single file name common filesystems accept.
const MaxNameBytes = 255

// SiblingReserve is kept free under both the path and the name limit so the
// temp file and post-processing scratch files next to a final path fit too.
// Beyond TempPrefix it leaves room for the longest scratch infix plus a
// source extension longer than the target one.
const SiblingReserve = len(TempPrefix) + 16

// Truncate shortens the file stem of path so len(path) <= max and the file
// name fits MaxNameBytes, keeping the directory and extension. A max <= 0
// disables the path limit only.
func Truncate(path string, max int) (string, error) {
	return truncate(path, max, 0)
}

// truncate is Truncate with reserve bytes held back from both limits.
func truncate(path string, max, reserve int) (string, error) {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	allowed := MaxNameBytes - reserve - len(ext)
	if max > 0 {
		allowed = min(allowed, max-reserve-len(dir)-len(ext))
	}
	if len(stem) <= allowed {
		return path, nil
	}
	if allowed < 1 {
		return "", fmt.Errorf("%w: %d bytes of directory and extension leave no room under %d", ErrPathTooLong, len(dir)+len(ext)+reserve, max)
	}
	cut := clip(stem, allowed)
	cut = strings.TrimRight(cut, " .")
	if cut == "" {
		return "", fmt.Errorf("%w: stem %q cannot be shortened to %d bytes", ErrPathTooLong, stem, allowed)
	}
	return dir + cut + ext, nil
}

// clip cuts s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	for !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
