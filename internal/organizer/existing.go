package organizer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var mediaExtensions = map[string]struct{}{
	".mp3": {}, ".m4a": {}, ".flac": {}, ".ogg": {}, ".opus": {}, ".wav": {}, ".aac": {},
	".mp4": {}, ".mkv": {}, ".webm": {}, ".mov": {},
}

var sidecarExtensions = map[string]struct{}{
	".lrc": {}, ".srt": {}, ".vtt": {}, ".ass": {}, ".txt": {},
}

// FindExisting returns the first media file in dir whose stem equals stem.
// Sidecars and temp files are ignored; a missing dir is not an error.
func FindExisting(dir, stem string) (string, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("scan %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, TempPrefix) {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		if _, sidecar := sidecarExtensions[ext]; sidecar {
			continue
		}
		if _, media := mediaExtensions[ext]; !media {
			continue
		}
		if strings.TrimSuffix(name, filepath.Ext(name)) == stem {
			return filepath.Join(dir, name), true, nil
		}
	}
	return "", false, nil
}

// Stem returns the file name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// CleanupTemp removes leftover temp files under root and returns how many were removed.
func CleanupTemp(root string) (int, error) {
	removed := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasPrefix(d.Name(), TempPrefix) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}
