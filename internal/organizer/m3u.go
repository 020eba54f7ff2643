package organizer

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const m3uHeader = "#EXTM3U"

// M3UEntry is one playlist line pair.
type M3UEntry struct {
	Duration time.Duration
	Artists  string
	Title    string
	FilePath string
}

// M3UWriter appends entries to playlist files, serializing writers per file.
type M3UWriter struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewM3UWriter returns a writer with no open locks.
func NewM3UWriter() *M3UWriter {
	return &M3UWriter{locks: make(map[string]*sync.Mutex)}
}

func (w *M3UWriter) lockFor(path string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	lock, ok := w.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		w.locks[path] = lock
	}
	return lock
}

// Append adds entry to the playlist at path, creating it with a header when
// missing. It returns false when entry.FilePath is already listed.
func (w *M3UWriter) Append(path string, entry M3UEntry) (bool, error) {
	lock := w.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	present, err := containsPath(path, entry.FilePath)
	if err != nil {
		return false, err
	}
	if present {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create playlist dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("open playlist: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return false, fmt.Errorf("stat playlist: %w", err)
	}
	var b strings.Builder
	if info.Size() == 0 {
		b.WriteString(m3uHeader + "\n")
	}
	seconds := -1
	if entry.Duration > 0 {
		seconds = int(entry.Duration.Round(time.Second) / time.Second)
	}
	fmt.Fprintf(&b, "#EXTINF:%d, %s - %s\n%s\n", seconds, entry.Artists, entry.Title, entry.FilePath)
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return false, fmt.Errorf("write playlist: %w", err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("close playlist: %w", err)
	}
	return true, nil
}

func containsPath(path, target string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("open playlist: %w", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == target {
			return true, nil
		}
	}
	return false, scanner.Err()
}
