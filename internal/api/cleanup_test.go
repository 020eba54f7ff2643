package api

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

type activityStub struct {
	idle bool
}

func (s activityStub) Idle() bool { return s.idle }

func TestCleanTempFilesNotConfigured(t *testing.T) {
	result, err := CleanTempFiles(context.Background(), CleanTempRequest{})
	if err != nil {
		t.Fatalf("CleanTempFiles: %v", err)
	}
	if result.Configured {
		t.Fatal("Configured = true, want false")
	}
}

func TestCleanTempFilesRemovesPartials(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "Artist", "Album")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	partial := filepath.Join(nested, ".riptide-01 Song.mp3")
	keep := filepath.Join(nested, "01 Song.mp3")
	for _, p := range []string{partial, keep} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	result, err := CleanTempFiles(context.Background(), CleanTempRequest{
		DownloadRoot: dir,
		Activity:     activityStub{idle: true},
	})
	if err != nil {
		t.Fatalf("CleanTempFiles: %v", err)
	}
	if result.Removed != 1 {
		t.Fatalf("Removed = %d, want 1", result.Removed)
	}
	if _, err := os.Stat(partial); !os.IsNotExist(err) {
		t.Fatalf("partial still present: %v", err)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("finished file removed: %v", err)
	}
}

func TestCleanTempFilesSkipsWhileBusy(t *testing.T) {
	dir := t.TempDir()
	partial := filepath.Join(dir, ".riptide-song.mp3")
	if err := os.WriteFile(partial, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result, err := CleanTempFiles(context.Background(), CleanTempRequest{
		DownloadRoot: dir,
		Activity:     activityStub{idle: false},
	})
	if err != nil {
		t.Fatalf("CleanTempFiles: %v", err)
	}
	if !result.Skipped || result.Removed != 0 {
		t.Fatalf("result = %+v, want skipped", result)
	}

	result, err = CleanTempFiles(context.Background(), CleanTempRequest{
		DownloadRoot: dir,
		Force:        true,
		Activity:     activityStub{idle: false},
	})
	if err != nil {
		t.Fatalf("CleanTempFiles force: %v", err)
	}
	if result.Removed != 1 {
		t.Fatalf("Removed = %d, want 1", result.Removed)
	}
}
