package api

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"riptide/internal/history"
	"riptide/internal/queue"
)

type historyStub struct {
	entries []history.Entry
	deleted []string
}

func (h *historyStub) List(ctx context.Context, opts history.ListOptions) ([]history.Entry, error) {
	return h.entries, nil
}

func (h *historyStub) MarkDeleted(ctx context.Context, localID string) error {
	h.deleted = append(h.deleted, localID)
	return nil
}

func seededStore(t *testing.T) (*queue.Store, string) {
	t.Helper()
	dir := t.TempDir()
	file := filepath.Join(dir, "song.mp3")
	if err := os.WriteFile(file, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := queue.NewStore()
	store.Put(queue.Item{LocalID: "wait", Status: queue.StatusWaiting, Available: true})
	store.Put(queue.Item{LocalID: "fail", Status: queue.StatusFailed, Available: true, ErrorMessage: "boom"})
	store.Put(queue.Item{LocalID: "done", Status: queue.StatusDownloaded, Available: true, Progress: 100, FilePath: file})
	return store, file
}

func TestQueueServiceListAndStats(t *testing.T) {
	store, _ := seededStore(t)
	svc := NewQueueService(store, nil)
	ctx := context.Background()

	all, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].LocalID != "wait" || all[2].LocalID != "done" {
		t.Fatalf("unexpected order %+v", all)
	}

	failed, err := svc.List(ctx, queue.StatusFailed)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ErrorMessage != "boom" {
		t.Fatalf("unexpected failed list %+v", failed)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[string(queue.StatusWaiting)] != 1 || stats[string(queue.StatusDownloaded)] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}

	snapshot, err := svc.Map(ctx)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if snapshot["done"].Progress != 100 {
		t.Fatalf("snapshot = %+v", snapshot["done"])
	}

	missing, err := svc.Describe(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("Describe missing = %+v, %v", missing, err)
	}
}

func TestQueueServiceDeleteRemovesFile(t *testing.T) {
	store, file := seededStore(t)
	archive := &historyStub{}
	svc := NewQueueService(store, archive)
	ctx := context.Background()

	path, err := svc.Delete(ctx, "done")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if path != file {
		t.Fatalf("path = %q, want %q", path, file)
	}
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Fatalf("file still present: %v", err)
	}
	item, _ := store.Get("done")
	if item.Status != queue.StatusDeleted {
		t.Fatalf("status = %s, want Deleted", item.Status)
	}
	if len(archive.deleted) != 1 || archive.deleted[0] != "done" {
		t.Fatalf("history not updated: %v", archive.deleted)
	}

	if _, err := svc.Delete(ctx, "wait"); !errors.Is(err, ErrNotDeletable) {
		t.Fatalf("Delete waiting item err = %v, want ErrNotDeletable", err)
	}
	if _, err := svc.Delete(ctx, "nope"); !errors.Is(err, queue.ErrItemNotFound) {
		t.Fatalf("Delete missing err = %v, want ErrItemNotFound", err)
	}
}

func TestQueueServiceHistoryDisabled(t *testing.T) {
	store, _ := seededStore(t)
	svc := NewQueueService(store, nil)
	entries, err := svc.History(context.Background(), history.ListOptions{})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %v, want none", entries)
	}
}

func TestQueueServiceBulkActions(t *testing.T) {
	store, _ := seededStore(t)
	svc := NewQueueService(store, nil)
	ctx := context.Background()

	if got := svc.RetryAll(ctx); got.Affected != 1 || got.Action != "retry_all" {
		t.Fatalf("RetryAll = %+v", got)
	}
	if got := svc.CancelAll(ctx); got.Affected != 2 {
		t.Fatalf("CancelAll = %+v, want 2 waiting items cancelled", got)
	}
	if got := svc.ClearCompleted(ctx); got.Affected != 3 {
		t.Fatalf("ClearCompleted = %+v, want 3", got)
	}
	if store.Len() != 0 {
		t.Fatalf("store len = %d, want 0", store.Len())
	}
}
