package history_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"riptide/internal/history"
	"riptide/internal/queue"
	"riptide/internal/testsupport"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithHistory())
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndList(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	first := queue.Item{LocalID: "a", Service: "direct", ItemID: "1", Name: "One", Status: queue.StatusDownloaded, FilePath: "/m/one.mp3"}
	second := queue.Item{LocalID: "b", Service: "ytdlp", ItemID: "2", Name: "Two", Status: queue.StatusAlreadyExists, FilePath: "/m/two.mp3"}
	if err := store.Record(ctx, history.EntryFromItem(first, 100, base)); err != nil {
		t.Fatalf("Record first: %v", err)
	}
	if err := store.Record(ctx, history.EntryFromItem(second, 200, base.Add(time.Minute))); err != nil {
		t.Fatalf("Record second: %v", err)
	}

	entries, err := store.List(ctx, history.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].LocalID != "b" || entries[1].LocalID != "a" {
		t.Fatalf("expected newest first, got %+v", entries)
	}
	if entries[1].SizeBytes != 100 || !entries[1].CompletedAt.Equal(base) || entries[1].Status != queue.StatusDownloaded {
		t.Fatalf("round trip mismatch: %+v", entries[1])
	}

	filtered, err := store.List(ctx, history.ListOptions{Service: "DIRECT", Limit: 5})
	if err != nil || len(filtered) != 1 || filtered[0].LocalID != "a" {
		t.Fatalf("service filter: %+v %v", filtered, err)
	}
}

func TestRecordReplacesSameLocalID(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	item := queue.Item{LocalID: "a", Service: "direct", ItemID: "1", Status: queue.StatusDownloaded, FilePath: "/m/old.mp3"}
	if err := store.Record(ctx, history.EntryFromItem(item, 1, time.Now())); err != nil {
		t.Fatal(err)
	}
	item.FilePath = "/m/new.mp3"
	if err := store.Record(ctx, history.EntryFromItem(item, 2, time.Now())); err != nil {
		t.Fatal(err)
	}
	if n, err := store.Count(ctx); err != nil || n != 1 {
		t.Fatalf("Count = %d, %v", n, err)
	}
	entry, ok, err := store.Lookup(ctx, "a")
	if err != nil || !ok || entry.FilePath != "/m/new.mp3" {
		t.Fatalf("Lookup = %+v %v %v", entry, ok, err)
	}
	if err := store.MarkDeleted(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if entry, _, _ := store.Lookup(ctx, "a"); entry.Status != queue.StatusDeleted {
		t.Fatalf("status = %q", entry.Status)
	}
	if _, ok, err := store.Lookup(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing lookup = %v %v", ok, err)
	}
}

func TestConcurrentRecords(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			item := queue.Item{LocalID: queue.LocalID("direct", string(rune('a'+i))), Service: "direct", ItemID: "x", Status: queue.StatusDownloaded}
			if err := store.Record(ctx, history.EntryFromItem(item, int64(i), time.Now())); err != nil {
				t.Errorf("Record %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	if n, err := store.Count(ctx); err != nil || n != 8 {
		t.Fatalf("Count = %d, %v", n, err)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.db")
	store, err := history.OpenPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Record(context.Background(), history.Entry{LocalID: "a", Service: "s", ItemID: "1", Status: queue.StatusDownloaded}); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	store, err = history.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	if n, _ := store.Count(context.Background()); n != 1 {
		t.Fatalf("expected 1 entry after reopen, got %d", n)
	}
}
