package queue_test

import (
	"fmt"
	"sync"
	"testing"

	"riptide/internal/queue"
)

func waitingItem(id string) queue.Item {
	return queue.Item{LocalID: id, Service: "direct", Type: "track", ItemID: id, Status: queue.StatusWaiting, Available: true}
}

func TestTryClaimNextIsExclusive(t *testing.T) {
	store := queue.NewStore()
	const total = 50
	for i := 0; i < total; i++ {
		store.Put(waitingItem(fmt.Sprintf("item-%d", i)))
	}

	var (
		mu     sync.Mutex
		claims = make(map[string]int)
		wg     sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, ok := store.TryClaimNext()
				if !ok {
					return
				}
				mu.Lock()
				claims[item.LocalID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(claims) != total {
		t.Fatalf("expected %d distinct claims, got %d", total, len(claims))
	}
	for id, count := range claims {
		if count != 1 {
			t.Fatalf("item %s claimed %d times", id, count)
		}
	}
	if _, ok := store.TryClaimNext(); ok {
		t.Fatal("expected no claimable items after all were claimed")
	}
}

func TestReleaseMovesItemToBack(t *testing.T) {
	store := queue.NewStore()
	store.Put(waitingItem("a"))
	store.Put(waitingItem("b"))
	store.Put(waitingItem("c"))

	first, ok := store.TryClaimNext()
	if !ok || first.LocalID != "a" {
		t.Fatalf("expected to claim a first, got %q", first.LocalID)
	}
	store.Release(first.LocalID)

	var order []string
	for _, item := range store.Snapshot() {
		order = append(order, item.LocalID)
	}
	if fmt.Sprint(order) != "[b c a]" {
		t.Fatalf("unexpected order after release: %v", order)
	}

	next, ok := store.TryClaimNext()
	if !ok || next.LocalID != "b" {
		t.Fatalf("expected to claim b next, got %q", next.LocalID)
	}
}

func TestPutOverwritesInPlace(t *testing.T) {
	store := queue.NewStore()
	store.Put(waitingItem("a"))
	store.Put(waitingItem("b"))

	updated := waitingItem("a")
	updated.Name = "Renamed"
	store.Put(updated)

	snapshot := store.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 items, got %d", len(snapshot))
	}
	if snapshot[0].LocalID != "a" || snapshot[0].Name != "Renamed" {
		t.Fatalf("expected overwritten item to keep position, got %#v", snapshot[0])
	}
}

func TestPutKeepsClaim(t *testing.T) {
	store := queue.NewStore()
	store.Put(waitingItem("a"))
	if _, ok := store.TryClaimNext(); !ok {
		t.Fatal("expected claim")
	}
	store.Put(waitingItem("a"))
	item, _ := store.Get("a")
	if item.Available {
		t.Fatal("expected claimed item to stay unavailable after overwrite")
	}
	if _, ok := store.TryClaimNext(); ok {
		t.Fatal("expected no second claim")
	}
}

func TestTryClaimSkipsTerminalItems(t *testing.T) {
	store := queue.NewStore()
	for _, status := range []queue.Status{queue.StatusDownloaded, queue.StatusFailed, queue.StatusCancelled, queue.StatusUnavailable} {
		item := waitingItem(string(status))
		item.Status = status
		store.Put(item)
	}
	store.Put(waitingItem("ready"))

	item, ok := store.TryClaimNext()
	if !ok || item.LocalID != "ready" {
		t.Fatalf("expected to claim ready item, got %q ok=%v", item.LocalID, ok)
	}
}

func TestUpdateAndRemove(t *testing.T) {
	store := queue.NewStore()
	store.Put(waitingItem("a"))

	if !store.Update("a", func(item *queue.Item) { item.SetProgress(queue.StatusDownloading, 150) }) {
		t.Fatal("expected update to find item")
	}
	item, _ := store.Get("a")
	if item.Status != queue.StatusDownloading || item.Progress != 100 {
		t.Fatalf("unexpected item after update: %#v", item)
	}
	if store.Update("missing", func(*queue.Item) {}) {
		t.Fatal("expected update of missing item to report false")
	}
	if !store.Remove("a") || store.Len() != 0 {
		t.Fatal("expected remove to delete item")
	}
	if store.Release("a") {
		t.Fatal("expected release of removed item to be a no-op")
	}
}

func TestCountWhereAndStats(t *testing.T) {
	store := queue.NewStore()
	store.Put(waitingItem("a"))
	failed := waitingItem("b")
	failed.Status = queue.StatusFailed
	store.Put(failed)

	if n := store.CountWhere(func(item queue.Item) bool { return item.Status == queue.StatusWaiting }); n != 1 {
		t.Fatalf("expected 1 waiting item, got %d", n)
	}
	stats := store.Stats()
	if stats[queue.StatusFailed] != 1 || stats[queue.StatusWaiting] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}

	drained := store.Drain()
	if len(drained) != 2 || store.Len() != 0 {
		t.Fatalf("expected drain to empty store, got %d drained and %d left", len(drained), store.Len())
	}
}
