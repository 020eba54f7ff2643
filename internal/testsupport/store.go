package testsupport

import (
	"testing"
	"time"

	"riptide/internal/queue"
)

// WaitingItem builds an unclaimed Waiting item keyed by service and id.
func WaitingItem(service, id string) queue.Item {
	return queue.Item{
		LocalID:        queue.LocalID(service, id),
		Service:        service,
		Type:           "track",
		ItemID:         id,
		ParentCategory: "track",
		Status:         queue.StatusWaiting,
		Available:      true,
	}
}

// WaitForItem polls store until cond holds for the item or timeout elapses,
// returning the last observed copy.
func WaitForItem(t testing.TB, store *queue.Store, localID string, timeout time.Duration, cond func(queue.Item) bool) queue.Item {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var last queue.Item
	for {
		item, ok := store.Get(localID)
		if ok {
			last = item
			if cond(item) {
				return item
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for item %s; last state %#v", localID, last)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// WaitForStatus waits until the item reaches status and has been released.
func WaitForStatus(t testing.TB, store *queue.Store, localID string, status queue.Status, timeout time.Duration) queue.Item {
	t.Helper()
	return WaitForItem(t, store, localID, timeout, func(item queue.Item) bool {
		return item.Status == status && item.Available
	})
}
