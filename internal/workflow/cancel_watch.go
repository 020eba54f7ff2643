package workflow

import (
	"context"
	"sync"
	"time"

	"riptide/internal/queue"
)

// minWatchInterval bounds how often the watcher polls the store.
const minWatchInterval = 5 * time.Millisecond

// cancelWatcher cancels an item's context once the item is cancelled or
// removed from the store, so in-flight transfers stop at their next chunk.
type cancelWatcher struct {
	store    *queue.Store
	interval time.Duration
}

func newCancelWatcher(store *queue.Store, interval time.Duration) *cancelWatcher {
	if interval < minWatchInterval {
		interval = minWatchInterval
	}
	return &cancelWatcher{store: store, interval: interval}
}

// StartLoop polls localID until ctx is done, calling cancel when the item is
// Cancelled or gone.
func (w *cancelWatcher) StartLoop(ctx context.Context, wg *sync.WaitGroup, localID string, cancel context.CancelFunc) {
	defer wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.cancelled(localID) {
				cancel()
				return
			}
		}
	}
}

func (w *cancelWatcher) cancelled(localID string) bool {
	item, ok := w.store.Get(localID)
	return !ok || item.Status == queue.StatusCancelled
}
