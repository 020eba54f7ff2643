package workflow

import (
	"riptide/internal/queue"
	"riptide/internal/services"
)

// setStatus moves a claimed item to status. A Cancelled or removed item is
// never overwritten; the caller receives ErrCancelled and unwinds.
func (m *Manager) setStatus(localID string, status queue.Status, percent int) error {
	_, err := m.transition(localID, func(item *queue.Item) {
		item.SetProgress(status, percent)
	})
	return err
}

// setTerminal records a finished item with its file path at 100%.
func (m *Manager) setTerminal(localID string, status queue.Status, path string) (queue.Item, error) {
	return m.transition(localID, func(item *queue.Item) {
		item.SetProgress(status, 100)
		item.FilePath = path
		item.ErrorMessage = ""
	})
}

func (m *Manager) transition(localID string, fn func(*queue.Item)) (queue.Item, error) {
	var (
		snapshot  queue.Item
		cancelled bool
	)
	found := m.store.Update(localID, func(item *queue.Item) {
		if item.Status == queue.StatusCancelled {
			cancelled = true
			return
		}
		fn(item)
		snapshot = *item
	})
	if !found || cancelled {
		return queue.Item{}, services.Wrap(services.ErrCancelled, "download", "update status", "item cancelled", nil)
	}
	m.sink.Notify(snapshot, snapshot.Status, snapshot.Progress)
	return snapshot, nil
}

// reportProgress records transfer progress while the item is Downloading.
func (m *Manager) reportProgress(localID string, percent int) {
	var (
		snapshot queue.Item
		changed  bool
	)
	m.store.Update(localID, func(item *queue.Item) {
		if item.Status != queue.StatusDownloading || item.Progress == percent {
			return
		}
		item.SetProgress(queue.StatusDownloading, percent)
		snapshot = *item
		changed = true
	})
	if changed {
		m.sink.Notify(snapshot, snapshot.Status, snapshot.Progress)
	}
}
