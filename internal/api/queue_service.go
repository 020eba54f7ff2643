package api

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"riptide/internal/history"
	"riptide/internal/queue"
)

// QueueStore abstracts the queue operations needed by API queries and controls.
type QueueStore interface {
	Snapshot() []queue.Item
	Get(id string) (queue.Item, bool)
	Stats() map[queue.Status]int
	Cancel(id string) (bool, error)
	Retry(id string) (bool, error)
	CancelAll() int
	RetryAll() int
	ClearCompleted() int
	Remove(id string) bool
	MarkDeleted(id string) (string, error)
}

// HistoryStore is the subset of the download archive the API touches.
type HistoryStore interface {
	List(ctx context.Context, opts history.ListOptions) ([]history.Entry, error)
	MarkDeleted(ctx context.Context, localID string) error
}

// ErrNotDeletable is returned when Delete targets an item without a finished file.
var ErrNotDeletable = errors.New("item has no downloaded file")

// QueueService exposes queue operations returning API DTOs.
type QueueService struct {
	store   QueueStore
	history HistoryStore
}

// NewQueueService constructs a QueueService around the provided store. The
// history store is optional.
func NewQueueService(store QueueStore, archive HistoryStore) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store, history: archive}
}

// List returns queue items in queue order, optionally filtered by status.
func (s *QueueService) List(ctx context.Context, statuses ...queue.Status) ([]QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	items := s.store.Snapshot()
	if len(statuses) == 0 {
		return FromQueueItems(items), nil
	}
	want := make(map[queue.Status]struct{}, len(statuses))
	for _, st := range statuses {
		want[st] = struct{}{}
	}
	filtered := items[:0]
	for _, item := range items {
		if _, ok := want[item.Status]; ok {
			filtered = append(filtered, item)
		}
	}
	return FromQueueItems(filtered), nil
}

// Map returns the local_id keyed queue snapshot.
func (s *QueueService) Map(ctx context.Context) (map[string]QueueItem, error) {
	if s == nil || s.store == nil {
		return map[string]QueueItem{}, nil
	}
	return QueueMap(s.store.Snapshot()), nil
}

// Stats returns queue summary counts keyed by status string.
func (s *QueueService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	return MergeQueueStats(s.store.Stats()), nil
}

// Describe fetches a single queue item. It returns nil when the id is unknown.
func (s *QueueService) Describe(ctx context.Context, id string) (*QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	item, ok := s.store.Get(id)
	if !ok {
		return nil, nil
	}
	dto := FromQueueItem(item)
	return &dto, nil
}

// Cancel cancels one item.
func (s *QueueService) Cancel(ctx context.Context, id string) (bool, error) {
	return s.store.Cancel(id)
}

// Retry resets one item to Waiting.
func (s *QueueService) Retry(ctx context.Context, id string) (bool, error) {
	return s.store.Retry(id)
}

// Remove drops one item from the queue without touching its file.
func (s *QueueService) Remove(ctx context.Context, id string) (bool, error) {
	return s.store.Remove(id), nil
}

// CancelAll cancels every waiting item.
func (s *QueueService) CancelAll(ctx context.Context) ActionResult {
	return ActionResult{Action: "cancel_all", Affected: s.store.CancelAll()}
}

// RetryAll resets every failed item.
func (s *QueueService) RetryAll(ctx context.Context) ActionResult {
	return ActionResult{Action: "retry_all", Affected: s.store.RetryAll()}
}

// ClearCompleted removes finished, cancelled and deleted items.
func (s *QueueService) ClearCompleted(ctx context.Context) ActionResult {
	return ActionResult{Action: "clear_completed", Affected: s.store.ClearCompleted()}
}

// Delete removes the downloaded file of a finished item and marks the item
// Deleted in the queue and the archive.
func (s *QueueService) Delete(ctx context.Context, id string) (string, error) {
	path, err := s.store.MarkDeleted(id)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("delete %s: %w", id, ErrNotDeletable)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return path, fmt.Errorf("remove %s: %w", path, err)
	}
	if s.history != nil {
		if err := s.history.MarkDeleted(ctx, id); err != nil {
			return path, fmt.Errorf("mark history entry deleted: %w", err)
		}
	}
	return path, nil
}

// History lists archived downloads, newest first. It returns an empty list
// when the archive is disabled.
func (s *QueueService) History(ctx context.Context, opts history.ListOptions) ([]HistoryEntry, error) {
	if s == nil || s.history == nil {
		return []HistoryEntry{}, nil
	}
	entries, err := s.history.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	return FromHistoryEntries(entries), nil
}
