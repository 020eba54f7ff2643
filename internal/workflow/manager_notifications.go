package workflow

import (
	"context"
	"errors"
	"time"

	"riptide/internal/logging"
	"riptide/internal/notifications"
	"riptide/internal/queue"
)

func (m *Manager) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, notification skipped", logging.String("event", string(event)))
			return
		}
		m.logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

func (m *Manager) notifyDownloadCompleted(ctx context.Context, item queue.Item, size int64) {
	m.publish(ctx, notifications.EventDownloadCompleted, notifications.Payload{
		"title":   item.Name,
		"by":      item.By,
		"service": item.Service,
		"path":    item.FilePath,
		"bytes":   size,
	})
}

func (m *Manager) notifyDownloadFailed(ctx context.Context, item queue.Item, cause error) {
	title := item.Name
	if title == "" {
		title = item.ItemID
	}
	m.publish(ctx, notifications.EventDownloadFailed, notifications.Payload{
		"title":   title,
		"service": item.Service,
		"error":   cause.Error(),
	})
}

// onItemStarted publishes queue started the first time a worker claims an
// item after the queue went idle.
func (m *Manager) onItemStarted(ctx context.Context) {
	m.mu.Lock()
	if m.queueActive {
		m.mu.Unlock()
		return
	}
	m.queueActive = true
	m.queueStart = time.Now()
	m.mu.Unlock()

	count := m.store.CountWhere(func(item queue.Item) bool {
		return !item.Status.IsTerminal()
	})
	m.publish(ctx, notifications.EventQueueStarted, notifications.Payload{"count": count})
}

// checkQueueCompletion publishes queue completed once no item is waiting or
// in flight.
func (m *Manager) checkQueueCompletion(ctx context.Context) {
	stats := m.store.Stats()
	if countActiveItems(stats) > 0 {
		return
	}

	m.mu.Lock()
	if !m.queueActive {
		m.mu.Unlock()
		return
	}
	start := m.queueStart
	m.queueActive = false
	m.queueStart = time.Time{}
	m.mu.Unlock()

	duration := time.Duration(0)
	if !start.IsZero() {
		duration = time.Since(start)
	}
	m.publish(ctx, notifications.EventQueueCompleted, notifications.Payload{
		"downloaded": stats[queue.StatusDownloaded],
		"failed":     stats[queue.StatusFailed],
		"duration":   duration,
	})
}

func countActiveItems(stats map[queue.Status]int) int {
	total := 0
	for status, count := range stats {
		if status.IsTerminal() {
			continue
		}
		total += count
	}
	return total
}
