package workflow

import (
	"context"
	"time"

	"riptide/internal/queue"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running         bool
	StartedAt       time.Time
	DownloadWorkers int
	QueueWorkers    int
	Pending         int
	Parsing         int
	DownloadedItems int64
	DownloadedBytes int64
	LastError       string
	LastItem        *queue.Item
	QueueStats      map[queue.Status]int
}

// Status returns the latest workflow information.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	running := m.running
	startedAt := m.startedAt
	lastErr := m.lastErr
	lastItem := m.lastItem
	m.mu.RUnlock()

	summary := StatusSummary{
		Running:         running,
		DownloadWorkers: max(m.cfg.Workers.DownloadWorkers, 1),
		QueueWorkers:    max(m.cfg.Workers.QueueWorkers, 1),
		Pending:         m.pending.Len(),
		Parsing:         m.parseBacklog(),
		DownloadedItems: m.downloadedItems.Load(),
		DownloadedBytes: m.downloadedBytes.Load(),
		QueueStats:      m.store.Stats(),
	}
	if running {
		summary.StartedAt = startedAt
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastItem != nil {
		copy := *lastItem
		summary.LastItem = &copy
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastItem(item *queue.Item) {
	m.mu.Lock()
	if item != nil {
		copy := *item
		m.lastItem = &copy
	} else {
		m.lastItem = nil
	}
	m.mu.Unlock()
}

// Idle reports whether nothing is submitted, pending or still in flight.
func (m *Manager) Idle() bool {
	if m.parseBacklog() > 0 || m.pending.Len() > 0 || m.staging.Load() > 0 {
		return false
	}
	return countActiveItems(m.store.Stats()) == 0
}

// WaitIdle blocks until Idle holds for two consecutive polls or ctx is done.
func (m *Manager) WaitIdle(ctx context.Context) error {
	idlePolls := 0
	for {
		if m.Idle() {
			idlePolls++
			if idlePolls >= 2 {
				return nil
			}
		} else {
			idlePolls = 0
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.PollInterval()):
		}
	}
}
