package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"riptide/internal/logging"
	"riptide/internal/queue"
)

// Start launches the worker goroutines. It fails when the manager is already
// running.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	downloads := max(m.cfg.Workers.DownloadWorkers, 1)
	fillers := max(m.cfg.Workers.QueueWorkers, 1)

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.startedAt = time.Now()
	m.wg.Add(downloads + fillers + 2)
	m.mu.Unlock()

	for i := 0; i < downloads; i++ {
		go m.runDownloadWorker(runCtx, m.workerLogger(fmt.Sprintf("download-%d", i+1)))
	}
	for i := 0; i < fillers; i++ {
		go m.runQueueFillWorker(runCtx, m.workerLogger(fmt.Sprintf("queue-fill-%d", i+1)))
	}
	go m.runRetryWorker(runCtx, m.workerLogger("retry"))
	go m.runParseWorker(runCtx, m.workerLogger("parse"))

	m.logger.Info("workflow started",
		logging.Int("download_workers", downloads),
		logging.Int("queue_workers", fillers),
		logging.Duration("retry_interval", m.cfg.RetryInterval()),
		logging.String(logging.FieldEventType, "workflow_started"),
	)
	return nil
}

// Stop terminates background processing and waits for every worker to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stopped"))
}

// Running reports whether workers are active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Restart stops the workers, drains the queue and feeds the drained items
// back in before starting fresh workers. Items with a URL are re-submitted
// through the resolvers; the rest are re-queued as Waiting. Finished items
// are dropped. It returns the number of items carried over.
func (m *Manager) Restart(ctx context.Context) (int, error) {
	m.Stop()

	carried := 0
	for _, item := range m.store.Drain() {
		switch item.Status {
		case queue.StatusDownloaded, queue.StatusAlreadyExists, queue.StatusCancelled,
			queue.StatusDeleted, queue.StatusUnavailable:
			continue
		}
		if item.URL != "" {
			err := m.Submit(ctx, item.URL)
			if err == nil {
				carried++
				continue
			}
			m.logger.Debug("restart resubmit failed; requeueing item",
				logging.String(logging.FieldItemID, item.LocalID),
				logging.Error(err),
			)
		}
		item.SetProgress(queue.StatusWaiting, 0)
		item.Available = true
		item.ErrorMessage = ""
		m.store.Put(item)
		carried++
	}

	m.logger.Info("workers restarted",
		logging.Int("carried_over", carried),
		logging.String(logging.FieldEventType, "workflow_restarted"),
	)
	return carried, m.Start(ctx)
}

func (m *Manager) runDownloadWorker(ctx context.Context, logger *slog.Logger) {
	defer m.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		item, ok := m.store.TryClaimNext()
		if !ok {
			m.wait(ctx, m.cfg.PollInterval())
			continue
		}
		m.onItemStarted(ctx)
		m.processItem(ctx, logger, item)
		m.checkQueueCompletion(ctx)
	}
}

func (m *Manager) runRetryWorker(ctx context.Context, logger *slog.Logger) {
	defer m.wg.Done()
	interval := m.cfg.RetryInterval()
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if count := m.store.ResetFailed(); count > 0 {
				logger.Info("failed items requeued",
					logging.Int("count", count),
					logging.String(logging.FieldEventType, "retry_sweep"),
				)
			}
		}
	}
}

// wait blocks for d or until ctx is done.
func (m *Manager) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
