package workflow

import (
	"context"
	"log/slog"
	"math"

	"golang.org/x/time/rate"

	"riptide/internal/logging"
	"riptide/internal/queue"
	"riptide/internal/services"
)

func (m *Manager) runQueueFillWorker(ctx context.Context, logger *slog.Logger) {
	defer m.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		m.staging.Add(1)
		entry, ok := m.pending.Pop()
		if !ok {
			m.staging.Add(-1)
			m.wait(ctx, m.cfg.IdleBackoff())
			continue
		}
		m.fill(ctx, logger, entry)
		m.staging.Add(-1)
	}
}

// fill fetches metadata for entry and queues it as Waiting. Entries whose
// metadata cannot be fetched are dropped.
func (m *Manager) fill(ctx context.Context, logger *slog.Logger, entry queue.PendingEntry) {
	if entry.LocalID == "" {
		entry.LocalID = queue.LocalID(entry.Service, entry.ItemID)
	}
	ctx = services.WithStage(services.WithService(services.WithItemID(ctx, entry.LocalID), entry.Service), "queue_fill")
	logger = logging.WithContext(ctx, logger)

	if existing, ok := m.store.Get(entry.LocalID); ok && !existing.Status.IsTerminal() {
		logger.Debug("entry already queued")
		return
	}

	if err := m.limiter(entry.Service).Wait(ctx); err != nil {
		m.pending.Put(entry)
		return
	}

	collab, ok := m.registry.Lookup(entry.Service)
	if !ok {
		logger.Warn("no collaborator for pending entry; dropped",
			logging.String(logging.FieldEventType, "queue_fill_dropped"),
			logging.String(logging.FieldErrorHint, "register a collaborator for this service"),
		)
		return
	}
	item := queue.Item{
		LocalID:        entry.LocalID,
		Service:        entry.Service,
		Type:           entry.Type,
		ItemID:         entry.ItemID,
		ParentCategory: entry.ParentCategory,
		PlaylistName:   entry.PlaylistName,
		PlaylistBy:     entry.PlaylistBy,
		PlaylistNumber: entry.PlaylistNumber,
		URL:            entry.URL,
	}
	meta, err := m.fetchMetadata(ctx, collab, item)
	if err != nil {
		if ctx.Err() != nil {
			m.pending.Put(entry)
			return
		}
		logger.Warn("metadata fetch failed; entry dropped",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_fill_dropped"),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
			logging.String(logging.FieldImpact, "item was not queued; submit the url again to retry"),
		)
		return
	}

	item.Status = queue.StatusWaiting
	item.Available = true
	item.Name = meta.Title
	item.By = meta.ArtistString()
	item.Thumbnail = meta.ImageURL
	if item.URL == "" {
		item.URL = meta.ItemURL
	}
	m.store.Put(item)
	m.sink.Notify(item, item.Status, 0)
	logger.Debug("item queued", logging.String("title", item.Name))
}

// limiter returns the metadata limiter for service. A zero rate means no
// limit.
func (m *Manager) limiter(service string) *rate.Limiter {
	m.limiterMu.Lock()
	defer m.limiterMu.Unlock()
	if l, ok := m.limiters[service]; ok {
		return l
	}
	limit := rate.Inf
	burst := 1
	if r := m.cfg.Workers.MetadataRate; r > 0 {
		limit = rate.Limit(r)
		burst = max(1, int(math.Ceil(r)))
	}
	l := rate.NewLimiter(limit, burst)
	m.limiters[service] = l
	return l
}
