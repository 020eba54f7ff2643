package workflow

import (
	"context"
	"strings"

	"riptide/internal/logging"
	"riptide/internal/queue"
	"riptide/internal/services"
)

// handleFailure cleans up after a failed pass and records the resolved
// status. A Cancelled item stays Cancelled. An item interrupted by shutdown
// goes back to Waiting so a restart picks it up again.
func (m *Manager) handleFailure(ctx context.Context, pass *downloadPass, cause error) {
	pass.cleanup()

	status := services.FailureStatus(cause)
	shutdown := ctx.Err() != nil
	message := strings.TrimSpace(cause.Error())

	var snapshot queue.Item
	found := m.store.Update(pass.item.LocalID, func(item *queue.Item) {
		switch {
		case item.Status == queue.StatusCancelled:
			status = queue.StatusCancelled
			item.Progress = 0
		case shutdown:
			status = queue.StatusWaiting
			item.SetProgress(queue.StatusWaiting, 0)
		case status == queue.StatusFailed:
			item.SetFailed(message)
		default:
			item.SetProgress(status, 0)
			item.ErrorMessage = message
		}
		snapshot = *item
	})
	logger := pass.logger.With(logging.String("resolved_status", string(status)))
	if !found {
		logger.Debug("item removed during download")
		return
	}
	m.sink.Notify(snapshot, snapshot.Status, snapshot.Progress)
	m.setLastItem(&snapshot)

	switch status {
	case queue.StatusCancelled:
		logger.Info("download cancelled", logging.String(logging.FieldEventType, "download_cancelled"))
	case queue.StatusWaiting:
		logger.Info("download interrupted by shutdown; item requeued",
			logging.String(logging.FieldEventType, "download_interrupted"),
		)
	case queue.StatusUnavailable:
		logger.Warn("item unavailable",
			logging.Error(cause),
			logging.String(logging.FieldEventType, "download_unavailable"),
			logging.String(logging.FieldErrorHint, services.Hint(cause)),
			logging.String(logging.FieldImpact, "item will not be retried automatically"),
		)
	default:
		attrs := append(itemAttrs(snapshot),
			logging.Error(cause),
			logging.String(logging.FieldEventType, "download_failed"),
			logging.String(logging.FieldErrorHint, services.Hint(cause)),
		)
		logger.Error("download failed", logging.Args(attrs...)...)
		m.setLastError(cause)
		m.notifyDownloadFailed(ctx, snapshot, cause)
	}
}
