package workflow

import (
	"log/slog"

	"riptide/internal/logging"
	"riptide/internal/queue"
)

// ProgressSink receives status and progress changes for items. Notify must
// not block; the store already carries the same state for pollers.
type ProgressSink interface {
	Notify(item queue.Item, status queue.Status, percent int)
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(item queue.Item, status queue.Status, percent int)

// Notify calls f.
func (f SinkFunc) Notify(item queue.Item, status queue.Status, percent int) {
	f(item, status, percent)
}

// MultiSink fans every notification out to each sink in order.
type MultiSink []ProgressSink

// Notify forwards to every non-nil sink.
func (s MultiSink) Notify(item queue.Item, status queue.Status, percent int) {
	for _, sink := range s {
		if sink != nil {
			sink.Notify(item, status, percent)
		}
	}
}

// LogSink is the headless sink. It logs every change at debug level.
type LogSink struct {
	Logger *slog.Logger
}

// Notify logs the change.
func (s LogSink) Notify(item queue.Item, status queue.Status, percent int) {
	if s.Logger == nil {
		return
	}
	s.Logger.Debug("item progress",
		logging.String(logging.FieldItemID, item.LocalID),
		logging.String(logging.FieldService, item.Service),
		logging.String("status", string(status)),
		logging.Int("progress", percent),
	)
}
