package workflow

import (
	"context"
	"log/slog"

	"riptide/internal/logging"
	"riptide/internal/queue"
	"riptide/internal/services"
)

func (m *Manager) workerLogger(worker string) *slog.Logger {
	return m.logger.With(
		logging.String(logging.FieldComponent, "workflow-"+worker),
		logging.String(logging.FieldWorker, worker),
	)
}

// withItemContext tags ctx with the identifiers every item log line carries.
func withItemContext(ctx context.Context, item queue.Item) context.Context {
	ctx = services.WithItemID(ctx, item.LocalID)
	if item.Service != "" {
		ctx = services.WithService(ctx, item.Service)
	}
	return ctx
}

// withStage returns ctx and a logger tagged with stage.
func withStage(ctx context.Context, logger *slog.Logger, stage string) (context.Context, *slog.Logger) {
	ctx = services.WithStage(ctx, stage)
	return ctx, logger.With(logging.String(logging.FieldStage, stage))
}

func itemAttrs(item queue.Item) []logging.Attr {
	attrs := []logging.Attr{
		logging.String("item_type", item.Type),
		logging.String("native_id", item.ItemID),
	}
	if item.Name != "" {
		attrs = append(attrs, logging.String("title", item.Name))
	}
	if item.IsPlaylistItem() {
		attrs = append(attrs, logging.String("playlist", item.PlaylistName))
	}
	return attrs
}
