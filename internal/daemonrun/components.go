package daemonrun

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"riptide/internal/accounts"
	"riptide/internal/config"
	"riptide/internal/history"
	"riptide/internal/logging"
	"riptide/internal/notifications"
	"riptide/internal/postprocess"
	"riptide/internal/provider"
	"riptide/internal/provider/direct"
	"riptide/internal/provider/ytdlp"
	"riptide/internal/queue"
	"riptide/internal/workflow"
)

// Components holds the download pipeline shared by the daemon and the
// foreground `riptide get` command.
type Components struct {
	Store    *queue.Store
	Registry *provider.Registry
	Accounts *accounts.Pool
	History  *history.Store
	Notifier notifications.Service
	Manager  *workflow.Manager
}

// BuildRegistry registers the bundled collaborators. direct goes first because
// ytdlp matches any http(s) URL. ytdlp is skipped when its binary is missing.
func BuildRegistry(cfg *config.Config, logger *slog.Logger) (*provider.Registry, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	registry := provider.NewRegistry()
	if err := registry.Register(direct.Service, direct.New(
		direct.WithBandwidthLimit(cfg.Workers.BandwidthLimitKBps*1024),
	)); err != nil {
		return nil, err
	}

	binary := cfg.YtDlpBinary()
	if _, err := exec.LookPath(binary); err != nil {
		logger.Warn("yt-dlp not found; ytdlp service disabled",
			logging.String("binary", binary),
			logging.String(logging.FieldEventType, "collaborator_skipped"),
			logging.String(logging.FieldErrorHint, "install yt-dlp or set output.ytdlp_path"),
			logging.String(logging.FieldImpact, "only direct media URLs can be downloaded"),
		)
		return registry, nil
	}
	client, err := ytdlp.New(binary, ytdlp.WithAudioOnly(postprocess.IsAudioFormat(cfg.Output.MediaFormat)))
	if err != nil {
		return nil, fmt.Errorf("init yt-dlp: %w", err)
	}
	if err := registry.Register(ytdlp.Service, client); err != nil {
		return nil, err
	}
	return registry, nil
}

// Build wires the queue store, collaborators, history archive and workflow
// manager. Callers own Close.
func Build(cfg *config.Config, logger *slog.Logger, sinks ...workflow.ProgressSink) (*Components, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	registry, err := BuildRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	c := &Components{
		Store:    queue.NewStore(),
		Registry: registry,
		Accounts: accounts.NewPool(cfg),
		Notifier: notifications.NewService(cfg),
	}

	sink := workflow.MultiSink{workflow.LogSink{Logger: logger}}
	sink = append(sink, sinks...)
	opts := []workflow.Option{
		workflow.WithPostProcessor(postprocess.New(cfg.FFmpegBinary())),
		workflow.WithNotifier(c.Notifier),
		workflow.WithSink(sink),
	}
	if cfg.History.Enabled {
		c.History, err = history.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("open download history: %w", err)
		}
		opts = append(opts, workflow.WithRecorder(c.History))
	}

	c.Manager = workflow.NewManager(cfg, c.Store, registry, c.Accounts, logger, opts...)
	return c, nil
}

// Close releases the history archive.
func (c *Components) Close() error {
	if c == nil || c.History == nil {
		return nil
	}
	return c.History.Close()
}
