package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"riptide/internal/config"
	"riptide/internal/daemon"
	"riptide/internal/deps"
	"riptide/internal/ipc"
	"riptide/internal/logging"
	"riptide/internal/organizer"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the riptide daemon and blocks until a signal arrives or a
// component fails.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("riptide-%s.log", runID))
	logHub := logging.NewStreamHub(4096)

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
		Stream:      logHub,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.DaemonLogPath(), logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", filepath.Base(cfg.DaemonLogPath()), err)
	}
	logging.PruneLogs(logger, cfg.Paths.LogDir, "riptide-*.log", cfg.Logging.RetentionDays, logPath)
	logDependencySnapshot(logger, cfg)

	if removed, err := organizer.CleanupTemp(cfg.Paths.DownloadRoot); err != nil {
		logging.WarnWithContext(logger, "temp cleanup failed", "temp_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove .riptide-* files under the download root manually"),
		)
	} else if removed > 0 {
		logger.Info("removed leftover partial downloads",
			logging.Int("removed", removed),
			logging.String(logging.FieldEventType, "temp_cleanup"),
		)
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	events := daemon.NewEventHub(logger)
	components, err := Build(cfg, logger, events)
	if err != nil {
		logger.Error("build download pipeline", logging.Error(err))
		return err
	}
	if err := components.Manager.RunPreflight(signalCtx); err != nil {
		_ = components.Close()
		return err
	}

	daemonOpts := []daemon.Option{
		daemon.WithLogStream(logHub),
		daemon.WithEvents(events),
		daemon.WithNotifier(components.Notifier),
	}
	if components.History != nil {
		daemonOpts = append(daemonOpts, daemon.WithHistory(components.History))
	}
	d, err := daemon.New(cfg, components.Store, logger, components.Manager, daemonOpts...)
	if err != nil {
		_ = components.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}

	group, groupCtx := errgroup.WithContext(signalCtx)
	group.Go(func() error {
		ipcServer.Serve()
		<-groupCtx.Done()
		ipcServer.Close()
		return nil
	})
	group.Go(func() error {
		if err := d.Start(groupCtx); err != nil {
			logger.Error("daemon start failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "daemon_start_failed"),
				logging.String(logging.FieldErrorHint, "check for another running daemon and the API bind address"),
			)
			return err
		}
		<-groupCtx.Done()
		d.Stop()
		return nil
	})

	err = group.Wait()
	logger.Info("riptide daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return err
}

// ensureCurrentLogPointer points the stable daemon log path at this run's log
// file, falling back to a hard link where symlinks are unavailable.
func ensureCurrentLogPointer(current, target string) error {
	if current == "" || target == "" {
		return nil
	}
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		attrs = append(attrs,
			logging.Bool(status.Name+"_available", status.Available),
			logging.String(status.Name+"_binary", status.Command),
		)
	}
	attrs = append(attrs,
		logging.Int("accounts", len(cfg.Accounts)),
		logging.Bool("history_enabled", cfg.History.Enabled),
		logging.Bool("ntfy_configured", cfg.Notifications.NtfyTopic != ""),
	)
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
