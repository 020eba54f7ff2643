package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"riptide/internal/api"
	"riptide/internal/config"
	"riptide/internal/deps"
	"riptide/internal/history"
	"riptide/internal/logging"
	"riptide/internal/notifications"
	"riptide/internal/queue"
	"riptide/internal/workflow"
)

// Daemon coordinates the background download services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	history  *history.Store
	queueSvc *api.QueueService
	logHub   *logging.StreamHub
	events   *EventHub
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	runCtx  context.Context
	cancel  context.CancelFunc
	api     *apiServer
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithHistory attaches the download archive used by delete and history queries.
func WithHistory(store *history.Store) Option {
	return func(d *Daemon) { d.history = store }
}

// WithLogStream exposes hub through GET /api/logs.
func WithLogStream(hub *logging.StreamHub) Option {
	return func(d *Daemon) { d.logHub = hub }
}

// WithEvents serves hub on GET /api/events. The same hub should be installed
// as a workflow progress sink.
func WithEvents(hub *EventHub) Option {
	return func(d *Daemon) { d.events = hub }
}

// WithNotifier overrides the notification service used for test notifications.
func WithNotifier(n notifications.Service) Option {
	return func(d *Daemon) { d.notifier = n }
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	LockFilePath string
	SocketPath   string
	APIBind      string
	HistoryPath  string
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.notifier == nil {
		d.notifier = notifications.NewService(cfg)
	}
	var archive api.HistoryStore
	if d.history != nil {
		archive = d.history
	}
	d.queueSvc = api.NewQueueService(store, archive)
	return d, nil
}

// Start acquires the daemon lock, launches the workflow manager and, when
// configured, the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another riptide daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}

	srv, err := newAPIServer(d.cfg, d, d.logger)
	if err == nil && srv != nil {
		err = srv.start(runCtx)
	}
	if err != nil {
		d.workflow.Stop()
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.api = srv
	d.runCtx = runCtx
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("riptide daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.runCtx = nil
	d.api.stop()
	d.api = nil
	d.events.Close()
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_unlock_failed"),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("riptide daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.history != nil {
		return d.history.Close()
	}
	return nil
}

// Running reports whether the daemon holds the lock and runs workers.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddr returns the address the HTTP API listens on, or "" when disabled.
func (d *Daemon) APIAddr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.api.addr()
}

// Queue exposes queue DTO operations.
func (d *Daemon) Queue() *api.QueueService {
	return d.queueSvc
}

// Submit hands a URL to the parsing worker.
func (d *Daemon) Submit(ctx context.Context, url string) error {
	return d.workflow.Submit(ctx, url)
}

// RestartWorkers stops the workers, re-submits unfinished items and starts
// fresh workers. It returns how many items were carried over.
func (d *Daemon) RestartWorkers(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return 0, errors.New("daemon is not running")
	}
	return d.workflow.Restart(d.runCtx)
}

// Delete removes the downloaded file of a finished item and marks it Deleted.
func (d *Daemon) Delete(ctx context.Context, localID string) (string, error) {
	path, err := d.queueSvc.Delete(ctx, localID)
	if err != nil {
		return path, err
	}
	d.logger.Info("downloaded file deleted",
		logging.String(logging.FieldItemID, localID),
		logging.String("path", path),
		logging.String(logging.FieldEventType, "item_deleted"),
	)
	return path, nil
}

// CleanTemp removes leftover partial downloads under the download root.
func (d *Daemon) CleanTemp(ctx context.Context, force bool) (api.CleanTempResult, error) {
	return api.CleanTempFiles(ctx, api.CleanTempRequest{
		DownloadRoot: d.cfg.Paths.DownloadRoot,
		Force:        force,
		Activity:     d.workflow,
	})
}

// LogPath returns the daemon log file path.
func (d *Daemon) LogPath() string {
	return d.cfg.DaemonLogPath()
}

// LogStream returns the in-memory log hub, if any.
func (d *Daemon) LogStream() *logging.StreamHub {
	return d.logHub
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, notifications.Payload{}); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(),
		LockFilePath: d.lockPath,
		SocketPath:   d.cfg.SocketPath(),
		APIBind:      d.APIAddr(),
		Dependencies: deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
	if d.history != nil {
		status.HistoryPath = d.history.Path()
	}
	return status
}

// StatusPayload converts Status into its API representation.
func (s Status) StatusPayload() api.DaemonStatus {
	depsOut := make([]api.DependencyStatus, 0, len(s.Dependencies))
	for _, dep := range s.Dependencies {
		depsOut = append(depsOut, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return api.DaemonStatus{
		Running:      s.Running,
		PID:          s.PID,
		LockFilePath: s.LockFilePath,
		SocketPath:   s.SocketPath,
		APIBind:      s.APIBind,
		HistoryPath:  s.HistoryPath,
		Workflow:     api.FromStatusSummary(s.Workflow),
		Dependencies: depsOut,
	}
}
