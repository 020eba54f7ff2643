package workflow

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"riptide/internal/accounts"
	"riptide/internal/config"
	"riptide/internal/history"
	"riptide/internal/logging"
	"riptide/internal/notifications"
	"riptide/internal/organizer"
	"riptide/internal/postprocess"
	"riptide/internal/provider"
	"riptide/internal/queue"
)

// PostProcessor converts and tags finished files.
type PostProcessor interface {
	Convert(ctx context.Context, src, dst string) error
	EmbedMetadata(ctx context.Context, path string, tags postprocess.Tags) error
	EmbedThumbnail(ctx context.Context, path, imageURL string) error
}

// Recorder archives completed downloads.
type Recorder interface {
	Record(ctx context.Context, entry history.Entry) error
}

// Manager coordinates the download, retry, queue fill and parsing workers.
type Manager struct {
	cfg       *config.Config
	store     *queue.Store
	pending   *queue.Pending
	registry  *provider.Registry
	accounts  *accounts.Pool
	logger    *slog.Logger
	formatter *organizer.Formatter
	m3u       *organizer.M3UWriter
	post      PostProcessor
	recorder  Recorder
	notifier  notifications.Service
	sink      ProgressSink

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter

	parseMu     sync.Mutex
	parseList   []string
	parseSignal chan struct{}

	staging         atomic.Int64
	downloadedItems atomic.Int64
	downloadedBytes atomic.Int64

	mu          sync.RWMutex
	running     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	startedAt   time.Time
	lastErr     error
	lastItem    *queue.Item
	queueActive bool
	queueStart  time.Time
}

// Option configures optional Manager collaborators.
type Option func(*Manager)

// WithPending shares an existing pending store with the manager.
func WithPending(pending *queue.Pending) Option {
	return func(m *Manager) {
		if pending != nil {
			m.pending = pending
		}
	}
}

// WithPostProcessor replaces the ffmpeg post-processor.
func WithPostProcessor(post PostProcessor) Option {
	return func(m *Manager) {
		if post != nil {
			m.post = post
		}
	}
}

// WithRecorder archives completed downloads through recorder.
func WithRecorder(recorder Recorder) Option {
	return func(m *Manager) {
		m.recorder = recorder
	}
}

// WithNotifier replaces the notification service built from config.
func WithNotifier(notifier notifications.Service) Option {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithSink sets the progress sink. Multiple sinks can be combined with
// MultiSink.
func WithSink(sink ProgressSink) Option {
	return func(m *Manager) {
		if sink != nil {
			m.sink = sink
		}
	}
}

// NewManager constructs a workflow manager. A nil pool is replaced by one
// built from cfg.
func NewManager(cfg *config.Config, store *queue.Store, registry *provider.Registry, pool *accounts.Pool, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if pool == nil {
		pool = accounts.NewPool(cfg)
	}
	if registry == nil {
		registry = provider.NewRegistry()
	}
	m := &Manager{
		cfg:         cfg,
		store:       store,
		pending:     queue.NewPending(),
		registry:    registry,
		accounts:    pool,
		logger:      logging.NewComponentLogger(logger, "workflow-manager"),
		formatter:   organizer.NewFormatter(cfg),
		m3u:         organizer.NewM3UWriter(),
		post:        postprocess.New(cfg.FFmpegBinary()),
		notifier:    notifications.NewService(cfg),
		limiters:    make(map[string]*rate.Limiter),
		parseSignal: make(chan struct{}, 1),
	}
	m.sink = LogSink{Logger: m.logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store exposes the queue store the manager works on.
func (m *Manager) Store() *queue.Store {
	return m.store
}

// Pending exposes the store of entries awaiting metadata.
func (m *Manager) Pending() *queue.Pending {
	return m.pending
}

// Registry exposes the collaborator registry.
func (m *Manager) Registry() *provider.Registry {
	return m.registry
}
