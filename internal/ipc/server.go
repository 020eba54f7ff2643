package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"riptide/internal/api"
	"riptide/internal/daemon"
	"riptide/internal/history"
	"riptide/internal/logging"
	"riptide/internal/logs"
	"riptide/internal/queue"
)

// ServiceName is the RPC receiver name clients call methods on.
const ServiceName = "Riptide"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	svc := &service{daemon: d, logger: logger.With(logging.String(logging.FieldComponent, "ipc")), ctx: serverCtx}
	if err := rpcServer.RegisterName(ServiceName, svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Serve starts accepting RPC connections until the server is closed.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually or rerun riptide stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

// remover routes per-item delete through the daemon so deletions are logged.
type remover struct {
	daemon *daemon.Daemon
}

func (r remover) Remove(ctx context.Context, id string) (bool, error) {
	return r.daemon.Queue().Remove(ctx, id)
}

func (r remover) Delete(ctx context.Context, id string) (string, error) {
	return r.daemon.Delete(ctx, id)
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.logger.Info("daemon started via IPC", logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC", logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.daemon.Status(s.ctx).StatusPayload()
	return nil
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	if len(req.URLs) == 0 {
		return errors.New("submit requires at least one url")
	}
	resp.Results = make([]SubmitResult, 0, len(req.URLs))
	for _, url := range req.URLs {
		result := SubmitResult{URL: url, Accepted: true}
		if err := s.daemon.Submit(s.ctx, url); err != nil {
			result.Accepted = false
			result.Error = err.Error()
		}
		resp.Results = append(resp.Results, result)
	}
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	statuses := make([]queue.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		status, ok := queue.ParseStatus(raw)
		if !ok {
			return fmt.Errorf("unknown status %q", raw)
		}
		statuses = append(statuses, status)
	}
	items, err := s.daemon.Queue().List(s.ctx, statuses...)
	if err != nil {
		return err
	}
	resp.Items = items
	return nil
}

func (s *service) QueueDescribe(req QueueDescribeRequest, resp *QueueDescribeResponse) error {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return errors.New("queue item id is required")
	}
	item, err := s.daemon.Queue().Describe(s.ctx, id)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("queue item %s not found", id)
	}
	resp.Item = *item
	return nil
}

func (s *service) QueueCancel(req QueueIDsRequest, resp *QueueCancelResponse) error {
	if len(req.IDs) == 0 {
		return errors.New("queue cancel requires at least one id")
	}
	result, err := api.CancelItemsByID(s.ctx, s.daemon.Queue(), req.IDs)
	if err != nil {
		return err
	}
	*resp = result
	s.logger.Info("queue items cancelled",
		logging.String(logging.FieldEventType, "queue_cancel"),
		logging.Int("updated_count", result.UpdatedCount))
	return nil
}

func (s *service) QueueRetry(req QueueIDsRequest, resp *QueueRetryResponse) error {
	if len(req.IDs) == 0 {
		return errors.New("queue retry requires at least one id")
	}
	result, err := api.RetryItemsByID(s.ctx, s.daemon.Queue(), req.IDs)
	if err != nil {
		return err
	}
	*resp = result
	s.logger.Info("queue items retried",
		logging.String(logging.FieldEventType, "queue_retry"),
		logging.Int("updated_count", result.UpdatedCount))
	return nil
}

func (s *service) QueueRemove(req QueueIDsRequest, resp *QueueRemoveResponse) error {
	if len(req.IDs) == 0 {
		return errors.New("queue remove requires at least one id")
	}
	result, err := api.RemoveItemsByID(s.ctx, remover{daemon: s.daemon}, req.IDs)
	if err != nil {
		return err
	}
	*resp = result
	return nil
}

func (s *service) QueueDelete(req QueueIDsRequest, resp *QueueRemoveResponse) error {
	if len(req.IDs) == 0 {
		return errors.New("queue delete requires at least one id")
	}
	result, err := api.DeleteItemsByID(s.ctx, remover{daemon: s.daemon}, req.IDs)
	if err != nil {
		return err
	}
	*resp = result
	return nil
}

func (s *service) QueueCancelAll(_ QueueBulkRequest, resp *QueueBulkResponse) error {
	*resp = s.daemon.Queue().CancelAll(s.ctx)
	return nil
}

func (s *service) QueueRetryAll(_ QueueBulkRequest, resp *QueueBulkResponse) error {
	*resp = s.daemon.Queue().RetryAll(s.ctx)
	return nil
}

func (s *service) QueueClearCompleted(_ QueueBulkRequest, resp *QueueBulkResponse) error {
	*resp = s.daemon.Queue().ClearCompleted(s.ctx)
	return nil
}

func (s *service) RestartWorkers(_ QueueBulkRequest, resp *QueueBulkResponse) error {
	requeued, err := s.daemon.RestartWorkers(s.ctx)
	if err != nil {
		return err
	}
	*resp = api.ActionResult{
		Action:   "restart",
		Affected: requeued,
		Message:  fmt.Sprintf("workers restarted, %d item(s) re-submitted", requeued),
	}
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	entries, err := s.daemon.Queue().History(s.ctx, history.ListOptions{
		Service: strings.TrimSpace(req.Service),
		Limit:   req.Limit,
	})
	if err != nil {
		return err
	}
	resp.Entries = entries
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	ctx := s.ctx
	if req.Follow {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) CleanTemp(req CleanTempRequest, resp *CleanTempResponse) error {
	result, err := s.daemon.CleanTemp(s.ctx, req.Force)
	if err != nil {
		return err
	}
	*resp = result
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	if err != nil {
		resp.Message = fmt.Sprintf("%s: %v", message, err)
	}
	return nil
}
