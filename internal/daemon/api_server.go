package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"riptide/internal/api"
	"riptide/internal/config"
	"riptide/internal/history"
	"riptide/internal/logging"
	"riptide/internal/queue"
	"riptide/internal/services"
)

const downloadPrefix = "/download/"

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}
	srv.handler = srv.routes(cfg.Paths.APIToken)
	srv.server = &http.Server{
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/items", s.handleItems)
	mux.HandleFunc("/clear", s.handleClear)
	mux.HandleFunc("/cancel/", s.handleCancel)
	mux.HandleFunc("/retry/", s.handleRetry)
	mux.HandleFunc("/delete/", s.handleDelete)
	mux.HandleFunc("/remove/", s.handleRemove)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/queue", s.handleQueue)
	mux.HandleFunc("/api/queue/", s.handleQueueItem)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/logs", s.handleLogs)
	mux.HandleFunc("/api/submit", s.handleSubmit)
	mux.HandleFunc("/api/cancel_all", s.handleCancelAll)
	mux.HandleFunc("/api/retry_all", s.handleRetryAll)
	mux.HandleFunc("/api/restart", s.handleRestart)
	mux.HandleFunc("/api/clean", s.handleClean)
	mux.HandleFunc("/api/events", s.handleEvents)

	// /download/<url> carries a raw URL whose "//" the mux would clean away,
	// so it is dispatched ahead of the mux.
	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(services.WithRequestID(r.Context(), uuid.NewString()))
		if strings.HasPrefix(r.URL.Path, downloadPrefix) {
			s.handleDownload(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})
	return requireBearer(token, root)
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "api_server_failed"),
			)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.String(logging.FieldEventType, "api_server_listening"),
	)
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleItems(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	snapshot, err := s.daemon.Queue().Map(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()).StatusPayload())
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		if parsed, ok := queue.ParseStatus(value); ok {
			statuses = append(statuses, parsed)
		}
	}
	items, err := s.daemon.Queue().List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []api.QueueItem{}
	}
	s.writeJSON(w, http.StatusOK, api.QueueListResponse{Items: items})
}

func (s *apiServer) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	id, ok := pathID(r, "/api/queue/")
	if !ok {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	item, err := s.daemon.Queue().Describe(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueItemResponse{Item: *item})
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.daemon.Queue().History(r.Context(), history.ListOptions{
		Service: r.URL.Query().Get("service"),
		Limit:   limit,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.HistoryListResponse{Entries: entries})
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	id, ok := pathID(r, "/cancel/")
	if !ok {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	result, err := api.CancelItemsByID(r.Context(), s.daemon.Queue(), []string{id})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	outcome := result.Items[0]
	switch outcome.Outcome {
	case api.CancelItemNotFound:
		s.writeError(w, http.StatusNotFound, "queue item not found")
	case api.CancelItemUpdated:
		s.writeJSON(w, http.StatusOK, outcome)
	default:
		s.writeJSON(w, http.StatusConflict, outcome)
	}
}

func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	id, ok := pathID(r, "/retry/")
	if !ok {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	result, err := api.RetryItemsByID(r.Context(), s.daemon.Queue(), []string{id})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	outcome := result.Items[0]
	switch outcome.Outcome {
	case api.RetryItemNotFound:
		s.writeError(w, http.StatusNotFound, "queue item not found")
	case api.RetryItemUpdated:
		s.writeJSON(w, http.StatusOK, outcome)
	default:
		s.writeJSON(w, http.StatusConflict, outcome)
	}
}

func (s *apiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodDelete, http.MethodPost) {
		return
	}
	id, ok := pathID(r, "/delete/")
	if !ok {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	path, err := s.daemon.Delete(r.Context(), id)
	switch {
	case errors.Is(err, queue.ErrItemNotFound):
		s.writeError(w, http.StatusNotFound, "queue item not found")
	case errors.Is(err, api.ErrNotDeletable):
		s.writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.writeJSON(w, http.StatusOK, api.RemoveItemResult{ID: id, Outcome: api.RemoveItemDeleted, FilePath: path})
	}
}

func (s *apiServer) handleRemove(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost, http.MethodDelete) {
		return
	}
	id, ok := pathID(r, "/remove/")
	if !ok {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	result, err := api.RemoveItemsByID(r.Context(), s.daemon.Queue(), []string{id})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result.RemovedCount == 0 {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	s.writeJSON(w, http.StatusOK, result.Items[0])
}

func (s *apiServer) handleClear(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Queue().ClearCompleted(r.Context()))
}

func (s *apiServer) handleCancelAll(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Queue().CancelAll(r.Context()))
}

func (s *apiServer) handleRetryAll(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Queue().RetryAll(r.Context()))
}

func (s *apiServer) handleRestart(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	carried, err := s.daemon.RestartWorkers(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.ActionResult{Action: "restart_workers", Affected: carried})
}

func (s *apiServer) handleClean(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	force := parseBool(r.URL.Query().Get("force"))
	result, err := s.daemon.CleanTemp(r.Context(), force)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req api.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.submit(w, r, req.URL)
}

// handleDownload serves GET /download/<local_id> as a file attachment and
// treats POST /download/<url> as a submission.
func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, downloadPrefix)
	switch r.Method {
	case http.MethodGet:
		item, ok := s.daemon.store.Get(rest)
		if !ok || item.FilePath == "" {
			s.writeError(w, http.StatusNotFound, "file not found")
			return
		}
		if _, err := os.Stat(item.FilePath); err != nil {
			s.writeError(w, http.StatusNotFound, "file not found")
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(item.FilePath)))
		http.ServeFile(w, r, item.FilePath)
	case http.MethodPost:
		if r.URL.RawQuery != "" {
			rest += "?" + r.URL.RawQuery
		}
		s.submit(w, r, rest)
	default:
		w.Header().Set("Allow", "GET, POST")
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) submit(w http.ResponseWriter, r *http.Request, url string) {
	err := s.daemon.Submit(r.Context(), url)
	switch {
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.writeJSON(w, http.StatusAccepted, api.SuccessResponse{Success: true, Message: "url queued for parsing"})
	}
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	hub := s.daemon.LogStream()
	if hub == nil {
		s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: []logging.LogEvent{}})
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := parseBool(query.Get("follow"))
	tail := parseBool(query.Get("tail"))
	item := strings.TrimSpace(query.Get("item"))
	component := strings.TrimSpace(query.Get("component"))
	service := strings.TrimSpace(query.Get("service"))
	level := strings.TrimSpace(query.Get("level"))

	var (
		events []logging.LogEvent
		next   uint64
	)
	if tail && since == 0 && !follow {
		events, next = hub.Tail(limit)
	} else {
		ctx := r.Context()
		if follow {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, 25*time.Second)
			defer cancel()
		}
		var err error
		events, next, err = hub.Fetch(ctx, since, limit, follow)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	filtered := make([]logging.LogEvent, 0, len(events))
	for _, evt := range events {
		if item != "" && evt.ItemID != item {
			continue
		}
		if component != "" && !strings.EqualFold(component, evt.Component) {
			continue
		}
		if service != "" && !strings.EqualFold(service, evt.Service) {
			continue
		}
		if level != "" && !strings.EqualFold(level, evt.Level) {
			continue
		}
		filtered = append(filtered, evt)
	}
	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: filtered, Next: next})
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.daemon.events == nil {
		s.writeError(w, http.StatusNotFound, "event stream disabled")
		return
	}
	s.daemon.events.ServeHTTP(w, r)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}

func allowMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	_, _ = w.Write([]byte(`{"error":"method not allowed"}` + "\n"))
	return false
}

func pathID(r *http.Request, prefix string) (string, bool) {
	id := strings.TrimPrefix(r.URL.Path, prefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func parseBool(value string) bool {
	return value == "1" || strings.EqualFold(value, "true")
}

