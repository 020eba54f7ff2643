package daemon

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"riptide/internal/logging"
	"riptide/internal/queue"
)

const (
	eventClientBuffer = 64
	eventWriteTimeout = 5 * time.Second
	eventPingInterval = 30 * time.Second
)

// ProgressEvent is pushed to websocket clients on every status or progress change.
type ProgressEvent struct {
	Type         string `json:"type"`
	LocalID      string `json:"local_id"`
	Service      string `json:"item_service"`
	Status       string `json:"item_status"`
	Progress     int    `json:"progress"`
	Name         string `json:"item_name,omitempty"`
	By           string `json:"item_by,omitempty"`
	FilePath     string `json:"file_path,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	At           string `json:"at"`
}

type eventClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// EventHub fans progress notifications out to websocket clients. It satisfies
// workflow.ProgressSink. Slow clients drop events rather than block workers.
type EventHub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*eventClient]struct{}
}

// NewEventHub constructs an empty hub.
func NewEventHub(logger *slog.Logger) *EventHub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &EventHub{
		logger: logging.NewComponentLogger(logger, "events"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*eventClient]struct{}),
	}
}

// Notify broadcasts an item transition.
func (h *EventHub) Notify(item queue.Item, status queue.Status, percent int) {
	if h == nil {
		return
	}
	payload, err := json.Marshal(ProgressEvent{
		Type:         "progress",
		LocalID:      item.LocalID,
		Service:      item.Service,
		Status:       string(status),
		Progress:     percent,
		Name:         item.Name,
		By:           item.By,
		FilePath:     item.FilePath,
		ErrorMessage: item.ErrorMessage,
		At:           time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *EventHub) Clients() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	client := &eventClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, eventClientBuffer),
	}
	h.register(client)
	h.logger.Debug("event client connected", logging.String("client", client.id))

	go h.writeLoop(client)
	h.readLoop(client)
}

func (h *EventHub) register(client *eventClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
}

func (h *EventHub) unregister(client *eventClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
}

// readLoop discards inbound frames; it exists to observe disconnects.
func (h *EventHub) readLoop(client *eventClient) {
	defer func() {
		h.unregister(client)
		_ = client.conn.Close()
		h.logger.Debug("event client disconnected", logging.String("client", client.id))
	}()
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *EventHub) writeLoop(client *eventClient) {
	ticker := time.NewTicker(eventPingInterval)
	defer ticker.Stop()
	for {
		select {
		case payload, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				_ = client.conn.Close()
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = client.conn.Close()
				return
			}
		}
	}
}

// Close disconnects every client.
func (h *EventHub) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	clients := make([]*eventClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()
	for _, client := range clients {
		h.unregister(client)
	}
}
