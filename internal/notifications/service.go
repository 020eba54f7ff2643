package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"riptide/internal/config"
)

const userAgent = "riptide/1.0"

// Event identifies a notification type.
type Event string

const (
	EventDownloadCompleted Event = "download_completed"
	EventDownloadFailed    Event = "download_failed"
	EventQueueStarted      Event = "queue_started"
	EventQueueCompleted    Event = "queue_completed"
	EventError             Event = "error"
	EventTest              Event = "test"
)

// Payload carries event-specific values.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		downloads: cfg.Notifications.Downloads,
		errors:    cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	downloads bool
	errors    bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if !n.enabled(event) {
		return nil
	}
	msg, ok := format(event, data)
	if !ok {
		return fmt.Errorf("unsupported notification event %q", event)
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventDownloadCompleted, EventQueueStarted, EventQueueCompleted:
		return n.downloads
	case EventDownloadFailed, EventError:
		return n.errors
	default:
		return true
	}
}

func format(event Event, data Payload) (payload, bool) {
	switch event {
	case EventDownloadCompleted:
		title := stringValue(data, "title")
		message := fmt.Sprintf("Downloaded: %s", title)
		if by := stringValue(data, "by"); by != "" {
			message = fmt.Sprintf("Downloaded: %s - %s", by, title)
		}
		if size := int64Value(data, "bytes"); size > 0 {
			message += fmt.Sprintf(" (%s)", humanize.Bytes(uint64(size)))
		}
		if path := stringValue(data, "path"); path != "" {
			message += "\nFile: " + path
		}
		return payload{
			title:   "riptide - Downloaded",
			message: message,
			tags:    []string{"riptide", "download", serviceTag(data)},
		}, true
	case EventDownloadFailed:
		message := fmt.Sprintf("Failed: %s", stringValue(data, "title"))
		if reason := stringValue(data, "error"); reason != "" {
			message += "\n" + reason
		}
		return payload{
			title:    "riptide - Download Failed",
			message:  message,
			tags:     []string{"riptide", "download", "failed"},
			priority: "high",
		}, true
	case EventQueueStarted:
		return payload{
			title:   "riptide - Queue Started",
			message: fmt.Sprintf("Started downloading %d items", intValue(data, "count")),
			tags:    []string{"riptide", "queue", "started"},
		}, true
	case EventQueueCompleted:
		duration := durationValue(data, "duration").Round(time.Second)
		if duration < 0 {
			duration = 0
		}
		downloaded := intValue(data, "downloaded")
		failed := intValue(data, "failed")
		title := "riptide - Queue Complete"
		message := fmt.Sprintf("Queue complete: %d downloaded in %s", downloaded, duration)
		if failed > 0 {
			title = "riptide - Queue Complete (with errors)"
			message = fmt.Sprintf("Queue complete: %d downloaded, %d failed in %s", downloaded, failed, duration)
		}
		return payload{
			title:   title,
			message: message,
			tags:    []string{"riptide", "queue", "completed"},
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("Error")
		if label := stringValue(data, "context"); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		if err, ok := data["error"].(error); ok && err != nil {
			b.WriteString(": ")
			b.WriteString(err.Error())
		} else if text := stringValue(data, "error"); text != "" {
			b.WriteString(": ")
			b.WriteString(text)
		}
		return payload{
			title:    "riptide - Error",
			message:  b.String(),
			tags:     []string{"riptide", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "riptide - Test",
			message:  "Notification system test",
			tags:     []string{"riptide", "test"},
			priority: "low",
		}, true
	}
	return payload{}, false
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if tags := compact(data.tags); len(tags) > 0 {
		req.Header.Set("Tags", strings.Join(tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

func serviceTag(data Payload) string {
	return strings.ToLower(stringValue(data, "service"))
}

func compact(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func stringValue(data Payload, key string) string {
	switch v := data[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case error:
		return strings.TrimSpace(v.Error())
	}
	return ""
}

func intValue(data Payload, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

func int64Value(data Payload, key string) int64 {
	switch v := data[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	}
	return 0
}

func durationValue(data Payload, key string) time.Duration {
	if v, ok := data[key].(time.Duration); ok {
		return v
	}
	return 0
}
