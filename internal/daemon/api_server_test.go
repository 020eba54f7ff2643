package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"riptide/internal/accounts"
	"riptide/internal/api"
	"riptide/internal/config"
	"riptide/internal/logging"
	"riptide/internal/provider"
	"riptide/internal/queue"
	"riptide/internal/testsupport"
	"riptide/internal/workflow"
)

type prefixResolver struct{}

func (prefixResolver) Match(url string) bool { return strings.HasPrefix(url, "https://media.example/") }

func (prefixResolver) Resolve(ctx context.Context, token accounts.Token, url string) ([]queue.PendingEntry, error) {
	return nil, nil
}

type apiFixture struct {
	cfg    *config.Config
	store  *queue.Store
	daemon *Daemon
	hub    *logging.StreamHub
	server *httptest.Server
}

func newAPIFixture(t *testing.T, token string) *apiFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := queue.NewStore()
	registry := provider.NewRegistry()
	registry.RegisterResolver("direct", prefixResolver{})
	mgr := workflow.NewManager(cfg, store, registry, nil, logging.NewNop())
	hub := logging.NewStreamHub(16)
	d, err := New(cfg, store, logging.NewNop(), mgr, WithLogStream(hub))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := &apiServer{daemon: d, logger: logging.NewNop()}
	server := httptest.NewServer(srv.routes(token))
	t.Cleanup(server.Close)
	return &apiFixture{cfg: cfg, store: store, daemon: d, hub: hub, server: server}
}

func (f *apiFixture) do(t *testing.T, method, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestAPIServerItemsSnapshot(t *testing.T) {
	f := newAPIFixture(t, "")
	f.store.Put(queue.Item{LocalID: "a1", Status: queue.StatusWaiting, Available: true, Name: "Song"})

	resp := f.do(t, http.MethodGet, "/items")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	items := decode[map[string]api.QueueItem](t, resp)
	if items["a1"].Name != "Song" || items["a1"].Status != string(queue.StatusWaiting) {
		t.Fatalf("unexpected snapshot %+v", items)
	}

	list := decode[api.QueueListResponse](t, f.do(t, http.MethodGet, "/api/queue?status=waiting"))
	if len(list.Items) != 1 || list.Items[0].LocalID != "a1" {
		t.Fatalf("unexpected queue list %+v", list)
	}
}

func TestAPIServerCancelAndRetry(t *testing.T) {
	f := newAPIFixture(t, "")
	f.store.Put(queue.Item{LocalID: "a1", Status: queue.StatusWaiting, Available: true})

	if resp := f.do(t, http.MethodGet, "/cancel/a1"); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET cancel status = %d, want 405", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodPost, "/cancel/missing"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cancel missing status = %d, want 404", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodPost, "/cancel/a1"); resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d, want 200", resp.StatusCode)
	}
	if item, _ := f.store.Get("a1"); item.Status != queue.StatusCancelled {
		t.Fatalf("status = %s, want Cancelled", item.Status)
	}
	if resp := f.do(t, http.MethodPost, "/cancel/a1"); resp.StatusCode != http.StatusConflict {
		t.Fatalf("second cancel status = %d, want 409", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodPost, "/retry/a1"); resp.StatusCode != http.StatusOK {
		t.Fatalf("retry status = %d, want 200", resp.StatusCode)
	}
	if item, _ := f.store.Get("a1"); item.Status != queue.StatusWaiting {
		t.Fatalf("status = %s, want Waiting", item.Status)
	}
}

func TestAPIServerClearCompleted(t *testing.T) {
	f := newAPIFixture(t, "")
	f.store.Put(queue.Item{LocalID: "done", Status: queue.StatusDownloaded, Available: true})
	f.store.Put(queue.Item{LocalID: "wait", Status: queue.StatusWaiting, Available: true})

	result := decode[api.ActionResult](t, f.do(t, http.MethodPost, "/clear"))
	if result.Affected != 1 {
		t.Fatalf("Affected = %d, want 1", result.Affected)
	}
	if _, ok := f.store.Get("wait"); !ok {
		t.Fatal("waiting item should survive clear")
	}
}

func TestAPIServerDeleteAndServeFile(t *testing.T) {
	f := newAPIFixture(t, "")
	file := filepath.Join(f.cfg.Paths.DownloadRoot, "Artist", "Song.mp3")
	testsupport.WriteFile(t, file, 64)
	f.store.Put(queue.Item{LocalID: "done", Status: queue.StatusDownloaded, Available: true, FilePath: file})

	resp := f.do(t, http.MethodGet, "/download/done")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) != 64 {
		t.Fatalf("served %d bytes, want 64", len(body))
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "Song.mp3") {
		t.Fatalf("Content-Disposition = %q", cd)
	}

	if resp := f.do(t, http.MethodDelete, "/delete/done"); resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", resp.StatusCode)
	}
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Fatalf("file still present: %v", err)
	}
	if item, _ := f.store.Get("done"); item.Status != queue.StatusDeleted {
		t.Fatalf("status = %s, want Deleted", item.Status)
	}
	if resp := f.do(t, http.MethodDelete, "/delete/done"); resp.StatusCode != http.StatusConflict {
		t.Fatalf("second delete status = %d, want 409", resp.StatusCode)
	}
}

func TestAPIServerSubmitURL(t *testing.T) {
	f := newAPIFixture(t, "")

	resp := f.do(t, http.MethodPost, "/download/https://media.example/track.mp3")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit status = %d, want 202", resp.StatusCode)
	}
	if got := f.daemon.workflow.Status().Parsing; got != 1 {
		t.Fatalf("parse backlog = %d, want 1", got)
	}

	resp = f.do(t, http.MethodPost, "/download/https://unknown.example/x")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unsupported submit status = %d, want 400", resp.StatusCode)
	}
}

func TestAPIServerRequiresToken(t *testing.T) {
	f := newAPIFixture(t, "secret")

	if resp := f.do(t, http.MethodGet, "/items"); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, f.server.URL+"/items", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /items: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAPIServerLogsTail(t *testing.T) {
	f := newAPIFixture(t, "")
	f.hub.Publish(logging.LogEvent{Level: "info", Message: "first", ItemID: "a"})
	f.hub.Publish(logging.LogEvent{Level: "info", Message: "second", ItemID: "b"})

	all := decode[api.LogStreamResponse](t, f.do(t, http.MethodGet, "/api/logs?tail=1"))
	if len(all.Events) != 2 || all.Next == 0 {
		t.Fatalf("unexpected tail %+v", all)
	}
	filtered := decode[api.LogStreamResponse](t, f.do(t, http.MethodGet, "/api/logs?item=b"))
	if len(filtered.Events) != 1 || filtered.Events[0].Message != "second" {
		t.Fatalf("unexpected filtered events %+v", filtered.Events)
	}
}
