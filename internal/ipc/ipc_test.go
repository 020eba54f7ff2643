package ipc_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"riptide/internal/daemon"
	"riptide/internal/ipc"
	"riptide/internal/logging"
	"riptide/internal/provider"
	"riptide/internal/queue"
	"riptide/internal/testsupport"
	"riptide/internal/workflow"
)

type fixture struct {
	store  *queue.Store
	daemon *daemon.Daemon
	client *ipc.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := queue.NewStore()
	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, provider.NewRegistry(), nil, logger)
	d, err := daemon.New(cfg, store, logger, mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// Unix socket paths are length-limited, so avoid the long test temp dir.
	dir, err := os.MkdirTemp("", "rt-ipc")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	socket := filepath.Join(dir, "riptide.sock")
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return &fixture{store: store, daemon: d, client: client}
}

func TestIPCStartStatusStop(t *testing.T) {
	f := newFixture(t)

	startResp, err := f.client.Start()
	if err != nil {
		t.Fatalf("Start RPC failed: %v", err)
	}
	if !startResp.Started {
		t.Fatalf("expected Started=true, message=%s", startResp.Message)
	}
	again, err := f.client.Start()
	if err != nil {
		t.Fatalf("second Start RPC failed: %v", err)
	}
	if again.Started || again.Message == "" {
		t.Fatalf("expected second start to be refused, got %#v", again)
	}

	status, err := f.client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running || status.PID != os.Getpid() {
		t.Fatalf("unexpected status %#v", status)
	}

	restart, err := f.client.RestartWorkers()
	if err != nil {
		t.Fatalf("RestartWorkers failed: %v", err)
	}
	if restart.Action != "restart" {
		t.Fatalf("unexpected restart result %#v", restart)
	}

	stopResp, err := f.client.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !stopResp.Stopped {
		t.Fatalf("expected Stop to report stopped, got %#v", stopResp)
	}
	if _, err := f.client.RestartWorkers(); err == nil {
		t.Fatal("expected restart to fail while stopped")
	}
}

func TestIPCQueueControls(t *testing.T) {
	f := newFixture(t)

	waiting := testsupport.WaitingItem("direct", "a")
	failed := testsupport.WaitingItem("direct", "b")
	failed.Status = queue.StatusFailed
	failed.ErrorMessage = "boom"
	f.store.Put(waiting)
	f.store.Put(failed)

	list, err := f.client.QueueList(nil)
	if err != nil {
		t.Fatalf("QueueList failed: %v", err)
	}
	if len(list.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(list.Items))
	}
	filtered, err := f.client.QueueList([]string{string(queue.StatusFailed)})
	if err != nil {
		t.Fatalf("QueueList filter failed: %v", err)
	}
	if len(filtered.Items) != 1 || filtered.Items[0].LocalID != failed.LocalID {
		t.Fatalf("unexpected filtered items %#v", filtered.Items)
	}
	if _, err := f.client.QueueList([]string{"bogus"}); err == nil {
		t.Fatal("expected unknown status to fail")
	}

	described, err := f.client.QueueDescribe(failed.LocalID)
	if err != nil {
		t.Fatalf("QueueDescribe failed: %v", err)
	}
	if described.Item.ErrorMessage != "boom" {
		t.Fatalf("unexpected item %#v", described.Item)
	}
	if _, err := f.client.QueueDescribe("missing"); err == nil {
		t.Fatal("expected describe of missing item to fail")
	}

	retry, err := f.client.QueueRetry([]string{failed.LocalID, "missing"})
	if err != nil {
		t.Fatalf("QueueRetry failed: %v", err)
	}
	if retry.UpdatedCount != 1 || retry.Items[1].Outcome != "not_found" {
		t.Fatalf("unexpected retry result %#v", retry)
	}

	cancel, err := f.client.QueueCancel([]string{waiting.LocalID})
	if err != nil {
		t.Fatalf("QueueCancel failed: %v", err)
	}
	if cancel.UpdatedCount != 1 {
		t.Fatalf("unexpected cancel result %#v", cancel)
	}
	if item, _ := f.store.Get(waiting.LocalID); item.Status != queue.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", item.Status)
	}

	cancelAll, err := f.client.QueueCancelAll()
	if err != nil {
		t.Fatalf("QueueCancelAll failed: %v", err)
	}
	if cancelAll.Affected != 1 {
		t.Fatalf("expected retried item to be cancelled, got %#v", cancelAll)
	}

	cleared, err := f.client.QueueClearCompleted()
	if err != nil {
		t.Fatalf("QueueClearCompleted failed: %v", err)
	}
	if cleared.Affected != 2 {
		t.Fatalf("expected 2 cleared, got %#v", cleared)
	}

	f.store.Put(testsupport.WaitingItem("direct", "c"))
	removed, err := f.client.QueueRemove([]string{queue.LocalID("direct", "c")})
	if err != nil {
		t.Fatalf("QueueRemove failed: %v", err)
	}
	if removed.RemovedCount != 1 || f.store.Len() != 0 {
		t.Fatalf("unexpected remove result %#v (len %d)", removed, f.store.Len())
	}
}

func TestIPCSubmitRejectsUnsupportedURL(t *testing.T) {
	f := newFixture(t)
	resp, err := f.client.Submit([]string{"https://nowhere.example/track/1"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Accepted || resp.Results[0].Error == "" {
		t.Fatalf("unexpected submit result %#v", resp.Results)
	}
}

func TestIPCLogTail(t *testing.T) {
	f := newFixture(t)
	logPath := f.daemon.LogPath()
	if err := os.WriteFile(logPath, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}

	logResp, err := f.client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("LogTail initial failed: %v", err)
	}
	if len(logResp.Lines) != 2 || logResp.Lines[0] != "second" || logResp.Lines[1] != "third" {
		t.Fatalf("unexpected log tail response: %#v", logResp.Lines)
	}

	followDone := make(chan struct{})
	go func(offset int64) {
		defer close(followDone)
		resp, err := f.client.LogTail(ipc.LogTailRequest{Offset: offset, Follow: true, WaitMillis: 2000})
		if err != nil {
			t.Errorf("LogTail follow error: %v", err)
			return
		}
		if len(resp.Lines) != 1 || resp.Lines[0] != "fourth" {
			t.Errorf("unexpected follow lines: %#v", resp.Lines)
		}
	}(logResp.Offset)

	time.Sleep(100 * time.Millisecond)
	fh, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("append log: %v", err)
	}
	_, _ = fh.WriteString("fourth\n")
	_ = fh.Close()

	select {
	case <-followDone:
	case <-time.After(10 * time.Second):
		t.Fatal("log tail follow timed out")
	}
}

func TestIPCNotificationWithoutTopic(t *testing.T) {
	f := newFixture(t)
	resp, err := f.client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if resp.Sent || resp.Message == "" {
		t.Fatalf("expected unsent notification with message, got %#v", resp)
	}
}
