package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"riptide/internal/logging"
)

func TestStreamHubCapturesAttrs(t *testing.T) {
	hub := logging.NewStreamHub(10)
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{filepath.Join(t.TempDir(), "x.log")}, Stream: hub})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.With(logging.String(logging.FieldItemID, "item-1")).
		With(logging.String(logging.FieldService, "direct")).
		Info("downloaded", logging.String("path", "/tmp/a.mp3"))

	events, next := hub.Tail(10)
	if len(events) != 1 || next != 1 {
		t.Fatalf("expected one event, got %d (next=%d)", len(events), next)
	}
	evt := events[0]
	if evt.ItemID != "item-1" || evt.Service != "direct" || evt.Message != "downloaded" {
		t.Fatalf("unexpected event: %+v", evt)
	}
	if evt.Fields["path"] != "/tmp/a.mp3" {
		t.Fatalf("expected path field, got %v", evt.Fields)
	}
}

func TestStreamHubRingBuffer(t *testing.T) {
	hub := logging.NewStreamHub(3)
	for i := 0; i < 5; i++ {
		hub.Publish(logging.LogEvent{Message: "m"})
	}
	events, next := hub.Tail(0)
	if len(events) != 3 || next != 5 {
		t.Fatalf("expected 3 buffered events and next=5, got %d/%d", len(events), next)
	}
	if events[0].Sequence != 3 {
		t.Fatalf("expected oldest retained sequence 3, got %d", events[0].Sequence)
	}

	fetched, _, err := hub.Fetch(context.Background(), 4, 10, false)
	if err != nil || len(fetched) != 1 || fetched[0].Sequence != 5 {
		t.Fatalf("unexpected fetch result %+v err=%v", fetched, err)
	}
}

func TestStreamHubFetchWaits(t *testing.T) {
	hub := logging.NewStreamHub(10)
	go func() {
		time.Sleep(20 * time.Millisecond)
		hub.Publish(logging.LogEvent{Message: "late"})
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	events, _, err := hub.Fetch(ctx, 0, 10, true)
	if err != nil || len(events) != 1 || events[0].Message != "late" {
		t.Fatalf("unexpected fetch result %+v err=%v", events, err)
	}

	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	if _, _, err := hub.Fetch(short, 1, 10, true); err == nil {
		t.Fatal("expected context error when no new events arrive")
	}
}

func TestPruneLogsKeepsActiveFile(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "riptide-old.log")
	active := filepath.Join(dir, "riptide.log")
	for _, p := range []string{old, active} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		past := time.Now().AddDate(0, 0, -10)
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatal(err)
		}
	}
	if n := logging.PruneLogs(logging.NewNop(), dir, "riptide*.log", 5, active); n != 1 {
		t.Fatalf("expected 1 pruned file, got %d", n)
	}
	if _, err := os.Stat(active); err != nil {
		t.Fatalf("active log removed: %v", err)
	}
}
