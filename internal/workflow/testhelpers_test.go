package workflow_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"riptide/internal/accounts"
	"riptide/internal/config"
	"riptide/internal/history"
	"riptide/internal/logging"
	"riptide/internal/notifications"
	"riptide/internal/postprocess"
	"riptide/internal/provider"
	"riptide/internal/queue"
	"riptide/internal/workflow"
)

const stubService = "stub"

// stubCollaborator writes payload in four chunks, reporting progress after
// each one. failAt > 0 makes Transfer fail once that many chunks are written.
type stubCollaborator struct {
	mu            sync.Mutex
	meta          provider.Metadata
	fetchErr      error
	transferErr   error
	failAt        int
	accountErrs   map[string]error
	block         chan struct{}
	payload       []byte
	fetchCalls    int
	transferCalls int
	accountsSeen  []string
}

func newStubCollaborator() *stubCollaborator {
	return &stubCollaborator{
		meta: provider.Metadata{
			Artists:      []string{"Artist"},
			Album:        "Album",
			AlbumArtists: []string{"Artist"},
			TrackNumber:  1,
			IsPlayable:   true,
			SourceFormat: "mp3",
			Duration:     3 * time.Minute,
		},
		payload: []byte(strings.Repeat("riptide!", 512)),
	}
}

func (s *stubCollaborator) FetchMetadata(ctx context.Context, token accounts.Token, itemType, itemID string) (provider.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchCalls++
	if s.fetchErr != nil {
		return provider.Metadata{}, s.fetchErr
	}
	meta := s.meta
	if meta.Title == "" {
		meta.Title = "Song " + itemID
	}
	return meta, nil
}

func (s *stubCollaborator) Transfer(ctx context.Context, req provider.TransferRequest, onProgress func(int)) error {
	s.mu.Lock()
	s.transferCalls++
	s.accountsSeen = append(s.accountsSeen, req.Token.Name)
	accountErr := s.accountErrs[req.Token.Name]
	transferErr := s.transferErr
	failAt := s.failAt
	block := s.block
	payload := s.payload
	s.mu.Unlock()

	if accountErr != nil {
		return accountErr
	}
	f, err := os.Create(req.TempPath)
	if err != nil {
		return err
	}
	defer f.Close()

	chunk := len(payload) / 4
	for i := 1; i <= 4; i++ {
		if err := ctx.Err(); err != nil {
			return provider.ErrCancelled
		}
		if _, err := f.Write(payload[(i-1)*chunk : i*chunk]); err != nil {
			return err
		}
		onProgress(i * 25)
		if failAt > 0 && i == failAt {
			return transferErr
		}
		if block != nil && i == 2 {
			select {
			case <-ctx.Done():
				return provider.ErrCancelled
			case <-block:
			}
		}
	}
	return nil
}

func (s *stubCollaborator) counts() (fetch, transfer int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls, s.transferCalls
}

type lyricsCollaborator struct {
	*stubCollaborator
	text string
}

func (l lyricsCollaborator) Lyrics(ctx context.Context, token accounts.Token, itemType, itemID string, meta provider.Metadata) (string, error) {
	return l.text, nil
}

// stubResolver expands stub:// URLs into count entries.
type stubResolver struct {
	count int
}

func (r stubResolver) Match(url string) bool {
	return strings.HasPrefix(url, "stub://")
}

func (r stubResolver) Resolve(ctx context.Context, token accounts.Token, url string) ([]queue.PendingEntry, error) {
	name := strings.TrimPrefix(url, "stub://")
	entries := make([]queue.PendingEntry, 0, r.count)
	for i := 1; i <= r.count; i++ {
		id := name + "-" + string(rune('0'+i))
		entries = append(entries, queue.PendingEntry{
			LocalID:        queue.LocalID(stubService, id),
			Service:        stubService,
			Type:           "track",
			ItemID:         id,
			ParentCategory: "track",
			URL:            url + "/" + id,
		})
	}
	return entries, nil
}

// stubPost renames on convert and records every call.
type stubPost struct {
	mu           sync.Mutex
	converted    int
	tagged       []postprocess.Tags
	thumbnails   int
	thumbnailErr error
	lyricsErr    error
}

func (p *stubPost) Convert(ctx context.Context, src, dst string) error {
	p.mu.Lock()
	p.converted++
	p.mu.Unlock()
	return os.Rename(src, dst)
}

func (p *stubPost) EmbedMetadata(ctx context.Context, path string, tags postprocess.Tags) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tagged = append(p.tagged, tags)
	if len(tags) == 1 && tags["lyrics"] != "" {
		return p.lyricsErr
	}
	return nil
}

func (p *stubPost) EmbedThumbnail(ctx context.Context, path, imageURL string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.thumbnails++
	return p.thumbnailErr
}

type recordingSink struct {
	mu       sync.Mutex
	statuses map[string][]queue.Status
}

func newRecordingSink() *recordingSink {
	return &recordingSink{statuses: make(map[string][]queue.Status)}
}

func (r *recordingSink) Notify(item queue.Item, status queue.Status, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := r.statuses[item.LocalID]
	if len(seen) == 0 || seen[len(seen)-1] != status {
		r.statuses[item.LocalID] = append(seen, status)
	}
}

func (r *recordingSink) seen(localID string) []queue.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]queue.Status(nil), r.statuses[localID]...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *recordingNotifier) Publish(ctx context.Context, event notifications.Event, payload notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) has(event notifications.Event) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e == event {
			return true
		}
	}
	return false
}

type recordingRecorder struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (r *recordingRecorder) Record(ctx context.Context, entry history.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

type harness struct {
	cfg      *config.Config
	store    *queue.Store
	manager  *workflow.Manager
	collab   *stubCollaborator
	post     *stubPost
	sink     *recordingSink
	notifier *recordingNotifier
}

func newHarness(t *testing.T, cfg *config.Config, collab provider.Collaborator, opts ...workflow.Option) *harness {
	t.Helper()
	registry := provider.NewRegistry()
	if err := registry.Register(stubService, collab); err != nil {
		t.Fatalf("register collaborator: %v", err)
	}
	registry.RegisterResolver(stubService, stubResolver{count: 2})

	h := &harness{
		cfg:      cfg,
		store:    queue.NewStore(),
		post:     &stubPost{},
		sink:     newRecordingSink(),
		notifier: &recordingNotifier{},
	}
	switch c := collab.(type) {
	case *stubCollaborator:
		h.collab = c
	case lyricsCollaborator:
		h.collab = c.stubCollaborator
	}
	base := []workflow.Option{
		workflow.WithPostProcessor(h.post),
		workflow.WithSink(h.sink),
		workflow.WithNotifier(h.notifier),
	}
	h.manager = workflow.NewManager(cfg, h.store, registry, accounts.NewPool(cfg), logging.NewNop(), append(base, opts...)...)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.manager.Start(context.Background()); err != nil {
		t.Fatalf("start manager: %v", err)
	}
	t.Cleanup(h.manager.Stop)
}

// mediaFiles lists every regular file under root.
func mediaFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	return files
}

func waitUntil(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func containsStatus(statuses []queue.Status, want queue.Status) bool {
	for _, s := range statuses {
		if s == want {
			return true
		}
	}
	return false
}
