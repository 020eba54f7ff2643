package postprocess_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"riptide/internal/postprocess"
	"riptide/internal/provider"
	"riptide/internal/queue"
	"riptide/internal/services"
)

// stubExecutor records invocations and writes the output file (last arg).
type stubExecutor struct {
	err  error
	args [][]string
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string)) error {
	s.args = append(s.args, append([]string(nil), args...))
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(args[len(args)-1], []byte("processed"), 0o644)
}

func TestConvertReplacesSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "Song.ogg")
	dst := filepath.Join(dir, "Song.mp3")
	if err := os.WriteFile(src, []byte("raw"), 0o644); err != nil {
		t.Fatal(err)
	}
	exec := &stubExecutor{}
	p := postprocess.New("ffmpeg", postprocess.WithExecutor(exec))

	if err := p.Convert(context.Background(), src, dst); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("source should be removed, stat err=%v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "processed" {
		t.Fatalf("dst = %q, %v", data, err)
	}
	if !slices.Contains(exec.args[0], "-vn") || !slices.Contains(exec.args[0], src) {
		t.Fatalf("unexpected args: %v", exec.args[0])
	}
}

func TestConvertFailureKeepsSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "Song.ogg")
	if err := os.WriteFile(src, []byte("raw"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := postprocess.New("ffmpeg", postprocess.WithExecutor(&stubExecutor{err: errors.New("exit status 1")}))
	err := p.Convert(context.Background(), src, filepath.Join(dir, "Song.mp3"))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source should remain: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the source to remain, got %d entries", len(entries))
	}
}

func TestEmbedMetadataPassesSortedTags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Song.mp3")
	if err := os.WriteFile(path, []byte("raw"), 0o644); err != nil {
		t.Fatal(err)
	}
	exec := &stubExecutor{}
	p := postprocess.New("", postprocess.WithExecutor(exec))
	tags := postprocess.Tags{"title": "Song", "artist": "A", "album": ""}
	if err := p.EmbedMetadata(context.Background(), path, tags); err != nil {
		t.Fatalf("EmbedMetadata: %v", err)
	}
	joined := strings.Join(exec.args[0], " ")
	if !strings.Contains(joined, "-metadata artist=A -metadata title=Song") {
		t.Fatalf("unexpected tag args: %s", joined)
	}
	if strings.Contains(joined, "album=") {
		t.Fatalf("empty tags must be skipped: %s", joined)
	}
	if !strings.Contains(joined, "-id3v2_version 3") {
		t.Fatalf("mp3 output should request id3v2.3: %s", joined)
	}
	if data, _ := os.ReadFile(path); string(data) != "processed" {
		t.Fatalf("file not replaced: %q", data)
	}
}

func TestEmbedThumbnailFetchesImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "Song.m4a")
	if err := os.WriteFile(path, []byte("raw"), 0o644); err != nil {
		t.Fatal(err)
	}
	exec := &stubExecutor{}
	p := postprocess.New("ffmpeg", postprocess.WithExecutor(exec))
	if err := p.EmbedThumbnail(context.Background(), path, srv.URL+"/cover"); err != nil {
		t.Fatalf("EmbedThumbnail: %v", err)
	}
	args := exec.args[0]
	cover := args[slices.Index(args, "-i")+3]
	if !strings.HasSuffix(cover, ".png") {
		t.Fatalf("cover input should be png, got %q", cover)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("scratch files left behind: %d entries", len(entries))
	}
}

func TestEmbedThumbnailBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	path := filepath.Join(t.TempDir(), "Song.mp3")
	if err := os.WriteFile(path, []byte("raw"), 0o644); err != nil {
		t.Fatal(err)
	}
	exec := &stubExecutor{}
	err := postprocess.New("ffmpeg", postprocess.WithExecutor(exec)).EmbedThumbnail(context.Background(), path, srv.URL)
	if err == nil {
		t.Fatal("expected error for 404 cover")
	}
	if len(exec.args) != 0 {
		t.Fatal("ffmpeg should not run without a cover")
	}
}

func TestWriteLyrics(t *testing.T) {
	media := filepath.Join(t.TempDir(), "Song.flac")
	path, err := postprocess.WriteLyrics(media, "[00:01.00] hello")
	if err != nil {
		t.Fatalf("WriteLyrics: %v", err)
	}
	if filepath.Base(path) != "Song.lrc" {
		t.Fatalf("lyrics path = %q", path)
	}
	if path, err := postprocess.WriteLyrics(media, "  "); err != nil || path != "" {
		t.Fatalf("empty lyrics should be a no-op, got %q %v", path, err)
	}
}

func TestTagsFromMetadata(t *testing.T) {
	meta := provider.Metadata{Title: "T", Artists: []string{"A", "B"}, TrackNumber: 4, Explicit: true}
	item := queue.Item{ParentCategory: "playlist", PlaylistName: "Mix"}
	tags := postprocess.TagsFromMetadata(meta, item, "la la", false)
	if tags["artist"] != "A, B" || tags["track"] != "4" || tags["grouping"] != "Mix" || tags["itunesadvisory"] != "1" {
		t.Fatalf("unexpected tags: %v", tags)
	}
	if _, ok := tags["lyrics"]; ok {
		t.Fatal("lyrics should only be embedded on request")
	}
	if tags := postprocess.TagsFromMetadata(meta, item, "la la", true); tags["lyrics"] != "la la" {
		t.Fatal("expected embedded lyrics")
	}
}
