package direct_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"riptide/internal/accounts"
	"riptide/internal/provider"
	"riptide/internal/provider/direct"
)

func TestMatch(t *testing.T) {
	client := direct.New()
	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/audio/song.mp3", true},
		{"http://example.com/Video.MKV", true},
		{"https://example.com/lists/mix.m3u8", true},
		{"https://example.com/page.html", false},
		{"ftp://example.com/song.mp3", false},
		{"https://example.com/", false},
		{"not a url", false},
	}
	for _, tt := range tests {
		if got := client.Match(tt.url); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestResolvePlaylist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lists/Road Trip.m3u" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("#EXTM3U\n#EXTINF:-1, A - One\nsong1.mp3\n\n/abs/song2.flac\nnotes.txt\n"))
	}))
	defer srv.Close()

	entries, err := direct.New().Resolve(context.Background(), accounts.Token{}, srv.URL+"/lists/Road%20Trip.m3u")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(entries), entries)
	}
	if entries[0].ItemID != srv.URL+"/lists/song1.mp3" || entries[1].ItemID != srv.URL+"/abs/song2.flac" {
		t.Fatalf("unexpected item ids: %q %q", entries[0].ItemID, entries[1].ItemID)
	}
	for i, entry := range entries {
		if entry.ParentCategory != "playlist" || entry.PlaylistName != "Road Trip" {
			t.Fatalf("entry %d missing playlist fields: %+v", i, entry)
		}
		if entry.PlaylistNumber != strconv.Itoa(i+1) {
			t.Fatalf("entry %d number = %q", i, entry.PlaylistNumber)
		}
		if entry.Service != direct.Service || entry.Type != "track" {
			t.Fatalf("entry %d service/type = %q/%q", i, entry.Service, entry.Type)
		}
	}
}

func TestResolveSingleURL(t *testing.T) {
	entries, err := direct.New().Resolve(context.Background(), accounts.Token{}, "https://example.com/clip.webm")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != "video" || entries[0].ParentCategory != "track" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestFetchMetadataClassifiesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gone.mp3":
			w.WriteHeader(http.StatusNotFound)
		case "/busy.mp3":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.Header().Set("Content-Length", "42")
			w.Header().Set("Last-Modified", "Tue, 15 Nov 2022 08:12:31 GMT")
		}
	}))
	defer srv.Close()
	client := direct.New()

	_, err := client.FetchMetadata(context.Background(), accounts.Token{}, "track", srv.URL+"/gone.mp3")
	if !errors.Is(err, provider.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for 404, got %v", err)
	}
	_, err = client.FetchMetadata(context.Background(), accounts.Token{}, "track", srv.URL+"/busy.mp3")
	if !errors.Is(err, provider.ErrTransient) {
		t.Fatalf("expected ErrTransient for 503, got %v", err)
	}

	meta, err := client.FetchMetadata(context.Background(), accounts.Token{}, "track", srv.URL+"/My%20Song.ogg")
	if err != nil {
		t.Fatalf("FetchMetadata: %v", err)
	}
	if meta.Title != "My Song" || meta.SourceFormat != "ogg" || !meta.IsPlayable {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if meta.ReleaseYear != "2022" {
		t.Fatalf("release year = %q", meta.ReleaseYear)
	}
	if meta.Extra["size"] != "42" {
		t.Fatalf("size extra = %q", meta.Extra["size"])
	}
}

func TestTransferWritesBodyAndReportsProgress(t *testing.T) {
	body := bytes.Repeat([]byte("riptide!"), 20000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	temp := filepath.Join(t.TempDir(), ".riptide-song.mp3.part")
	var reports []int
	err := direct.New(direct.WithBandwidthLimit(10<<20)).Transfer(context.Background(), provider.TransferRequest{
		Service:  direct.Service,
		ItemID:   srv.URL + "/song.mp3",
		TempPath: temp,
	}, func(p int) { reports = append(reports, p) })
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	got, err := os.ReadFile(temp)
	if err != nil {
		t.Fatalf("read temp: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("body mismatch: got %d bytes", len(got))
	}
	if len(reports) == 0 || reports[len(reports)-1] != 100 {
		t.Fatalf("expected final progress 100, got %v", reports)
	}
	for i := 1; i < len(reports); i++ {
		if reports[i] < reports[i-1] {
			t.Fatalf("progress went backwards: %v", reports)
		}
	}
}

func TestTransferStopsOnCancel(t *testing.T) {
	chunk := bytes.Repeat([]byte{0x42}, 64*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(chunk)*2))
		_, _ = w.Write(chunk)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	temp := filepath.Join(t.TempDir(), "partial.part")
	err := direct.New().Transfer(ctx, provider.TransferRequest{
		ItemID:   srv.URL + "/long.flac",
		TempPath: temp,
	}, func(int) { cancel() })
	if !errors.Is(err, provider.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestTransferCancelledBeforeStart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := direct.New().Transfer(ctx, provider.TransferRequest{
		ItemID:   srv.URL + "/a.mp3",
		TempPath: filepath.Join(t.TempDir(), "a.part"),
	}, nil)
	if !errors.Is(err, provider.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}
