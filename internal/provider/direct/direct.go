// Package direct downloads plain HTTP(S) media URLs and simple M3U playlists
// of them. It needs no account and no proprietary protocol.
package direct

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"riptide/internal/accounts"
	"riptide/internal/provider"
	"riptide/internal/queue"
	"riptide/internal/services"
)

// Service is the registry name of this collaborator.
const Service = "direct"

const chunkSize = 32 * 1024

var audioExtensions = map[string]struct{}{
	"mp3": {}, "m4a": {}, "flac": {}, "ogg": {}, "opus": {}, "wav": {}, "aac": {},
}

var videoExtensions = map[string]struct{}{
	"mp4": {}, "mkv": {}, "webm": {}, "mov": {},
}

var playlistExtensions = map[string]struct{}{
	"m3u": {}, "m3u8": {},
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for every request.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithBandwidthLimit caps transfer throughput in bytes per second. Zero
// disables the cap.
func WithBandwidthLimit(bytesPerSecond int) Option {
	return func(c *Client) {
		if bytesPerSecond <= 0 {
			c.limiter = nil
			return
		}
		burst := bytesPerSecond
		if burst < chunkSize {
			burst = chunkSize
		}
		c.limiter = rate.NewLimiter(rate.Limit(bytesPerSecond), burst)
	}
}

// Client implements provider.Collaborator and provider.Resolver over HTTP.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
}

// New constructs a direct client.
func New(opts ...Option) *Client {
	c := &Client{http: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Match accepts http(s) URLs whose path ends in a known media or playlist extension.
func (c *Client) Match(raw string) bool {
	ext, ok := urlExtension(raw)
	if !ok {
		return false
	}
	if _, ok := playlistExtensions[ext]; ok {
		return true
	}
	return itemType(ext) != ""
}

// Resolve returns a single entry for a media URL, or one entry per media line
// of a playlist URL.
func (c *Client) Resolve(ctx context.Context, _ accounts.Token, raw string) ([]queue.PendingEntry, error) {
	raw = strings.TrimSpace(raw)
	ext, ok := urlExtension(raw)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "resolve", Service, "unsupported url "+raw, nil)
	}
	if _, ok := playlistExtensions[ext]; ok {
		return c.resolvePlaylist(ctx, raw)
	}
	return []queue.PendingEntry{{
		Service:        Service,
		Type:           itemType(ext),
		ItemID:         raw,
		ParentCategory: "track",
		URL:            raw,
	}}, nil
}

func (c *Client) resolvePlaylist(ctx context.Context, raw string) ([]queue.PendingEntry, error) {
	base, err := url.Parse(raw)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "resolve", Service, "parse playlist url", err)
	}
	resp, err := c.do(ctx, http.MethodGet, raw)
	if err != nil {
		return nil, provider.FetchError(Service, err)
	}
	defer resp.Body.Close()

	name := strings.TrimSuffix(path.Base(base.Path), path.Ext(base.Path))
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	var entries []queue.PendingEntry
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ref, err := base.Parse(line)
		if err != nil {
			continue
		}
		target := ref.String()
		ext, ok := urlExtension(target)
		if !ok || itemType(ext) == "" {
			continue
		}
		entries = append(entries, queue.PendingEntry{
			Service:        Service,
			Type:           itemType(ext),
			ItemID:         target,
			ParentCategory: "playlist",
			PlaylistName:   name,
			PlaylistBy:     base.Host,
			PlaylistNumber: strconv.Itoa(len(entries) + 1),
			URL:            target,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, provider.FetchError(Service, fmt.Errorf("read playlist: %w", err))
	}
	return entries, nil
}

// FetchMetadata probes the URL with HEAD and derives a title from its file name.
func (c *Client) FetchMetadata(ctx context.Context, _ accounts.Token, kind, itemID string) (provider.Metadata, error) {
	ext, ok := urlExtension(itemID)
	if !ok {
		return provider.Metadata{}, services.Wrap(services.ErrValidation, "fetch", Service, "unsupported url "+itemID, nil)
	}
	resp, err := c.do(ctx, http.MethodHead, itemID)
	if err != nil {
		return provider.Metadata{}, provider.FetchError(Service, err)
	}
	resp.Body.Close()

	parsed, _ := url.Parse(itemID)
	title := strings.TrimSuffix(path.Base(parsed.Path), path.Ext(parsed.Path))
	if unescaped, err := url.PathUnescape(title); err == nil {
		title = unescaped
	}
	meta := provider.Metadata{
		Title:        title,
		Artists:      []string{parsed.Host},
		IsPlayable:   true,
		ItemURL:      itemID,
		SourceFormat: ext,
		Extra:        map[string]string{"host": parsed.Host, "item_type": kind},
	}
	if resp.ContentLength > 0 {
		meta.Extra["size"] = strconv.FormatInt(resp.ContentLength, 10)
	}
	if modified, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		meta.ReleaseYear = strconv.Itoa(modified.Year())
	}
	return meta, nil
}

// Transfer streams the URL body into req.TempPath.
func (c *Client) Transfer(ctx context.Context, req provider.TransferRequest, onProgress func(percent int)) error {
	source := req.Metadata.ItemURL
	if source == "" {
		source = req.ItemID
	}
	resp, err := c.do(ctx, http.MethodGet, source)
	if err != nil {
		return provider.TransferError(Service, err)
	}
	defer resp.Body.Close()

	out, err := os.OpenFile(req.TempPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "transfer", Service, "open temp file", err)
	}
	counter := &progressWriter{
		ctx:        ctx,
		limiter:    c.limiter,
		total:      resp.ContentLength,
		onProgress: onProgress,
	}
	buf := make([]byte, chunkSize)
	_, copyErr := io.CopyBuffer(io.MultiWriter(out, counter), io.LimitReader(resp.Body, maxBody(resp.ContentLength)), buf)
	closeErr := out.Close()
	if copyErr != nil {
		return provider.TransferError(Service, copyErr)
	}
	if closeErr != nil {
		return provider.TransferError(Service, closeErr)
	}
	if resp.ContentLength > 0 && counter.written != resp.ContentLength {
		return provider.TransferError(Service, fmt.Errorf("short body: got %d of %d bytes", counter.written, resp.ContentLength))
	}
	if onProgress != nil {
		onProgress(100)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "request", Service, "build request", err)
	}
	req.Header.Set("User-Agent", "riptide")
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, services.Wrap(services.ErrCancelled, "request", Service, "", ctx.Err())
		}
		return nil, err
	}
	if err := classifyStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone,
		resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusUnauthorized:
		return services.Wrap(services.ErrUnavailable, "request", Service, resp.Status, nil)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return services.Wrap(services.ErrTransient, "request", Service, resp.Status, nil)
	default:
		return services.Wrap(services.ErrValidation, "request", Service, resp.Status, nil)
	}
}

// progressWriter counts bytes, honours cancellation and throttling at every
// chunk, and reports whole-percent changes.
type progressWriter struct {
	ctx        context.Context
	limiter    *rate.Limiter
	total      int64
	written    int64
	last       int
	onProgress func(int)
}

func (w *progressWriter) Write(p []byte) (int, error) {
	if err := w.ctx.Err(); err != nil {
		return 0, services.Wrap(services.ErrCancelled, "transfer", Service, "", err)
	}
	if w.limiter != nil {
		if err := w.limiter.WaitN(w.ctx, min(len(p), w.limiter.Burst())); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return 0, services.Wrap(services.ErrCancelled, "transfer", Service, "", err)
			}
			return 0, err
		}
	}
	w.written += int64(len(p))
	if w.total > 0 && w.onProgress != nil {
		percent := int(w.written * 100 / w.total)
		if percent >= 100 {
			percent = 99
		}
		if percent != w.last {
			w.last = percent
			w.onProgress(percent)
		}
	}
	return len(p), nil
}

func maxBody(length int64) int64 {
	if length > 0 {
		return length
	}
	return 1 << 40
}

func urlExtension(raw string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", false
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(parsed.Path), "."))
	if ext == "" {
		return "", false
	}
	return ext, true
}

func itemType(ext string) string {
	if _, ok := audioExtensions[ext]; ok {
		return "track"
	}
	if _, ok := videoExtensions[ext]; ok {
		return "video"
	}
	return ""
}

var _ provider.Collaborator = (*Client)(nil)
var _ provider.Resolver = (*Client)(nil)
