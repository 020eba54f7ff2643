// Package ytdlp drives the yt-dlp extractor as a subprocess. It resolves
// playlists with --flat-playlist, reads metadata from -J output and parses
// --newline progress while downloading.
package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"riptide/internal/accounts"
	"riptide/internal/command"
	"riptide/internal/provider"
	"riptide/internal/queue"
	"riptide/internal/services"
)

// Service is the registry name of this collaborator.
const Service = "ytdlp"

var progressPattern = regexp.MustCompile(`^\[download\]\s+(\d+(?:\.\d+)?)%`)

var unavailableMarkers = []string{
	"video unavailable",
	"private video",
	"is not available",
	"has been removed",
	"members-only",
	"sign in to confirm your age",
	"http error 404",
	"http error 410",
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec command.Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithAudioOnly selects the best audio stream and labels items as tracks.
func WithAudioOnly(audio bool) Option {
	return func(c *Client) {
		c.audioOnly = audio
	}
}

// Client wraps yt-dlp CLI interactions.
type Client struct {
	binary    string
	exec      command.Executor
	audioOnly bool
}

// New constructs a yt-dlp client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	c := &Client{binary: binary, exec: command.Local{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Match accepts any http(s) URL; register this collaborator after more
// specific resolvers.
func (c *Client) Match(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

type info struct {
	Type         string  `json:"_type"`
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Track        string  `json:"track"`
	Artist       string  `json:"artist"`
	Creator      string  `json:"creator"`
	Uploader     string  `json:"uploader"`
	Channel      string  `json:"channel"`
	Album        string  `json:"album"`
	AlbumArtist  string  `json:"album_artist"`
	TrackNumber  int     `json:"track_number"`
	DiscNumber   int     `json:"disc_number"`
	ReleaseYear  int     `json:"release_year"`
	UploadDate   string  `json:"upload_date"`
	Duration     float64 `json:"duration"`
	Genre        string  `json:"genre"`
	Thumbnail    string  `json:"thumbnail"`
	WebpageURL   string  `json:"webpage_url"`
	URL          string  `json:"url"`
	Ext          string  `json:"ext"`
	IsLive       bool    `json:"is_live"`
	Availability string  `json:"availability"`
	AgeLimit     int     `json:"age_limit"`
	Extractor    string  `json:"extractor_key"`
	Entries      []info  `json:"entries"`
}

// Resolve lists the entries behind url. Playlists expand to numbered children;
// anything else becomes a single entry keyed by its canonical page URL.
func (c *Client) Resolve(ctx context.Context, _ accounts.Token, raw string) ([]queue.PendingEntry, error) {
	out, err := command.Output(ctx, c.exec, c.binary, []string{"-J", "--flat-playlist", "--no-warnings", strings.TrimSpace(raw)})
	if err != nil {
		return nil, c.classify("resolve", err)
	}
	var root info
	if err := json.Unmarshal([]byte(out), &root); err != nil {
		return nil, services.Wrap(services.ErrValidation, "resolve", Service, "decode yt-dlp json", err)
	}

	if root.Type != "playlist" && len(root.Entries) == 0 {
		target := firstNonEmpty(root.WebpageURL, root.URL, raw)
		return []queue.PendingEntry{{
			Service:        Service,
			Type:           c.itemType(),
			ItemID:         target,
			ParentCategory: "track",
			URL:            target,
		}}, nil
	}

	owner := firstNonEmpty(root.Uploader, root.Channel, root.Extractor)
	entries := make([]queue.PendingEntry, 0, len(root.Entries))
	for _, child := range root.Entries {
		target := firstNonEmpty(child.WebpageURL, child.URL)
		if target == "" {
			continue
		}
		entries = append(entries, queue.PendingEntry{
			Service:        Service,
			Type:           c.itemType(),
			ItemID:         target,
			ParentCategory: "playlist",
			PlaylistName:   root.Title,
			PlaylistBy:     owner,
			PlaylistNumber: strconv.Itoa(len(entries) + 1),
			URL:            target,
		})
	}
	return entries, nil
}

// FetchMetadata reads -J output for a single item.
func (c *Client) FetchMetadata(ctx context.Context, _ accounts.Token, _ string, itemID string) (provider.Metadata, error) {
	args := append([]string{"-J", "--no-playlist", "--no-warnings"}, c.formatArgs()...)
	out, err := command.Output(ctx, c.exec, c.binary, append(args, itemID))
	if err != nil {
		return provider.Metadata{}, c.classify("fetch", err)
	}
	var data info
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		return provider.Metadata{}, services.Wrap(services.ErrValidation, "fetch", Service, "decode yt-dlp json", err)
	}
	return toMetadata(data, itemID), nil
}

// Transfer downloads the selected stream straight into req.TempPath.
func (c *Client) Transfer(ctx context.Context, req provider.TransferRequest, onProgress func(percent int)) error {
	source := firstNonEmpty(req.Metadata.ItemURL, req.ItemID)
	args := []string{"--newline", "--no-playlist", "--no-part", "--no-mtime", "--force-overwrites", "--no-warnings"}
	args = append(args, c.formatArgs()...)
	args = append(args, "-o", req.TempPath, source)

	last := -1
	err := c.exec.Run(ctx, c.binary, args, func(line string) {
		percent, ok := parseProgress(line)
		if !ok || onProgress == nil {
			return
		}
		if percent >= 100 {
			percent = 99
		}
		if percent > last {
			last = percent
			onProgress(percent)
		}
	})
	if err != nil {
		return c.classify("transfer", err)
	}
	if onProgress != nil {
		onProgress(100)
	}
	return nil
}

func (c *Client) formatArgs() []string {
	if c.audioOnly {
		return []string{"-f", "bestaudio/best"}
	}
	return []string{"-f", "best"}
}

func (c *Client) itemType() string {
	if c.audioOnly {
		return "track"
	}
	return "video"
}

func (c *Client) classify(stage string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrCancelled, stage, Service, "", err)
	}
	if command.IsNotFound(err) {
		return services.Wrap(services.ErrExternalTool, stage, Service, "yt-dlp not found", err)
	}
	lower := strings.ToLower(err.Error())
	for _, marker := range unavailableMarkers {
		if strings.Contains(lower, marker) {
			return services.Wrap(services.ErrUnavailable, stage, Service, "", err)
		}
	}
	if stage == "transfer" {
		return provider.TransferError(Service, err)
	}
	return provider.FetchError(Service, err)
}

func toMetadata(data info, itemID string) provider.Metadata {
	title := firstNonEmpty(data.Track, data.Title, data.ID)
	artist := firstNonEmpty(data.Artist, data.Creator, data.Uploader, data.Channel)
	meta := provider.Metadata{
		Title:        title,
		Album:        data.Album,
		TrackNumber:  data.TrackNumber,
		DiscNumber:   data.DiscNumber,
		Duration:     time.Duration(data.Duration * float64(time.Second)),
		IsPlayable:   !data.IsLive && !restricted(data.Availability),
		ImageURL:     data.Thumbnail,
		ItemURL:      firstNonEmpty(data.WebpageURL, itemID),
		SourceFormat: strings.ToLower(data.Ext),
		Explicit:     data.AgeLimit >= 18,
		Extra: map[string]string{
			"id":        data.ID,
			"extractor": data.Extractor,
			"uploader":  data.Uploader,
		},
	}
	if artist != "" {
		meta.Artists = splitArtists(artist)
	}
	if data.AlbumArtist != "" {
		meta.AlbumArtists = splitArtists(data.AlbumArtist)
	}
	if data.Genre != "" {
		meta.Genre = []string{data.Genre}
	}
	switch {
	case data.ReleaseYear > 0:
		meta.ReleaseYear = strconv.Itoa(data.ReleaseYear)
	case len(data.UploadDate) >= 4:
		meta.ReleaseYear = data.UploadDate[:4]
	}
	return meta
}

func restricted(availability string) bool {
	switch availability {
	case "private", "premium_only", "subscriber_only", "needs_auth":
		return true
	}
	return false
}

func splitArtists(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseProgress(line string) (int, bool) {
	match := progressPattern.FindStringSubmatch(strings.TrimSpace(line))
	if match == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return int(value), true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

var (
	_ provider.Collaborator = (*Client)(nil)
	_ provider.Resolver     = (*Client)(nil)
)

// String identifies the client in logs.
func (c *Client) String() string {
	return fmt.Sprintf("ytdlp(%s)", c.binary)
}
