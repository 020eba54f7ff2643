// Package postprocess finishes downloaded files with ffmpeg: format
// conversion, tag embedding and cover art. It also writes .lrc sidecars.
package postprocess

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"riptide/internal/command"
	"riptide/internal/fileutil"
	"riptide/internal/organizer"
	"riptide/internal/services"
)

var audioFormats = map[string]struct{}{
	"mp3": {}, "m4a": {}, "flac": {}, "ogg": {}, "opus": {}, "wav": {}, "aac": {},
}

// Option configures a Processor.
type Option func(*Processor)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec command.Executor) Option {
	return func(p *Processor) {
		if exec != nil {
			p.exec = exec
		}
	}
}

// WithHTTPClient overrides the client used to fetch cover art.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Processor) {
		if client != nil {
			p.http = client
		}
	}
}

// Processor runs ffmpeg against finished downloads.
type Processor struct {
	ffmpeg string
	exec   command.Executor
	http   *http.Client
}

// New constructs a processor for the given ffmpeg binary.
func New(ffmpeg string, opts ...Option) *Processor {
	p := &Processor{
		ffmpeg: strings.TrimSpace(ffmpeg),
		exec:   command.Local{},
		http:   &http.Client{},
	}
	if p.ffmpeg == "" {
		p.ffmpeg = "ffmpeg"
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsAudioFormat reports whether format is an audio-only container.
func IsAudioFormat(format string) bool {
	_, ok := audioFormats[strings.ToLower(strings.TrimPrefix(format, "."))]
	return ok
}

// Convert transcodes src into dst, inferring the output format from dst's
// extension. src is removed on success.
func (p *Processor) Convert(ctx context.Context, src, dst string) error {
	tmp := scratchPath(dst, "convert")
	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", src}
	if IsAudioFormat(filepath.Ext(dst)) {
		args = append(args, "-vn")
	}
	args = append(args, "-map_metadata", "0", tmp)
	if err := p.run(ctx, "convert", args, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = fileutil.RemoveIfExists(tmp)
		return services.Wrap(services.ErrTransient, "postprocess", "convert", "replace output", err)
	}
	if src != dst {
		if err := fileutil.RemoveIfExists(src); err != nil {
			return services.Wrap(services.ErrTransient, "postprocess", "convert", "remove source", err)
		}
	}
	return nil
}

// EmbedMetadata rewrites the container tags of path in place.
func (p *Processor) EmbedMetadata(ctx context.Context, path string, tags Tags) error {
	if len(tags) == 0 {
		return nil
	}
	tmp := scratchPath(path, "tags")
	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", path, "-map", "0", "-c", "copy"}
	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		args = append(args, "-id3v2_version", "3")
	}
	args = append(args, tags.args()...)
	args = append(args, tmp)
	if err := p.run(ctx, "embed metadata", args, tmp); err != nil {
		return err
	}
	return replace(tmp, path, "embed metadata")
}

// EmbedThumbnail downloads imageURL and attaches it as cover art.
func (p *Processor) EmbedThumbnail(ctx context.Context, path, imageURL string) error {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return services.Wrap(services.ErrValidation, "postprocess", "embed thumbnail", "no image url", nil)
	}
	cover, err := p.fetchImage(ctx, path, imageURL)
	if err != nil {
		return err
	}
	defer func() { _ = fileutil.RemoveIfExists(cover) }()

	tmp := scratchPath(path, "cover")
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", path, "-i", cover,
		"-map", "0", "-map", "1:0", "-c", "copy",
		"-disposition:v:0", "attached_pic",
		"-metadata:s:v", "title=Album cover",
		"-metadata:s:v", "comment=Cover (front)",
	}
	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		args = append(args, "-id3v2_version", "3")
	}
	args = append(args, tmp)
	if err := p.run(ctx, "embed thumbnail", args, tmp); err != nil {
		return err
	}
	return replace(tmp, path, "embed thumbnail")
}

func (p *Processor) fetchImage(ctx context.Context, path, imageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "postprocess", "fetch thumbnail", "build request", err)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "postprocess", "fetch thumbnail", "", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrTransient, "postprocess", "fetch thumbnail", resp.Status, nil)
	}
	ext := ".jpg"
	if strings.Contains(resp.Header.Get("Content-Type"), "png") {
		ext = ".png"
	}
	cover := strings.TrimSuffix(scratchPath(path, "image"), filepath.Ext(path)) + ext
	f, err := os.Create(cover)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "postprocess", "fetch thumbnail", "create image file", err)
	}
	_, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = fileutil.RemoveIfExists(cover)
		return "", services.Wrap(services.ErrTransient, "postprocess", "fetch thumbnail", "write image file", err)
	}
	return cover, nil
}

func (p *Processor) run(ctx context.Context, op string, args []string, output string) error {
	err := p.exec.Run(ctx, p.ffmpeg, args, nil)
	if err == nil {
		return nil
	}
	_ = fileutil.RemoveIfExists(output)
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrCancelled, "postprocess", op, "", err)
	default:
		return services.Wrap(services.ErrExternalTool, "postprocess", op, "ffmpeg failed", err)
	}
}

// LyricsPath is the .lrc sidecar for mediaPath.
func LyricsPath(mediaPath string) string {
	return strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath)) + ".lrc"
}

// WriteLyrics stores lyrics next to mediaPath as <stem>.lrc and returns its path.
func WriteLyrics(mediaPath, lyrics string) (string, error) {
	lyrics = strings.TrimSpace(lyrics)
	if lyrics == "" {
		return "", nil
	}
	target := LyricsPath(mediaPath)
	if err := os.WriteFile(target, []byte(lyrics+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write lyrics: %w", err)
	}
	return target, nil
}

// Tags maps container tag names to values.
type Tags map[string]string

func (t Tags) args() []string {
	keys := make([]string, 0, len(t))
	for k, v := range t {
		if strings.TrimSpace(v) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		args = append(args, "-metadata", k+"="+t[k])
	}
	return args
}

func scratchPath(path, purpose string) string {
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	return filepath.Join(dir, organizer.TempPrefix+stem+"."+purpose+ext)
}

func replace(tmp, path, op string) error {
	if err := os.Rename(tmp, path); err != nil {
		_ = fileutil.RemoveIfExists(tmp)
		return services.Wrap(services.ErrTransient, "postprocess", op, "replace output", err)
	}
	return nil
}
