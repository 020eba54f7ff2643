package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"riptide/internal/accounts"
	"riptide/internal/fileutil"
	"riptide/internal/history"
	"riptide/internal/logging"
	"riptide/internal/organizer"
	"riptide/internal/postprocess"
	"riptide/internal/provider"
	"riptide/internal/queue"
	"riptide/internal/services"
)

// downloadPass tracks one attempt at an item and the files it created.
type downloadPass struct {
	item   queue.Item
	logger *slog.Logger
	meta   provider.Metadata
	start  time.Time

	finalPath  string
	tempPath   string
	stagePath  string
	lyricsPath string // only when this pass created the sidecar
	created    bool
}

// processItem runs one claimed item to a terminal state and releases it.
func (m *Manager) processItem(ctx context.Context, workerLogger *slog.Logger, item queue.Item) {
	itemCtx, cancel := context.WithCancel(withItemContext(ctx, item))
	defer cancel()
	logger := logging.WithContext(itemCtx, workerLogger)

	var watchers sync.WaitGroup
	watchers.Add(1)
	go newCancelWatcher(m.store, m.cfg.PollInterval()).StartLoop(itemCtx, &watchers, item.LocalID, cancel)

	pass := &downloadPass{item: item, logger: logger, start: time.Now()}
	err := m.runPass(itemCtx, pass)
	cancel()
	watchers.Wait()

	if err != nil {
		m.handleFailure(ctx, pass, err)
	}
	m.wait(ctx, m.cfg.DownloadDelay())
	m.store.Release(item.LocalID)
}

func (m *Manager) runPass(ctx context.Context, pass *downloadPass) (err error) {
	defer func() {
		if r := recover(); r != nil {
			pass.logger.Error("download pass panicked",
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldEventType, "download_panic"),
				logging.String(logging.FieldErrorHint, "report this as a bug with the item url"),
			)
			err = fmt.Errorf("download pass panic: %v", r)
		}
	}()
	return m.download(ctx, pass)
}

func (m *Manager) download(ctx context.Context, pass *downloadPass) error {
	item := pass.item
	if err := m.setStatus(item.LocalID, queue.StatusDownloading, 0); err != nil {
		return err
	}

	collab, ok := m.registry.Lookup(item.Service)
	if !ok {
		return services.Wrap(services.ErrValidation, "metadata", "lookup collaborator",
			fmt.Sprintf("no collaborator registered for service %q", item.Service), nil)
	}

	meta, err := m.fetchMetadata(ctx, collab, item)
	if err != nil {
		return err
	}
	pass.meta = meta
	m.fillDisplayFields(item.LocalID, meta)

	finalPath, err := m.destination(pass)
	if err != nil {
		return err
	}
	pass.finalPath = finalPath

	existing, found, err := organizer.FindExisting(filepath.Dir(finalPath), organizer.Stem(finalPath))
	if err != nil {
		return fmt.Errorf("scan for existing file: %w", err)
	}
	if found {
		return m.finishExisting(ctx, pass, collab, existing)
	}

	if !meta.IsPlayable {
		return services.Wrap(services.ErrUnavailable, "metadata", "check playability", "item is not playable", nil)
	}

	if err := m.transfer(ctx, pass, collab); err != nil {
		return err
	}
	if err := m.finalize(ctx, pass); err != nil {
		return err
	}
	if err := m.postProcess(ctx, pass, collab, pass.finalPath); err != nil {
		return err
	}
	return m.complete(ctx, pass)
}

func (m *Manager) fetchMetadata(ctx context.Context, fetcher provider.Fetcher, item queue.Item) (provider.Metadata, error) {
	ctx = services.WithStage(ctx, "metadata")
	token, err := m.accounts.Token(ctx, item.Service)
	if err != nil {
		return provider.Metadata{}, provider.FetchError(item.Service, err)
	}
	meta, err := fetcher.FetchMetadata(ctx, token, item.Type, item.ItemID)
	if err != nil {
		return provider.Metadata{}, provider.FetchError(item.Service, err)
	}
	return meta, nil
}

// fillDisplayFields backfills the display columns for items queued without
// going through the queue fill.
func (m *Manager) fillDisplayFields(localID string, meta provider.Metadata) {
	m.store.Update(localID, func(item *queue.Item) {
		if item.Name == "" {
			item.Name = meta.Title
		}
		if item.By == "" {
			item.By = meta.ArtistString()
		}
		if item.Thumbnail == "" {
			item.Thumbnail = meta.ImageURL
		}
	})
}

func (m *Manager) destination(pass *downloadPass) (string, error) {
	ext := m.cfg.Output.MediaFormat
	if m.cfg.Output.RawMediaDownload {
		ext = pass.meta.SourceFormat
	}
	path, err := m.formatter.Path(pass.meta, pass.item, ext)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "organizing", "format path", "", err)
	}
	if err := organizer.ValidateTarget(m.cfg.Paths.DownloadRoot, path, pass.logger); err != nil {
		return "", err
	}
	return path, nil
}

func (m *Manager) finishExisting(ctx context.Context, pass *downloadPass, collab provider.Collaborator, existing string) error {
	pass.logger.Info("file already exists; skipping download",
		logging.String("file_path", existing),
		logging.String(logging.FieldEventType, "download_skipped_existing"),
	)
	if m.cfg.Output.OverwriteExistingMetadata {
		if err := m.postProcess(ctx, pass, collab, existing); err != nil {
			return err
		}
	}
	_, err := m.setTerminal(pass.item.LocalID, queue.StatusAlreadyExists, existing)
	return err
}

func (m *Manager) transfer(ctx context.Context, pass *downloadPass, collab provider.Transferer) error {
	ctx, logger := withStage(ctx, pass.logger, "transfer")
	item := pass.item
	pass.tempPath = organizer.TempPath(pass.finalPath)
	dir := filepath.Dir(pass.tempPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "transfer", "create directory", dir, err)
	}

	start := time.Now()
	err := m.accounts.WithFallback(ctx, item.Service, func(ctx context.Context, token accounts.Token) error {
		req := provider.TransferRequest{
			Service:  item.Service,
			ItemType: item.Type,
			ItemID:   item.ItemID,
			Token:    token,
			Metadata: pass.meta,
			TempPath: pass.tempPath,
		}
		err := collab.Transfer(ctx, req, func(percent int) {
			m.reportProgress(item.LocalID, percent)
		})
		if err == nil {
			return nil
		}
		_ = fileutil.RemoveIfExists(pass.tempPath)
		err = provider.TransferError(item.Service, err)
		if errors.Is(err, services.ErrTransient) && !token.Anonymous() {
			logger.Warn("transfer failed on account",
				logging.String("account", token.Name),
				logging.Error(err),
				logging.String(logging.FieldEventType, "transfer_account_failed"),
				logging.String(logging.FieldErrorHint, services.Hint(err)),
				logging.String(logging.FieldImpact, "the next account will be tried if one is configured"),
			)
		}
		return err
	})
	if err != nil {
		return err
	}
	if _, err := os.Stat(pass.tempPath); err != nil {
		return services.Wrap(services.ErrValidation, "transfer", "verify output", "transfer reported success without writing a file", err)
	}
	logger.Debug("transfer finished",
		logging.Duration("duration", time.Since(start)),
		logging.Int64("bytes", fileutil.Size(pass.tempPath)),
	)
	return nil
}

// finalize moves the transferred file into place, converting it when the
// source format differs from the configured one.
func (m *Manager) finalize(ctx context.Context, pass *downloadPass) error {
	target := strings.TrimPrefix(filepath.Ext(pass.finalPath), ".")
	source := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(pass.meta.SourceFormat), "."))
	convert := !m.cfg.Output.RawMediaDownload && source != "" && source != target

	if !convert {
		if err := fileutil.MoveFile(pass.tempPath, pass.finalPath); err != nil {
			return services.Wrap(services.ErrTransient, "organizing", "move file", "", err)
		}
		pass.created = true
		return nil
	}

	if err := m.setStatus(pass.item.LocalID, queue.StatusConverting, 99); err != nil {
		return err
	}
	pass.stagePath = strings.TrimSuffix(pass.finalPath, filepath.Ext(pass.finalPath)) + "." + source
	if err := fileutil.MoveFile(pass.tempPath, pass.stagePath); err != nil {
		return services.Wrap(services.ErrTransient, "organizing", "move file", "", err)
	}
	ctx, _ = withStage(ctx, pass.logger, "convert")
	if err := m.post.Convert(ctx, pass.stagePath, pass.finalPath); err != nil {
		return err
	}
	pass.created = true
	return nil
}

// postProcess tags path and adds it to the playlist file. Thumbnail and
// lyric failures are logged without failing the item.
func (m *Manager) postProcess(ctx context.Context, pass *downloadPass, collab provider.Collaborator, path string) error {
	item := pass.item
	out := m.cfg.Output

	if out.EmbedMetadata {
		if err := m.setStatus(item.LocalID, queue.StatusEmbeddingMetadata, 99); err != nil {
			return err
		}
		tagCtx, _ := withStage(ctx, pass.logger, "tag")
		tags := postprocess.TagsFromMetadata(pass.meta, item, pass.meta.Lyrics, out.EmbedLyrics)
		if err := m.post.EmbedMetadata(tagCtx, path, tags); err != nil {
			return err
		}
	}

	if out.EmbedThumbnail && pass.meta.ImageURL != "" {
		if err := m.setStatus(item.LocalID, queue.StatusSettingThumbnail, 99); err != nil {
			return err
		}
		thumbCtx, logger := withStage(ctx, pass.logger, "thumbnail")
		if err := m.post.EmbedThumbnail(thumbCtx, path, pass.meta.ImageURL); err != nil {
			if errors.Is(err, services.ErrCancelled) {
				return err
			}
			logger.Warn("failed to set thumbnail",
				logging.Error(err),
				logging.String(logging.FieldEventType, "thumbnail_failed"),
				logging.String(logging.FieldErrorHint, services.Hint(err)),
				logging.String(logging.FieldImpact, "file is kept without cover art"),
			)
		}
	}

	if out.DownloadLyrics {
		if err := m.fetchLyrics(ctx, pass, collab, path); err != nil {
			return err
		}
	}

	if out.CreateM3U && item.IsPlaylistItem() {
		if err := m.setStatus(item.LocalID, queue.StatusAddingToM3U, 99); err != nil {
			return err
		}
		m3uPath := m.formatter.M3UPath(item)
		added, err := m.m3u.Append(m3uPath, organizer.M3UEntry{
			Duration: pass.meta.Duration,
			Artists:  pass.meta.ArtistString(),
			Title:    pass.meta.Title,
			FilePath: path,
		})
		if err != nil {
			return services.Wrap(services.ErrTransient, "organizing", "append m3u", m3uPath, err)
		}
		if added {
			pass.logger.Debug("added to playlist file", logging.String("m3u_path", m3uPath))
		}
	}
	return nil
}

func (m *Manager) fetchLyrics(ctx context.Context, pass *downloadPass, collab provider.Collaborator, path string) error {
	item := pass.item
	lyrics := pass.meta.Lyrics
	source, ok := collab.(provider.LyricsProvider)
	if !ok && lyrics == "" {
		return nil
	}
	if err := m.setStatus(item.LocalID, queue.StatusGettingLyrics, 99); err != nil {
		return err
	}
	ctx, logger := withStage(ctx, pass.logger, "lyrics")

	fetched := false
	if ok {
		token, err := m.accounts.Token(ctx, item.Service)
		if err == nil {
			var text string
			text, err = source.Lyrics(ctx, token, item.Type, item.ItemID, pass.meta)
			if err == nil && strings.TrimSpace(text) != "" {
				lyrics = text
				fetched = true
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return services.Wrap(services.ErrCancelled, "lyrics", "fetch lyrics", "", err)
			}
			logger.Warn("lyrics lookup failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "lyrics_failed"),
				logging.String(logging.FieldErrorHint, services.Hint(err)),
				logging.String(logging.FieldImpact, "file is kept without lyrics"),
			)
		}
	}
	if strings.TrimSpace(lyrics) == "" {
		return nil
	}

	_, statErr := os.Stat(postprocess.LyricsPath(path))
	preexisting := statErr == nil
	lrc, err := postprocess.WriteLyrics(path, lyrics)
	if err != nil {
		logger.Warn("failed to write lyrics file",
			logging.Error(err),
			logging.String(logging.FieldEventType, "lyrics_write_failed"),
			logging.String(logging.FieldErrorHint, "check download_root permissions"),
		)
		return nil
	}
	if !preexisting {
		pass.lyricsPath = lrc
	}
	if fetched && m.cfg.Output.EmbedLyrics {
		if err := m.post.EmbedMetadata(ctx, path, postprocess.Tags{"lyrics": lyrics}); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) complete(ctx context.Context, pass *downloadPass) error {
	size := fileutil.Size(pass.finalPath)
	done, err := m.setTerminal(pass.item.LocalID, queue.StatusDownloaded, pass.finalPath)
	if err != nil {
		return err
	}
	m.downloadedItems.Add(1)
	m.downloadedBytes.Add(size)
	m.setLastItem(&done)

	pass.logger.Info("download completed",
		logging.String("file_path", pass.finalPath),
		logging.Int64("bytes", size),
		logging.Duration("duration", time.Since(pass.start)),
		logging.String(logging.FieldEventType, "download_completed"),
	)

	if m.recorder != nil && m.cfg.History.Enabled {
		entry := history.EntryFromItem(done, size, time.Now())
		if err := m.recorder.Record(ctx, entry); err != nil {
			pass.logger.Warn("failed to record download history",
				logging.Error(err),
				logging.String(logging.FieldEventType, "history_record_failed"),
				logging.String(logging.FieldErrorHint, "check the history database path and permissions"),
				logging.String(logging.FieldImpact, "the file is on disk but missing from history"),
			)
		}
	}
	m.notifyDownloadCompleted(ctx, done, size)
	return nil
}

// cleanup removes every file this pass created. Existing files found by the
// duplicate scan are never touched.
func (pass *downloadPass) cleanup() {
	paths := []string{pass.tempPath, pass.stagePath, pass.lyricsPath}
	if pass.created {
		paths = append(paths, pass.finalPath)
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := fileutil.RemoveIfExists(path); err != nil {
			pass.logger.Debug("cleanup failed", logging.String("path", path), logging.Error(err))
		}
	}
}
