package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"riptide/internal/config"
	"riptide/internal/queue"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by an incompatible version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Entry is one archived download.
type Entry struct {
	ID           int64        `json:"id"`
	LocalID      string       `json:"local_id"`
	Service      string       `json:"item_service"`
	Type         string       `json:"item_type"`
	ItemID       string       `json:"item_id"`
	Name         string       `json:"item_name"`
	By           string       `json:"item_by"`
	URL          string       `json:"item_url,omitempty"`
	PlaylistName string       `json:"playlist_name,omitempty"`
	Status       queue.Status `json:"item_status"`
	FilePath     string       `json:"file_path"`
	SizeBytes    int64        `json:"size_bytes"`
	CompletedAt  time.Time    `json:"completed_at"`
}

// EntryFromItem captures the archived fields of item.
func EntryFromItem(item queue.Item, size int64, at time.Time) Entry {
	return Entry{
		LocalID:      item.LocalID,
		Service:      item.Service,
		Type:         item.Type,
		ItemID:       item.ItemID,
		Name:         item.Name,
		By:           item.By,
		URL:          item.URL,
		PlaylistName: item.PlaylistName,
		Status:       item.Status,
		FilePath:     item.FilePath,
		SizeBytes:    size,
		CompletedAt:  at.UTC(),
	}
}

// ListOptions filters List results.
type ListOptions struct {
	Service string
	Limit   int
}

// Store manages the download archive.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the archive configured in cfg.
func Open(cfg *config.Config) (*Store, error) {
	return OpenPath(cfg.History.Path)
}

// OpenPath initializes or connects to the archive at path.
func OpenPath(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset history)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// Record inserts entry, replacing any earlier download of the same local id.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	if strings.TrimSpace(entry.LocalID) == "" {
		return errors.New("record history: local id required")
	}
	if entry.CompletedAt.IsZero() {
		entry.CompletedAt = time.Now().UTC()
	}
	const query = `INSERT INTO downloads
		(local_id, service, item_type, item_id, item_name, item_by, item_url, playlist_name, status, file_path, size_bytes, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			service = excluded.service,
			item_type = excluded.item_type,
			item_id = excluded.item_id,
			item_name = excluded.item_name,
			item_by = excluded.item_by,
			item_url = excluded.item_url,
			playlist_name = excluded.playlist_name,
			status = excluded.status,
			file_path = excluded.file_path,
			size_bytes = excluded.size_bytes,
			completed_at = excluded.completed_at`
	return s.execWithoutResultRetry(ctx, query,
		entry.LocalID, entry.Service, entry.Type, entry.ItemID, entry.Name, entry.By, entry.URL,
		entry.PlaylistName, string(entry.Status), entry.FilePath, entry.SizeBytes,
		entry.CompletedAt.UTC().Format(time.RFC3339Nano),
	)
}

// Lookup returns the archived entry for localID.
func (s *Store) Lookup(ctx context.Context, localID string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE local_id = ?", localID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// List returns entries, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	query := selectColumns
	var args []any
	if service := strings.ToLower(strings.TrimSpace(opts.Service)); service != "" {
		query += " WHERE service = ?"
		args = append(args, service)
	}
	query += " ORDER BY completed_at DESC, id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// MarkDeleted flags an archived entry whose file was removed.
func (s *Store) MarkDeleted(ctx context.Context, localID string) error {
	return s.execWithoutResultRetry(ctx, "UPDATE downloads SET status = ? WHERE local_id = ?", string(queue.StatusDeleted), localID)
}

// Count returns the number of archived entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM downloads").Scan(&n); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}

const selectColumns = `SELECT id, local_id, service, item_type, item_id, item_name, item_by, item_url,
	playlist_name, status, file_path, size_bytes, completed_at FROM downloads`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		entry     Entry
		status    string
		completed string
	)
	if err := row.Scan(&entry.ID, &entry.LocalID, &entry.Service, &entry.Type, &entry.ItemID, &entry.Name,
		&entry.By, &entry.URL, &entry.PlaylistName, &status, &entry.FilePath, &entry.SizeBytes, &completed); err != nil {
		return Entry{}, err
	}
	entry.Status = queue.Status(status)
	if ts, err := time.Parse(time.RFC3339Nano, completed); err == nil {
		entry.CompletedAt = ts
	}
	return entry, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}
