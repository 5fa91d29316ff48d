// Package episode persists podcast episode records in SQLite.
package episode

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"podpress/pkg/types"
)

// ErrNotFound is returned when no episode exists for the given id.
var ErrNotFound = errors.New("episode not found")

// ErrAlreadyProcessing is returned by BeginProcessing when another
// caller holds the processing slot for the episode.
var ErrAlreadyProcessing = errors.New("episode is already being processed")

const schemaVersion = 1

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store manages episode persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the episode database.
func Open(cfg types.DatabaseConfig) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &Store{db: db, path: cfg.Path}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if count > 0 {
		var version int
		if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		if version != schemaVersion {
			return fmt.Errorf("unsupported schema version %d (expected %d)", version, schemaVersion)
		}
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	const schema = `
CREATE TABLE episodes (
	id                   TEXT PRIMARY KEY,
	title                TEXT NOT NULL DEFAULT '',
	audio_url            TEXT NOT NULL DEFAULT '',
	raw_audio_url        TEXT NOT NULL DEFAULT '',
	processed_audio_url  TEXT NOT NULL DEFAULT '',
	background_music_url TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL DEFAULT 'queued',
	processing_status    TEXT NOT NULL DEFAULT 'pending',
	processing_error     TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMP NOT NULL,
	updated_at           TIMESTAMP NOT NULL
);
CREATE INDEX idx_episodes_status ON episodes(status);
CREATE TABLE schema_version (version INTEGER NOT NULL);
`
	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
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

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Create inserts a new episode record. Status starts at queued and
// processing at pending unless the caller set them.
func (s *Store) Create(ctx context.Context, ep *types.Episode) error {
	if ep.ID == "" {
		return fmt.Errorf("episode id is required")
	}
	if ep.Status == "" {
		ep.Status = types.EpisodeQueued
	}
	if ep.ProcessingStatus == "" {
		ep.ProcessingStatus = types.ProcessingPending
	}
	now := time.Now().UTC()
	ep.CreatedAt = now
	ep.UpdatedAt = now

	_, err := s.execWithRetry(ctx, `
INSERT INTO episodes (id, title, audio_url, raw_audio_url, processed_audio_url,
	background_music_url, status, processing_status, processing_error, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ep.ID, ep.Title, ep.AudioURL, ep.RawAudioURL, ep.ProcessedAudioURL,
		ep.BackgroundMusicURL, string(ep.Status), string(ep.ProcessingStatus),
		ep.ProcessingError, ep.CreatedAt, ep.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert episode %s: %w", ep.ID, err)
	}
	return nil
}

// Get returns the episode with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*types.Episode, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, title, audio_url, raw_audio_url, processed_audio_url,
	background_music_url, status, processing_status, processing_error,
	created_at, updated_at
FROM episodes WHERE id = ?`, id)

	var ep types.Episode
	var status, processingStatus string
	err := row.Scan(&ep.ID, &ep.Title, &ep.AudioURL, &ep.RawAudioURL,
		&ep.ProcessedAudioURL, &ep.BackgroundMusicURL, &status,
		&processingStatus, &ep.ProcessingError, &ep.CreatedAt, &ep.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query episode %s: %w", id, err)
	}
	ep.Status = types.EpisodeStatus(status)
	ep.ProcessingStatus = types.ProcessingStatus(processingStatus)
	return &ep, nil
}

// BeginProcessing atomically moves the episode's processing status into
// processing. Only episodes currently pending or error are eligible; a
// concurrent call for the same episode loses the race and gets
// ErrAlreadyProcessing. This runs before any network call so a crash
// mid-attempt leaves an inspectable processing state.
func (s *Store) BeginProcessing(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx, `
UPDATE episodes
SET processing_status = ?, processing_error = '', updated_at = ?
WHERE id = ? AND processing_status IN (?, ?)`,
		string(types.ProcessingProcessing), time.Now().UTC(), id,
		string(types.ProcessingPending), string(types.ProcessingError))
	if err != nil {
		return fmt.Errorf("begin processing for episode %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("begin processing for episode %s: %w", id, err)
	}
	if n == 0 {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return getErr
		}
		return ErrAlreadyProcessing
	}
	return nil
}

// CompleteProcessing records the processed audio URL, marks processing
// completed, clears any prior error, and advances the episode status.
func (s *Store) CompleteProcessing(ctx context.Context, id, processedURL string) error {
	res, err := s.execWithRetry(ctx, `
UPDATE episodes
SET processed_audio_url = ?, processing_status = ?, processing_error = '',
	status = ?, updated_at = ?
WHERE id = ?`,
		processedURL, string(types.ProcessingCompleted),
		string(types.EpisodeCompleted), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("complete processing for episode %s: %w", id, err)
	}
	return requireRow(res, id)
}

// FailProcessing records a terminal processing error. The episode's
// overall status still advances to completed when raw audio exists, so
// a failed enhancement never hides a playable episode.
func (s *Store) FailProcessing(ctx context.Context, id, message string) error {
	res, err := s.execWithRetry(ctx, `
UPDATE episodes
SET processing_status = ?, processing_error = ?,
	status = CASE WHEN audio_url != '' OR raw_audio_url != '' THEN ? ELSE ? END,
	updated_at = ?
WHERE id = ?`,
		string(types.ProcessingError), message,
		string(types.EpisodeCompleted), string(types.EpisodeError),
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("fail processing for episode %s: %w", id, err)
	}
	return requireRow(res, id)
}

// SetStatus updates the episode's overall status.
func (s *Store) SetStatus(ctx context.Context, id string, status types.EpisodeStatus) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE episodes SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set status for episode %s: %w", id, err)
	}
	return requireRow(res, id)
}

// SetRawAudio records the raw narration URL produced by the generation
// stage.
func (s *Store) SetRawAudio(ctx context.Context, id, rawURL string) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE episodes SET raw_audio_url = ?, updated_at = ? WHERE id = ?",
		rawURL, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set raw audio for episode %s: %w", id, err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update episode %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
