// Package sqlite provides a SQLite-backed implementation of the history port.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously

	"github.com/ewilliams-labs/moodify/internal/core/domain"
	"github.com/ewilliams-labs/moodify/internal/core/ports"
)

// ErrDuplicate is returned when a record with the same playlist id exists.
var ErrDuplicate = errors.New("sqlite: playlist already recorded")

// Adapter implements the history port for SQLite
type Adapter struct {
	db *sql.DB
}

var _ ports.HistoryStore = (*Adapter)(nil)

// NewAdapter creates a connection and runs the schema migration
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	// :memory: databases are per-connection
	db.SetMaxOpenConns(1)

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	adapter := &Adapter{db: db}

	if err := adapter.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Append stores rec and its ordered track list in one transaction.
func (a *Adapter) Append(ctx context.Context, rec domain.PlaylistRecord) error {
	var meta sql.NullString
	if len(rec.Metadata) > 0 {
		b, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO playlists (id, name, created_at, track_count, metadata)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ID, rec.Name, rec.CreatedAt.UTC().UnixNano(), len(rec.TrackIDs), meta)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, rec.ID)
		}
		return fmt.Errorf("failed to save playlist record: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO playlist_tracks (playlist_id, position, track_id)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare track insert: %w", err)
	}
	defer stmt.Close()

	for i, id := range rec.TrackIDs {
		if _, err := stmt.ExecContext(ctx, rec.ID, i, id); err != nil {
			return fmt.Errorf("failed to link track %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

// MostRecent returns up to count records, newest first.
func (a *Adapter) MostRecent(ctx context.Context, count int) ([]domain.PlaylistRecord, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, name, created_at, metadata
		FROM playlists
		ORDER BY created_at DESC, seq DESC
		LIMIT ?
	`, count)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	records := []domain.PlaylistRecord{}
	for rows.Next() {
		var (
			rec     domain.PlaylistRecord
			created int64
			meta    sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &created, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		rec.CreatedAt = time.Unix(0, created).UTC()
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &rec.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata for %s: %w", rec.ID, err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate playlists: %w", err)
	}
	rows.Close()

	for i := range records {
		ids, err := a.trackIDs(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].TrackIDs = ids
	}
	return records, nil
}

func (a *Adapter) trackIDs(ctx context.Context, playlistID string) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT track_id FROM playlist_tracks
		WHERE playlist_id = ?
		ORDER BY position ASC
	`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to load playlist tracks: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan playlist track: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate playlist tracks: %w", err)
	}
	return ids, nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS playlists (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		track_count INTEGER NOT NULL DEFAULT 0,
		metadata TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_playlists_created_at ON playlists(created_at);

	CREATE TABLE IF NOT EXISTS playlist_tracks (
		playlist_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		track_id TEXT NOT NULL,
		PRIMARY KEY (playlist_id, position),
		FOREIGN KEY(playlist_id) REFERENCES playlists(id) ON DELETE CASCADE
	);
	`
	_, err := a.db.Exec(query)
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
