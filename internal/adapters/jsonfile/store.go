// Package jsonfile keeps playlist history in a single JSON document.
package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodify/internal/core/domain"
	"github.com/ewilliams-labs/moodify/internal/core/ports"
	"github.com/ewilliams-labs/moodify/internal/logging"
)

// naive timestamps written without a zone are read as local time
const naiveLayout = "2006-01-02T15:04:05.999999999"

// Store is a HistoryStore backed by a JSON array on disk. Every Append reads
// the whole file and writes it back; concurrent writers are not coordinated.
type Store struct {
	path string
	log  zerolog.Logger
}

var _ ports.HistoryStore = (*Store)(nil)

// NewStore creates the parent directory and an empty history file if needed.
func NewStore(path string, log zerolog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("jsonfile: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("jsonfile: create data directory: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(path, []byte("[]\n"), 0o644); err != nil {
			return nil, fmt.Errorf("jsonfile: create history file: %w", err)
		}
	}
	return &Store{path: path, log: logging.Component(log, "history")}, nil
}

// entry is the on-disk shape of one record.
type entry struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	CreatedAt  string         `json:"created_at"`
	TrackCount int            `json:"track_count"`
	Tracks     []string       `json:"tracks"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func toEntry(rec domain.PlaylistRecord) entry {
	tracks := rec.TrackIDs
	if tracks == nil {
		tracks = []string{}
	}
	var meta map[string]any
	if len(rec.Metadata) > 0 {
		meta = rec.Metadata
	}
	return entry{
		ID:         rec.ID,
		Name:       rec.Name,
		CreatedAt:  rec.CreatedAt.Format(time.RFC3339Nano),
		TrackCount: len(rec.TrackIDs),
		Tracks:     tracks,
		Metadata:   meta,
	}
}

func (e entry) toDomain() domain.PlaylistRecord {
	return domain.PlaylistRecord{
		ID:        e.ID,
		Name:      e.Name,
		CreatedAt: parseCreatedAt(e.CreatedAt),
		TrackIDs:  append([]string(nil), e.Tracks...),
		Metadata:  e.Metadata,
	}
}

func parseCreatedAt(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.ParseInLocation(naiveLayout, s, time.Local); err == nil {
		return t
	}
	return time.Time{}
}

// Append adds rec to the end of the history file.
func (s *Store) Append(_ context.Context, rec domain.PlaylistRecord) error {
	entries, err := s.read()
	if err != nil {
		return err
	}
	entries = append(entries, toEntry(rec))
	if err := s.write(entries); err != nil {
		return err
	}
	s.log.Info().Str("playlist_id", rec.ID).Str("name", rec.Name).Msg("added playlist to history")
	return nil
}

// MostRecent returns up to count records ordered by creation time, newest first.
func (s *Store) MostRecent(_ context.Context, count int) ([]domain.PlaylistRecord, error) {
	entries, err := s.read()
	if err != nil {
		return nil, err
	}

	records := make([]domain.PlaylistRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, e.toDomain())
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if count >= 0 && len(records) > count {
		records = records[:count]
	}
	s.log.Debug().Int("records", len(records)).Msg("retrieved recent playlists")
	return records, nil
}

func (s *Store) read() ([]entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jsonfile: read %s: %w", s.path, err)
	}
	var entries []entry
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("jsonfile: decode %s: %w", s.path, err)
	}
	return entries, nil
}

// write replaces the file via a temporary sibling so a crash mid-write
// leaves the previous contents intact.
func (s *Store) write(entries []entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: encode history: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("jsonfile: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("jsonfile: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("jsonfile: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("jsonfile: replace %s: %w", s.path, err)
	}
	return nil
}
