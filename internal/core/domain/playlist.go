package domain

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("domain: not found")
	ErrNoListeningData = errors.New("domain: no listening data available")
	ErrNoCandidates    = errors.New("domain: no candidate tracks available")
)

// PlaylistRecord is one generated playlist in the history log.
// Records are written once and never mutated.
type PlaylistRecord struct {
	ID        string
	Name      string
	CreatedAt time.Time
	TrackIDs  []string
	Metadata  map[string]any
}

// NewPlaylistRecord validates and builds a history record.
func NewPlaylistRecord(id, name string, createdAt time.Time, trackIDs []string) (*PlaylistRecord, error) {
	if id == "" || name == "" {
		return nil, errors.New("domain: invalid argument")
	}
	ids := make([]string, len(trackIDs))
	copy(ids, trackIDs)
	return &PlaylistRecord{
		ID:        id,
		Name:      name,
		CreatedAt: createdAt,
		TrackIDs:  ids,
	}, nil
}
