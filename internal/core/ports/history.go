package ports

import (
	"context"

	"github.com/ewilliams-labs/moodify/internal/core/domain"
)

// HistoryStore is the append-only log of generated playlists.
type HistoryStore interface {
	Append(ctx context.Context, rec domain.PlaylistRecord) error
	// MostRecent returns up to count records, newest first.
	MostRecent(ctx context.Context, count int) ([]domain.PlaylistRecord, error)
}
