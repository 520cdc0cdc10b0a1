package ports

import (
	"context"

	"github.com/ewilliams-labs/moodify/internal/core/domain"
)

// Upstream per-call item limits.
const (
	MaxFeatureBatch  = 100
	MaxAddTrackBatch = 100
)

// ListeningSource exposes the authenticated user's listening data.
type ListeningSource interface {
	CurrentUser(ctx context.Context) (domain.User, error)
	GetTopTracks(ctx context.Context, timeRange string, limit int) ([]domain.Track, error)
	GetTopArtists(ctx context.Context, timeRange string, limit int) ([]domain.Artist, error)
	GetRecentlyPlayed(ctx context.Context, limit int) ([]domain.Track, error)
	GetSavedTracks(ctx context.Context, limit int) ([]domain.Track, error)
}

// CatalogSearcher exposes read-only catalog lookups.
type CatalogSearcher interface {
	Search(ctx context.Context, query string, kind string, limit int) ([]domain.Track, error)
	GetArtist(ctx context.Context, id string) (domain.Artist, error)
	GetRelatedArtists(ctx context.Context, id string) ([]domain.Artist, error)
	// GetAudioFeatures returns descriptors keyed by track id. Tracks the
	// service has no descriptor for are absent from the map.
	GetAudioFeatures(ctx context.Context, trackIDs []string, batchSize int) (map[string]domain.AudioFeatures, error)
}

// PlaylistLibrary exposes the user's existing playlists.
type PlaylistLibrary interface {
	GetUserPlaylists(ctx context.Context, limit int) ([]domain.PlaylistSummary, error)
	GetPlaylistTracks(ctx context.Context, playlistID string) ([]domain.Track, error)
}

// PlaylistWriter performs the mutating playlist calls.
type PlaylistWriter interface {
	CreatePlaylist(ctx context.Context, ownerID, name, description string, public bool) (string, error)
	AddTracks(ctx context.Context, playlistID string, trackURIs []string, batchSize int) error
}

// CatalogClient is the full capability set of the remote music catalog.
type CatalogClient interface {
	ListeningSource
	CatalogSearcher
	PlaylistLibrary
	PlaylistWriter
}
