package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ewilliams-labs/moodify/internal/core/domain"
	"github.com/ewilliams-labs/moodify/internal/core/ports"
)

const (
	maxPlaylistsPage      = 50
	maxPlaylistTracksPage = 100
)

// GetUserPlaylists lists playlists the user owns or follows.
func (c *Client) GetUserPlaylists(ctx context.Context, limit int) ([]domain.PlaylistSummary, error) {
	raw, err := collectPages[spotifyPlaylist](ctx, c, "/me/playlists", nil, limit, maxPlaylistsPage)
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: user playlists: %w", err)
	}
	out := make([]domain.PlaylistSummary, 0, len(raw))
	for _, sp := range raw {
		out = append(out, mapPlaylistSummary(sp))
	}
	return out, nil
}

// GetPlaylistTracks reads every track of a playlist.
func (c *Client) GetPlaylistTracks(ctx context.Context, playlistID string) ([]domain.Track, error) {
	path := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	items, err := collectPages[trackItem](ctx, c, path, nil, 0, maxPlaylistTracksPage)
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: playlist %s tracks: %w", playlistID, err)
	}
	return mapTrackItems(items), nil
}

// CreatePlaylist creates an empty playlist owned by ownerID and returns its id.
func (c *Client) CreatePlaylist(ctx context.Context, ownerID, name, description string, public bool) (string, error) {
	body := createPlaylistRequest{Name: name, Description: description, Public: public}
	var created spotifyPlaylist
	path := "/users/" + url.PathEscape(ownerID) + "/playlists"
	if err := c.sendJSON(ctx, http.MethodPost, path, body, &created); err != nil {
		return "", fmt.Errorf("spotify adapter: create playlist %q: %w", name, err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("spotify adapter: create playlist %q: empty id in response", name)
	}
	c.log.Info().Str("playlist_id", created.ID).Str("name", name).Msg("playlist created")
	return created.ID, nil
}

// AddTracks appends uris to a playlist in batches of at most batchSize
// (capped at the service limit of 100). It stops at the first failed batch.
func (c *Client) AddTracks(ctx context.Context, playlistID string, trackURIs []string, batchSize int) error {
	if batchSize <= 0 || batchSize > ports.MaxAddTrackBatch {
		batchSize = ports.MaxAddTrackBatch
	}

	path := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	for start := 0; start < len(trackURIs); start += batchSize {
		end := min(start+batchSize, len(trackURIs))
		var snap snapshotResponse
		body := addTracksRequest{URIs: trackURIs[start:end]}
		if err := c.sendJSON(ctx, http.MethodPost, path, body, &snap); err != nil {
			return fmt.Errorf("spotify adapter: add tracks %d-%d to %s: %w", start, end, playlistID, err)
		}
		c.log.Debug().Str("playlist_id", playlistID).Int("batch", end-start).Str("snapshot_id", snap.SnapshotID).Msg("tracks added")
	}
	return nil
}
