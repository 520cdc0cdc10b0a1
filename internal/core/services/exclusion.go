package services

import (
	"context"

	"github.com/ewilliams-labs/moodify/internal/core/domain"
)

const (
	exclusionRecentLimit = 50
	exclusionSavedLimit  = 50
	exclusionPlaylists   = 10
)

// BuildExclusionSet collects the ids of tracks the user already knows:
// recent plays, saved tracks and the contents of their own playlists.
// Saved tracks and playlists are best-effort; a failing source is skipped.
func (g *Gatherer) BuildExclusionSet(ctx context.Context, user domain.User) domain.ExclusionSet {
	exclude := domain.NewExclusionSet()

	recent, err := g.catalog.GetRecentlyPlayed(ctx, exclusionRecentLimit)
	if err != nil {
		g.log.Warn().Err(err).Msg("exclusion: skipping recently played tracks")
	}
	exclude.AddTracks(recent)

	saved, err := g.catalog.GetSavedTracks(ctx, exclusionSavedLimit)
	if err != nil {
		g.log.Warn().Err(err).Msg("exclusion: skipping saved tracks")
	}
	exclude.AddTracks(saved)

	playlists, err := g.catalog.GetUserPlaylists(ctx, 50)
	if err != nil {
		g.log.Warn().Err(err).Msg("exclusion: skipping user playlists")
	}

	scanned := 0
	for _, pl := range playlists {
		if scanned >= exclusionPlaylists {
			break
		}
		if user.ID != "" && pl.OwnerID != user.ID {
			continue
		}
		scanned++

		tracks, err := g.catalog.GetPlaylistTracks(ctx, pl.ID)
		if err != nil {
			g.log.Warn().Err(err).Str("playlist_id", pl.ID).Msg("exclusion: skipping playlist")
			continue
		}
		exclude.AddTracks(tracks)
	}

	g.log.Info().
		Int("recent", len(recent)).
		Int("saved", len(saved)).
		Int("playlists", scanned).
		Int("excluded", exclude.Len()).
		Msg("exclusion set built")

	return exclude
}
