package spotify

import (
	"github.com/ewilliams-labs/moodify/internal/core/domain"
)

// mapTrackToDomain converts a raw Spotify track to a domain track. Audio
// features come from a separate endpoint and are attached by the scorer.
func mapTrackToDomain(st spotifyTrack) domain.Track {
	artists := make([]domain.Artist, 0, len(st.Artists))
	for _, a := range st.Artists {
		artists = append(artists, mapArtistToDomain(a))
	}

	return domain.Track{
		ID:         st.ID,
		Name:       st.Name,
		URI:        st.URI,
		Popularity: st.Popularity,
		Artists:    artists,
	}
}

func mapArtistToDomain(sa spotifyArtist) domain.Artist {
	return domain.Artist{
		ID:     sa.ID,
		Name:   sa.Name,
		Genres: append([]string(nil), sa.Genres...),
	}
}

func mapFeaturesToDomain(f spotifyAudioFeatures) domain.AudioFeatures {
	return domain.AudioFeatures{
		Danceability: f.Danceability,
		Energy:       f.Energy,
		Valence:      f.Valence,
		Acousticness: f.Acousticness,
	}
}

// mapTrackItems unwraps item envelopes, dropping null, local and id-less tracks.
func mapTrackItems(items []trackItem) []domain.Track {
	tracks := make([]domain.Track, 0, len(items))
	for _, item := range items {
		if item.Track == nil || item.Track.ID == "" || item.Track.IsLocal {
			continue
		}
		tracks = append(tracks, mapTrackToDomain(*item.Track))
	}
	return tracks
}

func mapTracks(raw []spotifyTrack) []domain.Track {
	tracks := make([]domain.Track, 0, len(raw))
	for _, st := range raw {
		if st.ID == "" || st.IsLocal {
			continue
		}
		tracks = append(tracks, mapTrackToDomain(st))
	}
	return tracks
}

func mapArtists(raw []spotifyArtist) []domain.Artist {
	artists := make([]domain.Artist, 0, len(raw))
	for _, a := range raw {
		if a.ID == "" {
			continue
		}
		artists = append(artists, mapArtistToDomain(a))
	}
	return artists
}

func mapPlaylistSummary(sp spotifyPlaylist) domain.PlaylistSummary {
	return domain.PlaylistSummary{
		ID:         sp.ID,
		Name:       sp.Name,
		OwnerID:    sp.Owner.ID,
		TrackCount: sp.Tracks.Total,
	}
}
