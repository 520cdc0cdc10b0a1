package domain

import "fmt"

// AudioFeatures is the audio descriptor vector of a track. Every dimension is in [0,1].
type AudioFeatures struct {
	Danceability float64
	Energy       float64
	Valence      float64
	Acousticness float64
}

// Artist represents a performer in the domain layer.
type Artist struct {
	ID     string
	Name   string
	Genres []string // empty unless fetched from the artist endpoint
}

// Track represents a musical track in the domain layer.
type Track struct {
	ID         string
	Name       string
	URI        string
	Artists    []Artist
	Popularity int            // 0-100
	Features   *AudioFeatures // nil until fetched
}

// PrimaryArtist returns the first credited artist.
func (t Track) PrimaryArtist() (Artist, bool) {
	if len(t.Artists) == 0 {
		return Artist{}, false
	}
	return t.Artists[0], true
}

// TrackURI returns the playlist URI for the track.
func (t Track) TrackURI() string {
	if t.URI != "" {
		return t.URI
	}
	return fmt.Sprintf("spotify:track:%s", t.ID)
}

// ArtistNames returns the display names of every credited artist.
func (t Track) ArtistNames() []string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return names
}

// WithFeatures returns a copy of the track carrying the given features.
// Tracks are never mutated after they are fetched.
func (t Track) WithFeatures(f AudioFeatures) Track {
	t.Features = &f
	return t
}

// User is the account the catalog client is authenticated as.
type User struct {
	ID          string
	DisplayName string
}

// PlaylistSummary describes a playlist without its tracks.
type PlaylistSummary struct {
	ID         string
	Name       string
	OwnerID    string
	TrackCount int
}
