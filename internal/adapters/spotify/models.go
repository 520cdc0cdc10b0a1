package spotify

// spotifyUser is the public user object.
type spotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// spotifyArtist is the simplified or full artist object; Genres is only
// present on the full one.
type spotifyArtist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres,omitempty"`
}

// spotifyTrack is the full track object.
type spotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	URI        string          `json:"uri"`
	Popularity int             `json:"popularity"`
	IsLocal    bool            `json:"is_local"`
	Artists    []spotifyArtist `json:"artists"`
}

// trackItem wraps a track in saved-track, playlist-item and play-history
// responses. Track is null for removed or unavailable items.
type trackItem struct {
	Track *spotifyTrack `json:"track"`
}

// spotifyAudioFeatures is one entry of the audio-features response.
type spotifyAudioFeatures struct {
	ID           string  `json:"id"`
	Danceability float64 `json:"danceability"`
	Energy       float64 `json:"energy"`
	Valence      float64 `json:"valence"`
	Acousticness float64 `json:"acousticness"`
}

// spotifyPlaylist is the simplified playlist object.
type spotifyPlaylist struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Owner  spotifyUser `json:"owner"`
	Tracks struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

type createPlaylistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

type addTracksRequest struct {
	URIs []string `json:"uris"`
}

type snapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
}
