package services

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/ewilliams-labs/moodify/internal/core/domain"
)

// mockCatalog is a hand-rolled in-memory catalog.
type mockCatalog struct {
	mu sync.Mutex

	user    domain.User
	userErr error

	top       []domain.Track
	topErr    error
	recent    []domain.Track
	recentErr error
	saved     []domain.Track
	savedErr  error

	topArtists []domain.Artist
	artists    map[string]domain.Artist
	related    map[string][]domain.Artist
	relatedErr error

	// searchResults is keyed by exact query; searchDefault answers the rest.
	searchResults map[string][]domain.Track
	searchDefault []domain.Track
	searchErr     error

	features    map[string]domain.AudioFeatures
	featuresErr error

	playlists      []domain.PlaylistSummary
	playlistTracks map[string][]domain.Track

	createErr error
	addErr    error

	// recorded calls
	queries      []string
	featureCalls [][]string
	created      []string
	addedURIs    []string
	addBatches   []int
}

func (m *mockCatalog) CurrentUser(_ context.Context) (domain.User, error) {
	return m.user, m.userErr
}

func (m *mockCatalog) GetTopTracks(_ context.Context, _ string, _ int) ([]domain.Track, error) {
	return m.top, m.topErr
}

func (m *mockCatalog) GetTopArtists(_ context.Context, _ string, _ int) ([]domain.Artist, error) {
	return m.topArtists, nil
}

func (m *mockCatalog) GetRecentlyPlayed(_ context.Context, _ int) ([]domain.Track, error) {
	return m.recent, m.recentErr
}

func (m *mockCatalog) GetSavedTracks(_ context.Context, _ int) ([]domain.Track, error) {
	return m.saved, m.savedErr
}

func (m *mockCatalog) Search(_ context.Context, query string, _ string, limit int) ([]domain.Track, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	res, ok := m.searchResults[query]
	if !ok {
		res = m.searchDefault
	}
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (m *mockCatalog) GetArtist(_ context.Context, id string) (domain.Artist, error) {
	a, ok := m.artists[id]
	if !ok {
		return domain.Artist{}, domain.ErrNotFound
	}
	return a, nil
}

func (m *mockCatalog) GetRelatedArtists(_ context.Context, id string) ([]domain.Artist, error) {
	if m.relatedErr != nil {
		return nil, m.relatedErr
	}
	return m.related[id], nil
}

func (m *mockCatalog) GetAudioFeatures(_ context.Context, ids []string, _ int) (map[string]domain.AudioFeatures, error) {
	m.mu.Lock()
	m.featureCalls = append(m.featureCalls, append([]string(nil), ids...))
	m.mu.Unlock()
	if m.featuresErr != nil {
		return nil, m.featuresErr
	}
	out := make(map[string]domain.AudioFeatures)
	for _, id := range ids {
		if f, ok := m.features[id]; ok {
			out[id] = f
		}
	}
	return out, nil
}

func (m *mockCatalog) GetUserPlaylists(_ context.Context, _ int) ([]domain.PlaylistSummary, error) {
	return m.playlists, nil
}

func (m *mockCatalog) GetPlaylistTracks(_ context.Context, id string) ([]domain.Track, error) {
	tracks, ok := m.playlistTracks[id]
	if !ok {
		return nil, errors.New("playlist unavailable")
	}
	return tracks, nil
}

func (m *mockCatalog) CreatePlaylist(_ context.Context, _ string, name, _ string, _ bool) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	m.created = append(m.created, name)
	return "pl-new", nil
}

func (m *mockCatalog) AddTracks(_ context.Context, _ string, uris []string, batchSize int) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.addBatches = append(m.addBatches, batchSize)
	m.addedURIs = append(m.addedURIs, uris...)
	return nil
}

// mockHistory keeps records in memory.
type mockHistory struct {
	records   []domain.PlaylistRecord
	appendErr error
	readErr   error
}

func (h *mockHistory) Append(_ context.Context, rec domain.PlaylistRecord) error {
	if h.appendErr != nil {
		return h.appendErr
	}
	h.records = append(h.records, rec)
	return nil
}

func (h *mockHistory) MostRecent(_ context.Context, count int) ([]domain.PlaylistRecord, error) {
	if h.readErr != nil {
		return nil, h.readErr
	}
	out := append([]domain.PlaylistRecord(nil), h.records...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > count {
		out = out[:count]
	}
	return out, nil
}

type mockNotifier struct {
	subjects []string
	bodies   []string
	err      error
}

func (n *mockNotifier) Notify(_ context.Context, subject, body string) error {
	n.subjects = append(n.subjects, subject)
	n.bodies = append(n.bodies, body)
	return n.err
}

type recordingObserver struct {
	stats []RunStats
}

func (o *recordingObserver) ObserveRun(s RunStats) {
	o.stats = append(o.stats, s)
}

func track(id string, popularity int, artists ...domain.Artist) domain.Track {
	return domain.Track{ID: id, Name: "Song " + id, Popularity: popularity, Artists: artists}
}

func artist(id string) domain.Artist {
	return domain.Artist{ID: id, Name: "Artist " + id}
}

func trackIDs(tracks []domain.Track) []string {
	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		ids = append(ids, t.ID)
	}
	return ids
}
