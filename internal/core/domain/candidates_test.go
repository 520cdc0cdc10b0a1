package domain

import (
	"reflect"
	"testing"
)

func TestNewSeedSet_Priority(t *testing.T) {
	tracks := func(ids ...string) []Track {
		out := make([]Track, 0, len(ids))
		for _, id := range ids {
			out = append(out, Track{ID: id})
		}
		return out
	}
	artists := func(ids ...string) []Artist {
		out := make([]Artist, 0, len(ids))
		for _, id := range ids {
			out = append(out, Artist{ID: id})
		}
		return out
	}

	tests := []struct {
		name        string
		tracks      []Track
		artists     []Artist
		genres      []string
		wantTracks  []string
		wantArtists []string
		wantGenres  []string
	}{
		{
			name:        "keeps everything under the cap",
			tracks:      tracks("t1", "t2", "t3"),
			artists:     artists("a1", "a2"),
			wantTracks:  []string{"t1", "t2", "t3"},
			wantArtists: []string{"a1", "a2"},
			wantGenres:  []string{},
		},
		{
			name:        "tracks alone exceed cap",
			tracks:      tracks("t1", "t2", "t3", "t4", "t5", "t6"),
			artists:     artists("a1"),
			genres:      []string{"rock"},
			wantTracks:  []string{"t1", "t2", "t3", "t4", "t5"},
			wantArtists: []string{},
			wantGenres:  []string{},
		},
		{
			name:        "artists fill remaining room before genres",
			tracks:      tracks("t1", "t2"),
			artists:     artists("a1", "a2", "a3", "a4"),
			genres:      []string{"rock"},
			wantTracks:  []string{"t1", "t2"},
			wantArtists: []string{"a1", "a2", "a3"},
			wantGenres:  []string{},
		},
		{
			name:        "genres take what is left",
			tracks:      tracks("t1"),
			artists:     artists("a1"),
			genres:      []string{"rock", "jazz", "pop", "folk"},
			wantTracks:  []string{"t1"},
			wantArtists: []string{"a1"},
			wantGenres:  []string{"rock", "jazz", "pop"},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			s := NewSeedSet(tc.tracks, tc.artists, tc.genres)
			if s.Len() > MaxSeeds {
				t.Fatalf("seed set too large: %d", s.Len())
			}
			if got := s.TrackIDs(); !reflect.DeepEqual(got, tc.wantTracks) {
				t.Fatalf("tracks: got %v, want %v", got, tc.wantTracks)
			}
			if got := s.ArtistIDs(); !reflect.DeepEqual(got, tc.wantArtists) {
				t.Fatalf("artists: got %v, want %v", got, tc.wantArtists)
			}
			if len(s.Genres) != len(tc.wantGenres) {
				t.Fatalf("genres: got %v, want %v", s.Genres, tc.wantGenres)
			}
			for i := range tc.wantGenres {
				if s.Genres[i] != tc.wantGenres[i] {
					t.Fatalf("genres: got %v, want %v", s.Genres, tc.wantGenres)
				}
			}
		})
	}
}

func TestCandidatePool_Add(t *testing.T) {
	pool := NewCandidatePool(NewExclusionSet("x1", "x2"))

	input := []Track{
		{ID: "c1", Name: "first"},
		{ID: "x1"},
		{ID: "c2"},
		{ID: "c1", Name: "duplicate"},
		{ID: ""},
		{ID: "x2"},
		{ID: "c3"},
	}
	added := pool.AddAll(input)

	if added != 3 {
		t.Fatalf("added: got %d, want 3", added)
	}
	got := pool.Tracks()
	wantIDs := []string{"c1", "c2", "c3"}
	if len(got) != len(wantIDs) {
		t.Fatalf("pool size: got %d, want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Fatalf("pool[%d]: got %s, want %s", i, got[i].ID, id)
		}
	}
	if got[0].Name != "first" {
		t.Fatalf("first occurrence should win, got %q", got[0].Name)
	}
}

func TestExclusionSet_ZeroValue(t *testing.T) {
	var s ExclusionSet
	if s.Contains("anything") {
		t.Fatalf("zero exclusion set should exclude nothing")
	}
	if s.Len() != 0 {
		t.Fatalf("zero exclusion set length: got %d", s.Len())
	}
}
