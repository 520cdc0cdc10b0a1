package services

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/ewilliams-labs/moodify/internal/core/domain"
)

func rankedTracks(n int) []domain.ScoredCandidate {
	out := make([]domain.ScoredCandidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.ScoredCandidate{
			Track: track(fmt.Sprintf("d%02d", i), 50),
			Score: 1 - float64(i)/float64(n),
		})
	}
	return out
}

func recentTracks(n, popularity int) []domain.Track {
	out := make([]domain.Track, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, track(fmt.Sprintf("f%02d", i), popularity))
	}
	return out
}

func TestMixer_Mix(t *testing.T) {
	tests := []struct {
		name          string
		ranked        []domain.ScoredCandidate
		recent        []domain.Track
		limit         int
		wantLen       int
		wantDiscovery int
	}{
		{
			name:          "both pools large enough",
			ranked:        rankedTracks(40),
			recent:        recentTracks(10, 50),
			limit:         20,
			wantLen:       20,
			wantDiscovery: 17,
		},
		{
			name:          "no familiar tracks falls back to discovery",
			ranked:        rankedTracks(40),
			recent:        recentTracks(10, 90),
			limit:         20,
			wantLen:       20,
			wantDiscovery: 20,
		},
		{
			name:          "small familiar pool",
			ranked:        rankedTracks(40),
			recent:        recentTracks(1, 60),
			limit:         20,
			wantLen:       18,
			wantDiscovery: 17,
		},
		{
			name:          "short ranked list",
			ranked:        rankedTracks(5),
			recent:        recentTracks(10, 50),
			limit:         20,
			wantLen:       15,
			wantDiscovery: 5,
		},
		{
			name:    "zero limit",
			ranked:  rankedTracks(5),
			limit:   0,
			wantLen: 0,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			m := NewMixer(rand.New(rand.NewSource(7)))
			got := m.Mix(tc.ranked, tc.recent, tc.limit)

			if len(got) != tc.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tc.wantLen)
			}
			for i := 0; i < tc.wantDiscovery; i++ {
				if got[i].ID != tc.ranked[i].Track.ID {
					t.Errorf("position %d = %q, want top-ranked %q", i, got[i].ID, tc.ranked[i].Track.ID)
				}
			}
			for _, tr := range got[tc.wantDiscovery:] {
				if tr.ID[0] != 'f' {
					t.Errorf("familiar slot holds %q", tr.ID)
				}
			}
		})
	}
}

func TestMixer_MixDeterministicWithFixedSource(t *testing.T) {
	ranked := rankedTracks(30)
	recent := recentTracks(20, 60)

	a := NewMixer(rand.New(rand.NewSource(42))).Mix(ranked, recent, 20)
	b := NewMixer(rand.New(rand.NewSource(42))).Mix(ranked, recent, 20)
	if !reflect.DeepEqual(trackIDs(a), trackIDs(b)) {
		t.Errorf("same seed produced different mixes:\n%v\n%v", trackIDs(a), trackIDs(b))
	}
}

func TestMixer_FamiliarSkipsDiscoveryAndScansFirst20(t *testing.T) {
	ranked := rankedTracks(10)
	recent := []domain.Track{track("d00", 60), track("d00", 60)}
	recent = append(recent, recentTracks(25, 30)...)
	recent = append(recent, track("late", 60))

	got := NewMixer(rand.New(rand.NewSource(1))).Mix(ranked, recent, 10)

	// d00 is already a discovery track and "late" sits beyond the scan window,
	// so the familiar pool is empty and the mixer falls back.
	if want := trackIDs(topTracks(ranked, 10)); !reflect.DeepEqual(trackIDs(got), want) {
		t.Errorf("mix = %v, want %v", trackIDs(got), want)
	}
}
