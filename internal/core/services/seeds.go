package services

import (
	"sort"

	"github.com/ewilliams-labs/moodify/internal/core/domain"
)

const (
	DefaultMaxSeedTracks  = 3
	DefaultMaxSeedArtists = 2

	// recentWeightFactor makes recency count half as much as top-track standing.
	recentWeightFactor = 0.5
)

// SeedSelection is the outcome of ranking the user's listening history.
type SeedSelection struct {
	Tracks  []domain.Track
	Artists []domain.Artist
}

// SeedSet converts the selection into a capped seed set.
func (s SeedSelection) SeedSet() domain.SeedSet {
	return domain.NewSeedSet(s.Tracks, s.Artists, nil)
}

type weighted[T any] struct {
	item   T
	weight float64
}

// SelectSeeds ranks top tracks (most preferred first) and recently played
// tracks (most recent first) into seed tracks and seed artists. Seed artists
// never include an artist credited on a chosen seed track.
func SelectSeeds(top, recent []domain.Track, maxTracks, maxArtists int) SeedSelection {
	if maxTracks < 0 {
		maxTracks = 0
	}
	if maxArtists < 0 {
		maxArtists = 0
	}

	byTrack := make(map[string]*weighted[domain.Track])
	var trackOrder []*weighted[domain.Track]
	addTrack := func(t domain.Track, w float64) {
		if t.ID == "" {
			return
		}
		if e, ok := byTrack[t.ID]; ok {
			e.weight += w
			return
		}
		e := &weighted[domain.Track]{item: t, weight: w}
		byTrack[t.ID] = e
		trackOrder = append(trackOrder, e)
	}

	n := float64(len(top))
	for i, t := range top {
		addTrack(t, (n-float64(i))/n)
	}
	m := float64(len(recent))
	for i, t := range recent {
		addTrack(t, ((m-float64(i))/m)*recentWeightFactor)
	}

	sort.SliceStable(trackOrder, func(i, j int) bool {
		return trackOrder[i].weight > trackOrder[j].weight
	})

	var sel SeedSelection
	credited := make(map[string]struct{})
	for _, e := range trackOrder {
		if len(sel.Tracks) >= maxTracks {
			break
		}
		sel.Tracks = append(sel.Tracks, e.item)
		for _, a := range e.item.Artists {
			credited[a.ID] = struct{}{}
		}
	}

	byArtist := make(map[string]*weighted[domain.Artist])
	var artistOrder []*weighted[domain.Artist]
	for _, list := range [][]domain.Track{top, recent} {
		for _, t := range list {
			for _, a := range t.Artists {
				if a.ID == "" {
					continue
				}
				if e, ok := byArtist[a.ID]; ok {
					e.weight++
					continue
				}
				e := &weighted[domain.Artist]{item: a, weight: 1}
				byArtist[a.ID] = e
				artistOrder = append(artistOrder, e)
			}
		}
	}

	sort.SliceStable(artistOrder, func(i, j int) bool {
		return artistOrder[i].weight > artistOrder[j].weight
	})

	for _, e := range artistOrder {
		if len(sel.Artists) >= maxArtists {
			break
		}
		if _, skip := credited[e.item.ID]; skip {
			continue
		}
		sel.Artists = append(sel.Artists, e.item)
	}

	return sel
}
