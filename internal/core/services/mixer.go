package services

import (
	"math/rand"
	"time"

	"github.com/ewilliams-labs/moodify/internal/core/domain"
)

const (
	discoveryRatio     = 0.85
	familiarScanLimit  = 20
	familiarMinPopular = 40
	familiarMaxPopular = 85
)

// Mixer blends top-ranked discoveries with a few familiar recent tracks.
//
// Familiar tracks are sampled uniformly at random. Production mixers are
// seeded from the clock, so two runs over the same data may differ in their
// familiar slice; tests pass a fixed source.
type Mixer struct {
	rng *rand.Rand
}

// NewMixer constructs a Mixer. A nil rng selects a clock-seeded source.
func NewMixer(rng *rand.Rand) *Mixer {
	if rng == nil {
		// #nosec G404 -- playlist shuffling, not security-sensitive
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Mixer{rng: rng}
}

// Mix returns up to limit tracks: the top floor(limit*0.85) ranked candidates
// followed by familiar tracks drawn from the first 20 recent plays with
// popularity in [40,85]. With no familiar tracks available it returns the
// top limit ranked candidates.
func (m *Mixer) Mix(ranked []domain.ScoredCandidate, recent []domain.Track, limit int) []domain.Track {
	if limit <= 0 {
		return nil
	}

	discoveryCount := min(int(float64(limit)*discoveryRatio), len(ranked))
	discovery := make([]domain.Track, 0, limit)
	taken := make(map[string]struct{}, limit)
	for _, c := range ranked[:discoveryCount] {
		discovery = append(discovery, c.Track)
		taken[c.Track.ID] = struct{}{}
	}

	familiar := familiarPool(recent, taken)
	want := min(limit-discoveryCount, len(familiar))
	if want <= 0 {
		return topTracks(ranked, limit)
	}

	m.rng.Shuffle(len(familiar), func(i, j int) {
		familiar[i], familiar[j] = familiar[j], familiar[i]
	})
	return append(discovery, familiar[:want]...)
}

func familiarPool(recent []domain.Track, taken map[string]struct{}) []domain.Track {
	var pool []domain.Track
	seen := make(map[string]struct{})
	for i, t := range recent {
		if i >= familiarScanLimit {
			break
		}
		if t.Popularity < familiarMinPopular || t.Popularity > familiarMaxPopular {
			continue
		}
		if _, ok := taken[t.ID]; ok {
			continue
		}
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		pool = append(pool, t)
	}
	return pool
}

func topTracks(ranked []domain.ScoredCandidate, limit int) []domain.Track {
	n := min(limit, len(ranked))
	out := make([]domain.Track, 0, n)
	for _, c := range ranked[:n] {
		out = append(out, c.Track)
	}
	return out
}
