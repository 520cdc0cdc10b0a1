package services

import (
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodify/internal/core/domain"
	"github.com/ewilliams-labs/moodify/internal/logging"
)

const (
	// FeatureBatchSize caps ids per audio-feature request.
	FeatureBatchSize = 50

	idealPopularity  = 60
	similarityWeight = 0.8
	popularityWeight = 0.2
)

// FeatureSource fetches audio descriptors.
type FeatureSource interface {
	GetAudioFeatures(ctx context.Context, trackIDs []string, batchSize int) (map[string]domain.AudioFeatures, error)
}

// Scorer ranks candidates by closeness to the seeds' audio profile.
type Scorer struct {
	features FeatureSource
	log      zerolog.Logger
}

// NewScorer constructs a Scorer.
func NewScorer(features FeatureSource, log zerolog.Logger) *Scorer {
	return &Scorer{
		features: features,
		log:      logging.Component(log, "scorer"),
	}
}

// Rank fetches missing descriptors for seeds and candidates and returns the
// candidates ordered most-recommended first.
func (s *Scorer) Rank(ctx context.Context, pool []domain.Track, seeds []domain.Track) []domain.ScoredCandidate {
	var missing []string
	seen := make(map[string]struct{})
	for _, list := range [][]domain.Track{seeds, pool} {
		for _, t := range list {
			if t.Features != nil || t.ID == "" {
				continue
			}
			if _, ok := seen[t.ID]; ok {
				continue
			}
			seen[t.ID] = struct{}{}
			missing = append(missing, t.ID)
		}
	}

	fetched := s.fetchFeatures(ctx, missing)
	pool = withFetchedFeatures(pool, fetched)

	var seedFeatures []domain.AudioFeatures
	for _, t := range seeds {
		if f, ok := featuresOf(t, fetched); ok {
			seedFeatures = append(seedFeatures, f)
		}
	}
	if len(seedFeatures) == 0 {
		s.log.Warn().Msg("no seed has audio features; ranking by popularity only")
	}

	ranked := ScoreCandidates(pool, seedFeatures, fetched)
	s.log.Info().
		Int("candidates", len(ranked)).
		Int("seed_profiles", len(seedFeatures)).
		Int("fetched_features", len(fetched)).
		Msg("candidates ranked")
	return ranked
}

func (s *Scorer) fetchFeatures(ctx context.Context, ids []string) map[string]domain.AudioFeatures {
	out := make(map[string]domain.AudioFeatures, len(ids))
	for start := 0; start < len(ids); start += FeatureBatchSize {
		end := min(start+FeatureBatchSize, len(ids))
		chunk := ids[start:end]

		got, err := s.features.GetAudioFeatures(ctx, chunk, FeatureBatchSize)
		if err != nil {
			s.log.Warn().Err(err).Int("batch", len(chunk)).Msg("audio features batch failed")
			continue
		}
		for id, f := range got {
			out[id] = f
		}
	}
	return out
}

// ScoreCandidates is the pure ranking step. seedFeatures holds the profiles
// of the seeds that have one; features supplies descriptors for candidates
// that do not carry their own. The sort is stable, so equal scores keep pool order.
func ScoreCandidates(pool []domain.Track, seedFeatures []domain.AudioFeatures, features map[string]domain.AudioFeatures) []domain.ScoredCandidate {
	profile, haveProfile := meanFeatures(seedFeatures)

	scored := make([]domain.ScoredCandidate, 0, len(pool))
	for _, t := range pool {
		score := PopularityScore(t.Popularity)
		if f, ok := featuresOf(t, features); ok && haveProfile {
			score = similarityWeight*Similarity(f, profile) + popularityWeight*score
		}
		scored = append(scored, domain.ScoredCandidate{Track: t, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// Similarity is one minus the mean absolute difference across the four dimensions.
func Similarity(a, b domain.AudioFeatures) float64 {
	diff := math.Abs(a.Danceability-b.Danceability) +
		math.Abs(a.Energy-b.Energy) +
		math.Abs(a.Valence-b.Valence) +
		math.Abs(a.Acousticness-b.Acousticness)
	return 1 - diff/4
}

// PopularityScore peaks at popularity 60 and falls off linearly.
func PopularityScore(popularity int) float64 {
	return 1 - math.Abs(float64(popularity-idealPopularity))/100
}

func meanFeatures(list []domain.AudioFeatures) (domain.AudioFeatures, bool) {
	if len(list) == 0 {
		return domain.AudioFeatures{}, false
	}
	var sum domain.AudioFeatures
	for _, f := range list {
		sum.Danceability += f.Danceability
		sum.Energy += f.Energy
		sum.Valence += f.Valence
		sum.Acousticness += f.Acousticness
	}
	n := float64(len(list))
	return domain.AudioFeatures{
		Danceability: sum.Danceability / n,
		Energy:       sum.Energy / n,
		Valence:      sum.Valence / n,
		Acousticness: sum.Acousticness / n,
	}, true
}

// withFetchedFeatures returns a copy of pool with fetched descriptors
// attached, so ranked candidates carry the profile they were scored on.
func withFetchedFeatures(pool []domain.Track, fetched map[string]domain.AudioFeatures) []domain.Track {
	out := make([]domain.Track, len(pool))
	for i, t := range pool {
		if f, ok := fetched[t.ID]; ok && t.Features == nil {
			t = t.WithFeatures(f)
		}
		out[i] = t
	}
	return out
}

func featuresOf(t domain.Track, fetched map[string]domain.AudioFeatures) (domain.AudioFeatures, bool) {
	if t.Features != nil {
		return *t.Features, true
	}
	f, ok := fetched[t.ID]
	return f, ok
}
