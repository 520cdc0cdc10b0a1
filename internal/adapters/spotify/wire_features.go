package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ewilliams-labs/moodify/internal/core/domain"
	"github.com/ewilliams-labs/moodify/internal/core/ports"
)

// GetAudioFeatures fetches descriptors in batches of at most batchSize ids
// (capped at the service limit of 100). Tracks the service returns null or
// an all-zero vector for are left out of the result.
func (c *Client) GetAudioFeatures(ctx context.Context, trackIDs []string, batchSize int) (map[string]domain.AudioFeatures, error) {
	if batchSize <= 0 || batchSize > ports.MaxFeatureBatch {
		batchSize = ports.MaxFeatureBatch
	}

	result := make(map[string]domain.AudioFeatures, len(trackIDs))
	for start := 0; start < len(trackIDs); start += batchSize {
		end := min(start+batchSize, len(trackIDs))
		batch, err := c.getAudioFeaturesBatch(ctx, trackIDs[start:end])
		if err != nil {
			return result, err
		}
		for id, f := range batch {
			result[id] = mapFeaturesToDomain(f)
		}
	}
	return result, nil
}

// getAudioFeaturesBatch fetches audio features for multiple tracks in a single request.
func (c *Client) getAudioFeaturesBatch(ctx context.Context, trackIDs []string) (map[string]spotifyAudioFeatures, error) {
	if len(trackIDs) == 0 {
		return make(map[string]spotifyAudioFeatures), nil
	}

	q := url.Values{"ids": {strings.Join(trackIDs, ",")}}
	var body struct {
		AudioFeatures []*spotifyAudioFeatures `json:"audio_features"`
	}
	if err := c.getJSON(ctx, "/audio-features", q, &body); err != nil {
		return nil, fmt.Errorf("spotify adapter: audio features: %w", err)
	}

	result := make(map[string]spotifyAudioFeatures, len(body.AudioFeatures))
	for _, f := range body.AudioFeatures {
		if f == nil || f.ID == "" || allFeaturesZero(*f) {
			continue
		}
		result[f.ID] = *f
	}
	return result, nil
}

func allFeaturesZero(features spotifyAudioFeatures) bool {
	return features.Danceability == 0 &&
		features.Energy == 0 &&
		features.Valence == 0 &&
		features.Acousticness == 0
}
