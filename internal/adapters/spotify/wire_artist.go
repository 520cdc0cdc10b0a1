package spotify

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ewilliams-labs/moodify/internal/core/domain"
)

const maxTopArtistsPage = 50

// GetArtist returns the full artist object, including genres.
func (c *Client) GetArtist(ctx context.Context, id string) (domain.Artist, error) {
	var a spotifyArtist
	if err := c.getJSON(ctx, "/artists/"+url.PathEscape(id), nil, &a); err != nil {
		return domain.Artist{}, fmt.Errorf("spotify adapter: artist %s: %w", id, err)
	}
	return mapArtistToDomain(a), nil
}

// GetRelatedArtists returns artists similar to id.
func (c *Client) GetRelatedArtists(ctx context.Context, id string) ([]domain.Artist, error) {
	var body struct {
		Artists []spotifyArtist `json:"artists"`
	}
	if err := c.getJSON(ctx, "/artists/"+url.PathEscape(id)+"/related-artists", nil, &body); err != nil {
		return nil, fmt.Errorf("spotify adapter: related artists %s: %w", id, err)
	}
	return mapArtists(body.Artists), nil
}

// GetTopArtists returns the user's top artists for timeRange.
func (c *Client) GetTopArtists(ctx context.Context, timeRange string, limit int) ([]domain.Artist, error) {
	q := url.Values{"time_range": {timeRange}}
	raw, err := collectPages[spotifyArtist](ctx, c, "/me/top/artists", q, limit, maxTopArtistsPage)
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: top artists: %w", err)
	}
	return mapArtists(raw), nil
}
