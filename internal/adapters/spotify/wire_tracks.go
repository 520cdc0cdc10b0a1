package spotify

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ewilliams-labs/moodify/internal/core/domain"
)

const (
	maxTopPage     = 50
	maxRecentPage  = 50
	maxSavedPage   = 50
	maxSearchLimit = 50
)

// CurrentUser returns the profile of the authenticated user.
func (c *Client) CurrentUser(ctx context.Context) (domain.User, error) {
	var u spotifyUser
	if err := c.getJSON(ctx, "/me", nil, &u); err != nil {
		return domain.User{}, fmt.Errorf("spotify adapter: current user: %w", err)
	}
	return domain.User{ID: u.ID, DisplayName: u.DisplayName}, nil
}

// GetTopTracks returns the user's top tracks for timeRange, most preferred first.
func (c *Client) GetTopTracks(ctx context.Context, timeRange string, limit int) ([]domain.Track, error) {
	q := url.Values{"time_range": {timeRange}}
	raw, err := collectPages[spotifyTrack](ctx, c, "/me/top/tracks", q, limit, maxTopPage)
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: top tracks: %w", err)
	}
	return mapTracks(raw), nil
}

// GetRecentlyPlayed returns up to 50 recently played tracks, most recent first.
// The endpoint is cursor-paged and only the first page is read.
func (c *Client) GetRecentlyPlayed(ctx context.Context, limit int) ([]domain.Track, error) {
	limit = clamp(limit, 1, maxRecentPage)
	q := url.Values{"limit": {fmt.Sprint(limit)}}

	var body struct {
		Items []trackItem `json:"items"`
	}
	if err := c.getJSON(ctx, "/me/player/recently-played", q, &body); err != nil {
		return nil, fmt.Errorf("spotify adapter: recently played: %w", err)
	}
	return mapTrackItems(body.Items), nil
}

// GetSavedTracks returns tracks from the user's library, newest first.
func (c *Client) GetSavedTracks(ctx context.Context, limit int) ([]domain.Track, error) {
	items, err := collectPages[trackItem](ctx, c, "/me/tracks", nil, limit, maxSavedPage)
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: saved tracks: %w", err)
	}
	return mapTrackItems(items), nil
}

// Search runs a catalog search. Only the "track" kind yields results; other
// kinds are rejected.
func (c *Client) Search(ctx context.Context, query string, kind string, limit int) ([]domain.Track, error) {
	if kind != "track" {
		return nil, fmt.Errorf("spotify adapter: unsupported search type %q", kind)
	}
	limit = clamp(limit, 1, maxSearchLimit)
	q := url.Values{
		"q":      {query},
		"type":   {kind},
		"limit":  {fmt.Sprint(limit)},
		"market": {c.market},
	}

	var body struct {
		Tracks page[spotifyTrack] `json:"tracks"`
	}
	if err := c.getJSON(ctx, "/search", q, &body); err != nil {
		return nil, fmt.Errorf("spotify adapter: search %q: %w", query, err)
	}
	return mapTracks(body.Tracks.Items), nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
