package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodify/internal/core/domain"
	"github.com/ewilliams-labs/moodify/internal/core/ports"
	"github.com/ewilliams-labs/moodify/internal/logging"
)

const (
	gatherSeedArtists     = 2
	gatherRelatedArtists  = 5
	gatherSeedTracks      = 2
	gatherGenresPerTrack  = 2
	gatherTopArtists      = 5
	gatherFallbackGenres  = 5
	gatherSearchLimit     = 20
	gatherPoolMultiplier  = 2
	defaultTopArtistRange = "short_term"
)

// GatherCatalog is the slice of the catalog the gatherer reads from.
type GatherCatalog interface {
	ports.ListeningSource
	ports.CatalogSearcher
	ports.PlaylistLibrary
}

// Gatherer expands seeds into a pool of unseen candidate tracks.
type Gatherer struct {
	catalog GatherCatalog
	log     zerolog.Logger
}

// NewGatherer constructs a Gatherer.
func NewGatherer(catalog GatherCatalog, log zerolog.Logger) *Gatherer {
	return &Gatherer{
		catalog: catalog,
		log:     logging.Component(log, "gatherer"),
	}
}

// Gather runs the related-artist, seed-genre and top-artist-genre searches in
// that order, stopping once the pool holds roughly twice limit tracks.
// Results already in exclude are dropped as they arrive.
func (g *Gatherer) Gather(ctx context.Context, seeds domain.SeedSet, exclude domain.ExclusionSet, limit int) []domain.Track {
	pool := domain.NewCandidatePool(exclude)
	target := limit * gatherPoolMultiplier
	full := func() bool { return pool.Len() >= target }

	g.fromRelatedArtists(ctx, seeds.Artists, pool, full)
	if !full() {
		g.fromSeedTrackGenres(ctx, seeds.Tracks, pool, full)
	}
	if !full() {
		g.fromTopArtistGenres(ctx, seeds.Genres, pool, full)
	}

	g.log.Info().Int("candidates", pool.Len()).Int("target", target).Msg("candidate pool gathered")
	return pool.Tracks()
}

func (g *Gatherer) fromRelatedArtists(ctx context.Context, artists []domain.Artist, pool *domain.CandidatePool, full func() bool) {
	for i, seed := range artists {
		if i >= gatherSeedArtists || full() {
			return
		}

		var genre string
		if artist, err := g.catalog.GetArtist(ctx, seed.ID); err != nil {
			g.log.Warn().Err(err).Str("artist_id", seed.ID).Msg("gather: artist lookup failed")
		} else if len(artist.Genres) > 0 {
			genre = artist.Genres[0]
		}

		related, err := g.catalog.GetRelatedArtists(ctx, seed.ID)
		if err != nil {
			g.log.Warn().Err(err).Str("artist_id", seed.ID).Msg("gather: related artists failed")
			continue
		}

		for j, rel := range related {
			if j >= gatherRelatedArtists || full() {
				break
			}
			q := artistQuery(rel.Name, genre)
			g.search(ctx, q, pool)
		}
	}
}

func (g *Gatherer) fromSeedTrackGenres(ctx context.Context, tracks []domain.Track, pool *domain.CandidatePool, full func() bool) {
	for i, seed := range tracks {
		if i >= gatherSeedTracks || full() {
			return
		}
		primary, ok := seed.PrimaryArtist()
		if !ok {
			continue
		}

		artist, err := g.catalog.GetArtist(ctx, primary.ID)
		if err != nil {
			g.log.Warn().Err(err).Str("artist_id", primary.ID).Msg("gather: artist lookup failed")
			continue
		}
		if artist.Name == "" {
			artist.Name = primary.Name
		}

		for j, genre := range artist.Genres {
			if j >= gatherGenresPerTrack || full() {
				break
			}
			g.search(ctx, genreExcludingArtistQuery(genre, artist.Name), pool)
		}
	}
}

func (g *Gatherer) fromTopArtistGenres(ctx context.Context, seedGenres []string, pool *domain.CandidatePool, full func() bool) {
	genres := uniqueGenres(nil, seedGenres, gatherFallbackGenres)

	top, err := g.catalog.GetTopArtists(ctx, defaultTopArtistRange, gatherTopArtists)
	if err != nil {
		g.log.Warn().Err(err).Msg("gather: top artists failed")
	}
	for _, a := range top {
		genres = uniqueGenres(genres, a.Genres, gatherFallbackGenres)
	}

	for _, genre := range genres {
		if full() {
			return
		}
		g.search(ctx, genreQuery(genre), pool)
	}
}

func (g *Gatherer) search(ctx context.Context, query string, pool *domain.CandidatePool) {
	results, err := g.catalog.Search(ctx, query, "track", gatherSearchLimit)
	if err != nil {
		g.log.Warn().Err(err).Str("query", query).Msg("gather: search failed")
		return
	}
	added := pool.AddAll(results)
	g.log.Debug().Str("query", query).Int("results", len(results)).Int("added", added).Msg("gather: search")
}

func uniqueGenres(dst []string, src []string, limit int) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, g := range dst {
		seen[g] = struct{}{}
	}
	for _, g := range src {
		if len(dst) >= limit {
			break
		}
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		dst = append(dst, g)
	}
	return dst
}

func artistQuery(artist, genre string) string {
	q := fmt.Sprintf("artist:%q", artist)
	if genre != "" {
		q += fmt.Sprintf(" genre:%q", genre)
	}
	return q
}

func genreExcludingArtistQuery(genre, artist string) string {
	if artist == "" {
		return genreQuery(genre)
	}
	return fmt.Sprintf("genre:%q NOT artist:%q", genre, artist)
}

func genreQuery(genre string) string {
	return fmt.Sprintf("genre:%q", genre)
}
