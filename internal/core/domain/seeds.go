package domain

// MaxSeeds is the upstream limit on combined seed references.
const MaxSeeds = 5

// SeedSet is the ordered set of seed references used to bias candidate
// gathering. Len() never exceeds MaxSeeds.
type SeedSet struct {
	Tracks  []Track
	Artists []Artist
	Genres  []string
}

// NewSeedSet trims the inputs to MaxSeeds total, filling tracks first,
// then artists, then genres.
func NewSeedSet(tracks []Track, artists []Artist, genres []string) SeedSet {
	room := MaxSeeds
	take := func(n int) int {
		if n > room {
			n = room
		}
		room -= n
		return n
	}

	nt := take(len(tracks))
	na := take(len(artists))
	ng := take(len(genres))

	return SeedSet{
		Tracks:  append([]Track(nil), tracks[:nt]...),
		Artists: append([]Artist(nil), artists[:na]...),
		Genres:  append([]string(nil), genres[:ng]...),
	}
}

func (s SeedSet) Len() int {
	return len(s.Tracks) + len(s.Artists) + len(s.Genres)
}

func (s SeedSet) TrackIDs() []string {
	ids := make([]string, 0, len(s.Tracks))
	for _, t := range s.Tracks {
		ids = append(ids, t.ID)
	}
	return ids
}

func (s SeedSet) ArtistIDs() []string {
	ids := make([]string, 0, len(s.Artists))
	for _, a := range s.Artists {
		ids = append(ids, a.ID)
	}
	return ids
}
