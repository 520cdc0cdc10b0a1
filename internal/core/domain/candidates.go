package domain

// ExclusionSet holds identifiers of tracks the user already knows.
// It is built once per run and only read afterwards.
type ExclusionSet struct {
	ids map[string]struct{}
}

func NewExclusionSet(ids ...string) ExclusionSet {
	s := ExclusionSet{ids: make(map[string]struct{}, len(ids))}
	s.Add(ids...)
	return s
}

func (s ExclusionSet) Add(ids ...string) {
	for _, id := range ids {
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}
}

func (s ExclusionSet) AddTracks(tracks []Track) {
	for _, t := range tracks {
		s.Add(t.ID)
	}
}

// Contains reports whether id is excluded. The zero value excludes nothing.
func (s ExclusionSet) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s ExclusionSet) Len() int {
	return len(s.ids)
}

// CandidatePool is an insertion-ordered set of tracks keyed by ID.
// No member is ever in the pool's exclusion set.
type CandidatePool struct {
	exclude ExclusionSet
	seen    map[string]struct{}
	tracks  []Track
}

func NewCandidatePool(exclude ExclusionSet) *CandidatePool {
	return &CandidatePool{
		exclude: exclude,
		seen:    make(map[string]struct{}),
	}
}

// Add inserts t unless it is excluded or already present; first occurrence wins.
func (p *CandidatePool) Add(t Track) bool {
	if t.ID == "" || p.exclude.Contains(t.ID) {
		return false
	}
	if _, dup := p.seen[t.ID]; dup {
		return false
	}
	p.seen[t.ID] = struct{}{}
	p.tracks = append(p.tracks, t)
	return true
}

// AddAll inserts every track and returns how many were accepted.
func (p *CandidatePool) AddAll(tracks []Track) int {
	added := 0
	for _, t := range tracks {
		if p.Add(t) {
			added++
		}
	}
	return added
}

func (p *CandidatePool) Len() int {
	return len(p.tracks)
}

// Tracks returns the pool members in insertion order.
func (p *CandidatePool) Tracks() []Track {
	out := make([]Track, len(p.tracks))
	copy(out, p.tracks)
	return out
}

// ScoredCandidate pairs a track with its ranking score.
type ScoredCandidate struct {
	Track Track
	Score float64
}
