package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodify/internal/core/domain"
	"github.com/ewilliams-labs/moodify/internal/core/ports"
	"github.com/ewilliams-labs/moodify/internal/logging"
)

const (
	DefaultTrackCount      = 20
	DefaultNamePrefix      = "Weekly Discoveries"
	DefaultTimeRange       = "short_term"
	DefaultListeningLimit  = 50
	DefaultHistoryLookback = 1
	DefaultPlaylistURLBase = "https://open.spotify.com/playlist/"

	previewTrackCount = 5
	failureSubject    = "Error: Spotify Playlist Generation Failed"
)

// Settings tunes the pipeline. Zero fields take the defaults above.
type Settings struct {
	MaxSeedTracks   int
	MaxSeedArtists  int
	TimeRange       string
	ListeningLimit  int
	HistoryLookback int
	NamePrefix      string
	PlaylistURLBase string
}

func (s Settings) withDefaults() Settings {
	if s.MaxSeedTracks <= 0 {
		s.MaxSeedTracks = DefaultMaxSeedTracks
	}
	if s.MaxSeedArtists <= 0 {
		s.MaxSeedArtists = DefaultMaxSeedArtists
	}
	if s.TimeRange == "" {
		s.TimeRange = DefaultTimeRange
	}
	if s.ListeningLimit <= 0 {
		s.ListeningLimit = DefaultListeningLimit
	}
	if s.HistoryLookback <= 0 {
		s.HistoryLookback = DefaultHistoryLookback
	}
	if s.NamePrefix == "" {
		s.NamePrefix = DefaultNamePrefix
	}
	if s.PlaylistURLBase == "" {
		s.PlaylistURLBase = DefaultPlaylistURLBase
	}
	return s
}

// RunOptions are the per-invocation choices made on the command line.
type RunOptions struct {
	Tracks int
	Name   string
	Public bool
	DryRun bool
}

// RunResult summarizes a finished run.
type RunResult struct {
	RunID         string
	PlaylistID    string
	Name          string
	URL           string
	Tracks        []domain.Track
	Seeds         domain.SeedSet
	FilterCount   int
	ExcludedCount int
	DryRun        bool
}

// RunError reports the stage at which a run failed.
type RunError struct {
	Stage Stage
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("service: run failed at %s: %v", e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Observer receives the outcome of every run.
type Observer interface {
	ObserveRun(stats RunStats)
}

// RunStats is what an Observer sees.
type RunStats struct {
	RunID      string
	Stage      Stage
	Candidates int
	Excluded   int
	Tracks     int
	DryRun     bool
	Duration   time.Duration
	Err        error
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithMixer replaces the clock-seeded mixer.
func WithMixer(m *Mixer) Option {
	return func(o *Orchestrator) { o.mixer = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithObserver registers a run observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithNotifier registers the notification channel.
func WithNotifier(n ports.Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// Orchestrator runs the discovery pipeline end to end.
type Orchestrator struct {
	catalog  ports.CatalogClient
	history  ports.HistoryStore
	notifier ports.Notifier
	observer Observer

	gatherer *Gatherer
	scorer   *Scorer
	mixer    *Mixer

	settings Settings
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(catalog ports.CatalogClient, history ports.HistoryStore, settings Settings, log zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		catalog:  catalog,
		history:  history,
		gatherer: NewGatherer(catalog, log),
		scorer:   NewScorer(catalog, log),
		settings: settings.withDefaults(),
		log:      logging.Component(log, "orchestrator"),
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.mixer == nil {
		o.mixer = NewMixer(nil)
	}
	return o
}

// Run executes one pass of the pipeline. A returned error is always a *RunError.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (RunResult, error) {
	started := o.now()
	if opts.Tracks <= 0 {
		opts.Tracks = DefaultTrackCount
	}

	runID := o.newID()
	r := &run{
		o:     o,
		opts:  opts,
		log:   o.log.With().Str("run_id", runID).Logger(),
		stats: RunStats{RunID: runID, DryRun: opts.DryRun},
	}

	res, err := r.execute(ctx)
	if err != nil {
		r.stats.Err = err
		r.log.Error().Err(err).Msg("playlist generation failed")
		r.stats.Stage = StageFailed
		r.notify(ctx, failureSubject, failureBody(err, o.now()))
	}
	res.RunID = runID
	r.stats.Duration = o.now().Sub(started)
	if o.observer != nil {
		o.observer.ObserveRun(r.stats)
	}
	return res, err
}

type run struct {
	o     *Orchestrator
	opts  RunOptions
	log   zerolog.Logger
	stats RunStats
}

func (r *run) enter(s Stage) {
	r.stats.Stage = s
	r.log.Debug().Stringer("stage", s).Msg("entering stage")
}

func (r *run) fail(err error) error {
	return &RunError{Stage: r.stats.Stage, Err: err}
}

func (r *run) execute(ctx context.Context) (RunResult, error) {
	o := r.o
	r.enter(StageInit)
	now := o.now()

	r.enter(StageFetchListeningData)
	user, err := o.catalog.CurrentUser(ctx)
	if err != nil {
		return RunResult{}, r.fail(fmt.Errorf("authenticate: %w", err))
	}
	top, err := o.catalog.GetTopTracks(ctx, o.settings.TimeRange, o.settings.ListeningLimit)
	if err != nil {
		r.log.Warn().Err(err).Msg("top tracks unavailable")
	}
	recent, err := o.catalog.GetRecentlyPlayed(ctx, o.settings.ListeningLimit)
	if err != nil {
		r.log.Warn().Err(err).Msg("recently played tracks unavailable")
	}
	if len(top) == 0 && len(recent) == 0 {
		return RunResult{}, r.fail(domain.ErrNoListeningData)
	}
	r.log.Info().Int("top", len(top)).Int("recent", len(recent)).Msg("listening data retrieved")

	r.enter(StageSelectSeeds)
	seeds := SelectSeeds(top, recent, o.settings.MaxSeedTracks, o.settings.MaxSeedArtists).SeedSet()
	r.log.Info().
		Strs("seed_tracks", seeds.TrackIDs()).
		Strs("seed_artists", seeds.ArtistIDs()).
		Msg("seeds selected")

	r.enter(StageGatherCandidates)
	exclude := o.gatherer.BuildExclusionSet(ctx, user)
	pool := o.gatherer.Gather(ctx, seeds, exclude, r.opts.Tracks)
	r.stats.Candidates = len(pool)
	if len(pool) == 0 {
		return RunResult{}, r.fail(domain.ErrNoCandidates)
	}

	r.enter(StageScoreAndMix)
	ranked := o.scorer.Rank(ctx, pool, seeds.Tracks)
	mixed := o.mixer.Mix(ranked, recent, r.opts.Tracks)

	r.enter(StageFilterAgainstHistory)
	previous := r.previousTrackIDs(ctx)
	final := truncate(excludeTracks(mixed, previous), r.opts.Tracks)
	excluded := len(mixed) - len(excludeTracks(mixed, previous))
	if len(final) == 0 {
		r.log.Warn().Msg("no tracks left after history filter; using unfiltered recommendations")
		final = truncate(mixed, r.opts.Tracks)
	}
	r.stats.Excluded = excluded
	r.stats.Tracks = len(final)

	res := RunResult{
		Name:          r.playlistName(now),
		Tracks:        final,
		Seeds:         seeds,
		FilterCount:   previous.Len(),
		ExcludedCount: excluded,
		DryRun:        r.opts.DryRun,
	}
	description := fmt.Sprintf("Personalized music discoveries based on your listening profile. Created on %s.", now.Format(time.DateOnly))

	if r.opts.DryRun {
		r.enter(StageDryRunReport)
		r.log.Info().Str("name", res.Name).Int("tracks", len(final)).Msg("DRY RUN: would create playlist")
		for i, t := range final {
			r.log.Info().Msgf("  %d. %s", i+1, trackLine(t))
		}
		r.notify(ctx, "[TEST] Your Weekly Spotify Playlist: "+res.Name, dryRunBody(res, now))
		r.enter(StageDone)
		return res, nil
	}

	r.enter(StageCreateAndPopulate)
	playlistID, err := o.catalog.CreatePlaylist(ctx, user.ID, res.Name, description, r.opts.Public)
	if err != nil {
		return RunResult{}, r.fail(fmt.Errorf("create playlist: %w", err))
	}
	uris := make([]string, 0, len(final))
	for _, t := range final {
		uris = append(uris, t.TrackURI())
	}
	if err := o.catalog.AddTracks(ctx, playlistID, uris, ports.MaxAddTrackBatch); err != nil {
		return RunResult{}, r.fail(fmt.Errorf("add tracks to %s: %w", playlistID, err))
	}
	res.PlaylistID = playlistID
	res.URL = o.settings.PlaylistURLBase + playlistID

	r.enter(StageRecordHistory)
	r.record(ctx, res, now)

	r.log.Info().Str("playlist_id", playlistID).Str("name", res.Name).Str("url", res.URL).Msg("playlist created")
	r.notify(ctx, "Your Weekly Spotify Playlist: "+res.Name, createdBody(res, now))
	r.enter(StageDone)
	return res, nil
}

func (r *run) previousTrackIDs(ctx context.Context) domain.ExclusionSet {
	previous := domain.NewExclusionSet()
	records, err := r.o.history.MostRecent(ctx, r.o.settings.HistoryLookback)
	if err != nil {
		r.log.Warn().Err(err).Msg("history unavailable; skipping history filter")
		return previous
	}
	for _, rec := range records {
		previous.Add(rec.TrackIDs...)
	}
	r.log.Info().Int("playlists", len(records)).Int("tracks", previous.Len()).Msg("previous playlist tracks loaded")
	return previous
}

// record appends the history entry. The remote playlist already exists at
// this point, so a failed write is logged rather than failing the run.
func (r *run) record(ctx context.Context, res RunResult, now time.Time) {
	ids := make([]string, 0, len(res.Tracks))
	for _, t := range res.Tracks {
		ids = append(ids, t.ID)
	}
	rec, err := domain.NewPlaylistRecord(res.PlaylistID, res.Name, now, ids)
	if err != nil {
		r.log.Error().Err(err).Msg("invalid history record")
		return
	}
	rec.Metadata = map[string]any{
		"seed_tracks":    res.Seeds.TrackIDs(),
		"seed_artists":   res.Seeds.ArtistIDs(),
		"filter_count":   res.FilterCount,
		"excluded_count": res.ExcludedCount,
		"run_id":         r.stats.RunID,
	}
	if err := r.o.history.Append(ctx, *rec); err != nil {
		r.log.Error().Err(err).Str("playlist_id", res.PlaylistID).Msg("failed to record playlist history")
		return
	}
	r.log.Info().Str("playlist_id", res.PlaylistID).Msg("playlist recorded in history")
}

func (r *run) notify(ctx context.Context, subject, body string) {
	if r.o.notifier == nil {
		r.log.Debug().Msg("notification channel not configured")
		return
	}
	if err := r.o.notifier.Notify(ctx, subject, body); err != nil {
		r.log.Warn().Err(err).Msg("notification not sent")
		return
	}
	r.log.Info().Msg("notification sent")
}

func (r *run) playlistName(now time.Time) string {
	if name := strings.TrimSpace(r.opts.Name); name != "" {
		return name
	}
	return fmt.Sprintf("%s - %s", r.o.settings.NamePrefix, now.Format(time.DateOnly))
}

func excludeTracks(tracks []domain.Track, exclude domain.ExclusionSet) []domain.Track {
	out := make([]domain.Track, 0, len(tracks))
	seen := make(map[string]struct{}, len(tracks))
	for _, t := range tracks {
		if exclude.Contains(t.ID) {
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}

func truncate(tracks []domain.Track, n int) []domain.Track {
	if len(tracks) > n {
		return tracks[:n]
	}
	return tracks
}

func trackLine(t domain.Track) string {
	return fmt.Sprintf("%s - %s", t.Name, strings.Join(t.ArtistNames(), ", "))
}

func trackPreview(tracks []domain.Track) string {
	var b strings.Builder
	for i, t := range truncate(tracks, previewTrackCount) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, trackLine(t))
	}
	return b.String()
}

func createdBody(res RunResult, now time.Time) string {
	return fmt.Sprintf(`Your weekly Spotify playlist %q has been created!

Playlist Details:
- %d tracks of fresh music discoveries
- Created on %s

Featured tracks:
%s
Listen to your playlist here:
%s

Enjoy your music discoveries!
`, res.Name, len(res.Tracks), now.Format(time.DateOnly), trackPreview(res.Tracks), res.URL)
}

func dryRunBody(res RunResult, now time.Time) string {
	return fmt.Sprintf(`This is a TEST email - No playlist was actually created.

Your weekly Spotify playlist %q would have been created!

Playlist Details:
- %d tracks of fresh music discoveries
- Test run on %s

Featured tracks:
%s
Enjoy your music discoveries!
`, res.Name, len(res.Tracks), now.Format(time.DateOnly), trackPreview(res.Tracks))
}

func failureBody(err error, now time.Time) string {
	stage, cause := StageFailed, err
	var runErr *RunError
	if errors.As(err, &runErr) {
		stage, cause = runErr.Stage, runErr.Err
	}
	return fmt.Sprintf(`There was an error creating your weekly Spotify playlist.

Error: %v
Stage: %s
Time: %s

No playlist was recorded for this run.
`, cause, stage, now.Format("2006-01-02 15:04"))
}

// IsDataAbsence reports whether err is a critical data-absence failure.
func IsDataAbsence(err error) bool {
	return errors.Is(err, domain.ErrNoListeningData) || errors.Is(err, domain.ErrNoCandidates)
}
