package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodify/internal/core/domain"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// newScenario wires one top track "A" and one recent track "B" by distinct
// artists, and a search backend that answers every query with c00..c19.
func newScenario() (*mockCatalog, *mockHistory) {
	candidates := make([]domain.Track, 0, 20)
	for i := 0; i < 20; i++ {
		candidates = append(candidates, track(fmt.Sprintf("c%02d", i), 60, artist("other")))
	}
	cat := &mockCatalog{
		user:   domain.User{ID: "u1", DisplayName: "Test User"},
		top:    []domain.Track{track("A", 60, artist("a1"))},
		recent: []domain.Track{track("B", 70, artist("a2"))},
		artists: map[string]domain.Artist{
			"a1": {ID: "a1", Name: "Artist a1", Genres: []string{"indie"}},
			"a2": {ID: "a2", Name: "Artist a2", Genres: []string{"rock"}},
		},
		searchDefault: candidates,
	}
	return cat, &mockHistory{}
}

func newTestOrchestrator(cat *mockCatalog, hist *mockHistory, opts ...Option) *Orchestrator {
	base := []Option{
		WithMixer(NewMixer(rand.New(rand.NewSource(1)))),
		WithClock(func() time.Time { return fixedNow }),
	}
	o := NewOrchestrator(cat, hist, Settings{}, zerolog.Nop(), append(base, opts...)...)
	o.newID = func() string { return "run-1" }
	return o
}

func TestOrchestrator_Run_Live(t *testing.T) {
	cat, hist := newScenario()
	notifier := &mockNotifier{}
	obs := &recordingObserver{}
	o := newTestOrchestrator(cat, hist, WithNotifier(notifier), WithObserver(obs))

	res, err := o.Run(context.Background(), RunOptions{Tracks: 10})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantIDs := []string{"c00", "c01", "c02", "c03", "c04", "c05", "c06", "c07", "B"}
	if got := trackIDs(res.Tracks); !reflect.DeepEqual(got, wantIDs) {
		t.Errorf("tracks = %v, want %v", got, wantIDs)
	}
	if res.Name != "Weekly Discoveries - 2026-10-19" {
		t.Errorf("Name = %q", res.Name)
	}
	if res.PlaylistID != "pl-new" || res.URL != "https://open.spotify.com/playlist/pl-new" {
		t.Errorf("PlaylistID = %q, URL = %q", res.PlaylistID, res.URL)
	}
	if res.RunID != "run-1" {
		t.Errorf("RunID = %q", res.RunID)
	}
	if got := trackIDs(res.Seeds.Tracks); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("seed tracks = %v, want [A B]", got)
	}

	if len(cat.created) != 1 {
		t.Fatalf("CreatePlaylist called %d times, want 1", len(cat.created))
	}
	if len(cat.addedURIs) != len(wantIDs) || cat.addedURIs[0] != "spotify:track:c00" {
		t.Errorf("added URIs = %v", cat.addedURIs)
	}
	for _, b := range cat.addBatches {
		if b > 100 {
			t.Errorf("add batch size %d exceeds 100", b)
		}
	}

	if len(hist.records) != 1 {
		t.Fatalf("history records = %d, want 1", len(hist.records))
	}
	rec := hist.records[0]
	if rec.ID != "pl-new" || rec.Name != res.Name || !rec.CreatedAt.Equal(fixedNow) {
		t.Errorf("record = %+v", rec)
	}
	if !reflect.DeepEqual(rec.TrackIDs, wantIDs) {
		t.Errorf("record tracks = %v, want %v", rec.TrackIDs, wantIDs)
	}
	if got := rec.Metadata["seed_tracks"]; !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("metadata seed_tracks = %v", got)
	}
	if got := rec.Metadata["run_id"]; got != "run-1" {
		t.Errorf("metadata run_id = %v", got)
	}

	if len(notifier.subjects) != 1 || notifier.subjects[0] != "Your Weekly Spotify Playlist: "+res.Name {
		t.Errorf("notifications = %v", notifier.subjects)
	}
	if !strings.Contains(notifier.bodies[0], res.URL) || !strings.Contains(notifier.bodies[0], "1. Song c00 - Artist other") {
		t.Errorf("notification body missing link or preview:\n%s", notifier.bodies[0])
	}

	if len(obs.stats) != 1 || obs.stats[0].Stage != StageDone || obs.stats[0].Tracks != len(wantIDs) {
		t.Errorf("observed = %+v", obs.stats)
	}
}

func TestOrchestrator_Run_DryRun(t *testing.T) {
	liveCat, liveHist := newScenario()
	live, err := newTestOrchestrator(liveCat, liveHist).Run(context.Background(), RunOptions{Tracks: 10})
	if err != nil {
		t.Fatalf("live Run() error = %v", err)
	}

	cat, hist := newScenario()
	notifier := &mockNotifier{}
	o := newTestOrchestrator(cat, hist, WithNotifier(notifier))

	res, err := o.Run(context.Background(), RunOptions{Tracks: 10, DryRun: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.DryRun || res.PlaylistID != "" {
		t.Errorf("result = %+v", res)
	}
	if len(cat.created) != 0 || len(cat.addedURIs) != 0 {
		t.Error("dry run must not create or populate a playlist")
	}
	if len(hist.records) != 0 {
		t.Error("dry run must not append history")
	}
	if !reflect.DeepEqual(trackIDs(res.Tracks), trackIDs(live.Tracks)) {
		t.Errorf("dry run tracks = %v, live = %v", trackIDs(res.Tracks), trackIDs(live.Tracks))
	}
	if len(notifier.subjects) != 1 || !strings.HasPrefix(notifier.subjects[0], "[TEST] ") {
		t.Errorf("notifications = %v", notifier.subjects)
	}
}

func TestOrchestrator_Run_HistoryFilter(t *testing.T) {
	tests := []struct {
		name         string
		previous     []string
		wantIDs      []string
		wantExcluded int
	}{
		{
			name:         "previous tracks removed",
			previous:     []string{"c00", "c01", "c02", "c03"},
			wantIDs:      []string{"c04", "c05", "c06", "c07", "B"},
			wantExcluded: 4,
		},
		{
			name:         "everything filtered falls back to unfiltered",
			previous:     []string{"c00", "c01", "c02", "c03", "c04", "c05", "c06", "c07", "B"},
			wantIDs:      []string{"c00", "c01", "c02", "c03", "c04", "c05", "c06", "c07", "B"},
			wantExcluded: 9,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cat, hist := newScenario()
			hist.records = []domain.PlaylistRecord{{
				ID:        "old",
				Name:      "Weekly Discoveries - 2026-10-12",
				CreatedAt: fixedNow.AddDate(0, 0, -7),
				TrackIDs:  tc.previous,
			}}
			o := newTestOrchestrator(cat, hist)

			res, err := o.Run(context.Background(), RunOptions{Tracks: 10})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if got := trackIDs(res.Tracks); !reflect.DeepEqual(got, tc.wantIDs) {
				t.Errorf("tracks = %v, want %v", got, tc.wantIDs)
			}
			if res.ExcludedCount != tc.wantExcluded {
				t.Errorf("ExcludedCount = %d, want %d", res.ExcludedCount, tc.wantExcluded)
			}
			if res.FilterCount != len(tc.previous) {
				t.Errorf("FilterCount = %d, want %d", res.FilterCount, len(tc.previous))
			}
		})
	}
}

func TestOrchestrator_Run_Failures(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*mockCatalog)
		wantStage Stage
		wantErr   error
	}{
		{
			name:      "authentication failure",
			mutate:    func(c *mockCatalog) { c.userErr = errors.New("401 unauthorized") },
			wantStage: StageFetchListeningData,
		},
		{
			name: "no listening data",
			mutate: func(c *mockCatalog) {
				c.top = nil
				c.topErr = errors.New("503")
				c.recent = nil
			},
			wantStage: StageFetchListeningData,
			wantErr:   domain.ErrNoListeningData,
		},
		{
			name:      "no candidates",
			mutate:    func(c *mockCatalog) { c.searchDefault = nil },
			wantStage: StageGatherCandidates,
			wantErr:   domain.ErrNoCandidates,
		},
		{
			name:      "create playlist fails",
			mutate:    func(c *mockCatalog) { c.createErr = errors.New("403 forbidden") },
			wantStage: StageCreateAndPopulate,
		},
		{
			name:      "add tracks fails",
			mutate:    func(c *mockCatalog) { c.addErr = errors.New("500") },
			wantStage: StageCreateAndPopulate,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cat, hist := newScenario()
			tc.mutate(cat)
			notifier := &mockNotifier{}
			obs := &recordingObserver{}
			o := newTestOrchestrator(cat, hist, WithNotifier(notifier), WithObserver(obs))

			_, err := o.Run(context.Background(), RunOptions{Tracks: 10})
			if err == nil {
				t.Fatal("Run() error = nil, want failure")
			}
			var runErr *RunError
			if !errors.As(err, &runErr) {
				t.Fatalf("error %T is not *RunError", err)
			}
			if runErr.Stage != tc.wantStage {
				t.Errorf("stage = %s, want %s", runErr.Stage, tc.wantStage)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("error = %v, want %v", err, tc.wantErr)
			}
			if len(hist.records) != 0 {
				t.Error("failed run must not append history")
			}
			if len(notifier.subjects) != 1 || notifier.subjects[0] != failureSubject {
				t.Fatalf("notifications = %v, want one failure notice", notifier.subjects)
			}
			if !strings.Contains(notifier.bodies[0], "Stage: "+tc.wantStage.String()) {
				t.Errorf("failure body does not name the stage:\n%s", notifier.bodies[0])
			}
			if len(obs.stats) != 1 || obs.stats[0].Stage != StageFailed || obs.stats[0].Err == nil {
				t.Errorf("observed = %+v", obs.stats)
			}
		})
	}
}

func TestOrchestrator_Run_FailureNoticeIsBestEffort(t *testing.T) {
	cat, hist := newScenario()
	cat.searchDefault = nil
	notifier := &mockNotifier{err: errors.New("smtp down")}
	o := newTestOrchestrator(cat, hist, WithNotifier(notifier))

	_, err := o.Run(context.Background(), RunOptions{Tracks: 10})
	if !errors.Is(err, domain.ErrNoCandidates) {
		t.Fatalf("Run() error = %v, want the run failure, not the notifier's", err)
	}
	if len(notifier.subjects) != 1 || notifier.subjects[0] != failureSubject {
		t.Errorf("notifications = %v", notifier.subjects)
	}
}

func TestOrchestrator_Run_SideChannelFailuresAreNonFatal(t *testing.T) {
	cat, hist := newScenario()
	hist.appendErr = errors.New("disk full")
	notifier := &mockNotifier{err: errors.New("smtp down")}
	o := newTestOrchestrator(cat, hist, WithNotifier(notifier))

	res, err := o.Run(context.Background(), RunOptions{Tracks: 10, Name: "  My Mix  "})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.PlaylistID == "" {
		t.Error("expected playlist to be created")
	}
	if len(cat.created) != 1 || cat.created[0] != "My Mix" {
		t.Errorf("created = %v, want [My Mix]", cat.created)
	}
}

func TestIsDataAbsence(t *testing.T) {
	err := &RunError{Stage: StageGatherCandidates, Err: domain.ErrNoCandidates}
	if !IsDataAbsence(err) {
		t.Error("IsDataAbsence(no candidates) = false")
	}
	if IsDataAbsence(errors.New("other")) {
		t.Error("IsDataAbsence(other) = true")
	}
}
