package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodify/internal/config"
	"github.com/ewilliams-labs/moodify/internal/core/domain"
	"github.com/ewilliams-labs/moodify/internal/core/services"
)

func TestOpenHistory(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.HistoryConfig
		wantErr bool
	}{
		{name: "json", cfg: config.HistoryConfig{Driver: "json", Path: filepath.Join(dir, "history.json")}},
		{name: "sqlite", cfg: config.HistoryConfig{Driver: "sqlite", Path: filepath.Join(dir, "history.db")}},
		{name: "unknown", cfg: config.HistoryConfig{Driver: "postgres", Path: "x"}, wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			store, closeFn, err := openHistory(tc.cfg, zerolog.Nop())
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("openHistory: %v", err)
			}
			defer closeFn()

			ctx := context.Background()
			rec := domain.PlaylistRecord{
				ID:        "pl-1",
				Name:      "Weekly Discoveries - 2026-10-19",
				CreatedAt: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
				TrackIDs:  []string{"a", "b"},
			}
			if err := store.Append(ctx, rec); err != nil {
				t.Fatalf("Append: %v", err)
			}
			got, err := store.MostRecent(ctx, 1)
			if err != nil {
				t.Fatalf("MostRecent: %v", err)
			}
			if len(got) != 1 || got[0].ID != "pl-1" || len(got[0].TrackIDs) != 2 {
				t.Errorf("MostRecent = %+v", got)
			}
		})
	}
}

func TestPrintResult(t *testing.T) {
	tracks := make([]domain.Track, 7)
	for i := range tracks {
		tracks[i] = domain.Track{
			ID:      string(rune('a' + i)),
			Name:    "Song " + string(rune('A'+i)),
			Artists: []domain.Artist{{Name: "Band"}, {Name: "Guest"}},
		}
	}

	tests := []struct {
		name string
		res  services.RunResult
		want []string
	}{
		{
			name: "created",
			res:  services.RunResult{Name: "Weekly", URL: "https://open.spotify.com/playlist/p1", Tracks: tracks},
			want: []string{`Created "Weekly" with 7 tracks`, "https://open.spotify.com/playlist/p1", "1. Song A - Band, Guest", "... and 2 more"},
		},
		{
			name: "dry run",
			res:  services.RunResult{Name: "Weekly", Tracks: tracks[:2], DryRun: true},
			want: []string{`Dry run: "Weekly" would contain 2 tracks`, "2. Song B - Band, Guest"},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			printResult(&buf, tc.res)
			out := buf.String()
			for _, w := range tc.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestPrintHistoryEmpty(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, nil)
	if !strings.Contains(buf.String(), "No playlists") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestAppCommands(t *testing.T) {
	app := newApp()
	want := map[string]bool{"generate": false, "auth": false, "history": false}
	for _, cmd := range app.Commands {
		if _, ok := want[cmd.Name]; ok {
			want[cmd.Name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestRunFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantHint bool
	}{
		{name: "no listening data", err: &services.RunError{Stage: services.StageFetchListeningData, Err: domain.ErrNoListeningData}, wantHint: true},
		{name: "no candidates", err: &services.RunError{Stage: services.StageGatherCandidates, Err: domain.ErrNoCandidates}, wantHint: true},
		{name: "write failure", err: &services.RunError{Stage: services.StageCreateAndPopulate, Err: errors.New("403")}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := runFailure(tc.err)
			if !errors.Is(got, tc.err) {
				t.Fatalf("runFailure() = %v, want it to wrap %v", got, tc.err)
			}
			if hint := strings.Contains(got.Error(), "discovery.time_range"); hint != tc.wantHint {
				t.Errorf("hint present = %v, want %v: %v", hint, tc.wantHint, got)
			}
		})
	}
}
