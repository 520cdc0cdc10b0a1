// Package metrics records generator runs as Prometheus metrics.
//
// moodify runs as a short-lived job, so nothing is served over HTTP. The
// registry is written to a node-exporter textfile after each run instead.
package metrics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodify/internal/core/services"
	"github.com/ewilliams-labs/moodify/internal/logging"
)

const namespace = "moodify"

// Outcome labels for moodify_runs_total.
const (
	OutcomeSuccess = "success"
	OutcomeDryRun  = "dry_run"
	OutcomeFailure = "failure"
)

// Recorder implements services.Observer on a private registry.
type Recorder struct {
	registry *prometheus.Registry
	log      zerolog.Logger

	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	candidates     prometheus.Gauge
	excluded       prometheus.Gauge
	tracks         prometheus.Gauge
	lastSuccess    prometheus.Gauge
	lastFailedStep *prometheus.GaugeVec
}

var _ services.Observer = (*Recorder)(nil)

// NewRecorder registers the run metrics on a fresh registry.
func NewRecorder(log zerolog.Logger) *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		log:      logging.Component(log, "metrics"),

		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of generator runs by outcome",
		}, []string{"outcome"}),

		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of a generator run",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
		}),

		candidates: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "candidates",
			Help:      "Candidate tracks gathered in the last run",
		}),

		excluded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "excluded_tracks",
			Help:      "Tracks excluded as already known in the last run",
		}),

		tracks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "playlist_tracks",
			Help:      "Tracks in the last generated playlist",
		}),

		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),

		lastFailedStep: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_failure_stage",
			Help:      "Set to 1 for the stage at which the last failed run stopped",
		}, []string{"stage"}),
	}
}

// ObserveRun records one finished run.
func (r *Recorder) ObserveRun(stats services.RunStats) {
	r.runDuration.Observe(stats.Duration.Seconds())
	r.candidates.Set(float64(stats.Candidates))
	r.excluded.Set(float64(stats.Excluded))
	r.tracks.Set(float64(stats.Tracks))

	switch {
	case stats.Err != nil:
		r.runsTotal.WithLabelValues(OutcomeFailure).Inc()
		r.lastFailedStep.Reset()
		r.lastFailedStep.WithLabelValues(failedStage(stats).String()).Set(1)
	case stats.DryRun:
		r.runsTotal.WithLabelValues(OutcomeDryRun).Inc()
	default:
		r.runsTotal.WithLabelValues(OutcomeSuccess).Inc()
		r.lastSuccess.SetToCurrentTime()
		r.lastFailedStep.Reset()
	}
}

func failedStage(stats services.RunStats) services.Stage {
	var runErr *services.RunError
	if errors.As(stats.Err, &runErr) {
		return runErr.Stage
	}
	return stats.Stage
}

// WriteTextfile writes the registry in the text exposition format. The
// parent directory is created if needed.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics: create dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("metrics: write textfile: %w", err)
	}
	r.log.Debug().Str("path", path).Msg("metrics textfile written")
	return nil
}
