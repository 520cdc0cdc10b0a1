package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/ewilliams-labs/moodify/internal/adapters/email"
	"github.com/ewilliams-labs/moodify/internal/adapters/jsonfile"
	"github.com/ewilliams-labs/moodify/internal/adapters/rest"
	"github.com/ewilliams-labs/moodify/internal/adapters/spotify"
	"github.com/ewilliams-labs/moodify/internal/adapters/sqlite"
	"github.com/ewilliams-labs/moodify/internal/config"
	"github.com/ewilliams-labs/moodify/internal/core/domain"
	"github.com/ewilliams-labs/moodify/internal/core/ports"
	"github.com/ewilliams-labs/moodify/internal/core/services"
	"github.com/ewilliams-labs/moodify/internal/logging"
	"github.com/ewilliams-labs/moodify/internal/metrics"
)

const resultPreview = 5

func overridesFrom(c *cli.Context) config.Overrides {
	o := config.Overrides{
		ConfigPath:   c.String("config"),
		ClientID:     c.String("client-id"),
		ClientSecret: c.String("client-secret"),
		RefreshToken: c.String("refresh-token"),
		LogLevel:     c.String("log-level"),
	}
	if c.IsSet("tracks") {
		o.Tracks = c.Int("tracks")
	}
	if c.IsSet("public") {
		public := c.Bool("public")
		o.Public = &public
	}
	return o
}

func setup(c *cli.Context) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(overridesFrom(c))
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	return cfg, log, nil
}

// openHistory picks the history backend named by cfg.Driver.
func openHistory(cfg config.HistoryConfig, log zerolog.Logger) (ports.HistoryStore, func() error, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := sqlite.NewAdapter(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open history database: %w", err)
		}
		return db, db.Close, nil
	case "json", "":
		store, err := jsonfile.NewStore(cfg.Path, log)
		if err != nil {
			return nil, nil, fmt.Errorf("open history file: %w", err)
		}
		return store, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown history driver: %s", cfg.Driver)
	}
}

func newAuthenticator(cfg *config.Config, log zerolog.Logger) *spotify.Authenticator {
	return spotify.NewAuthenticator(spotify.AuthConfig{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RedirectURI:  cfg.Spotify.RedirectURI,
		RefreshToken: cfg.Spotify.RefreshToken,
		TokenCache:   cfg.Spotify.TokenCache,
		AuthURL:      cfg.Spotify.AuthURL,
		TokenURL:     cfg.Spotify.TokenURL,
	}, &http.Client{Timeout: cfg.Spotify.Timeout}, log)
}

func newNotifier(cfg config.NotifyConfig, log zerolog.Logger) ports.Notifier {
	if !cfg.Enabled() {
		log.Debug().Msg("email notifications not configured")
		return nil
	}
	n, err := email.NewNotifier(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
		To:       cfg.To,
		StartTLS: true,
	}, log)
	if err != nil {
		log.Warn().Err(err).Msg("email notifications disabled")
		return nil
	}
	return n
}

func generateAction(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	if err := cfg.RequireCredentials(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. History store
	history, closeHistory, err := openHistory(cfg.History, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeHistory(); err != nil {
			log.Warn().Err(err).Msg("close history store")
		}
	}()

	// 2. Spotify adapter
	httpClient, err := newAuthenticator(cfg, log).HTTPClient(ctx, cfg.Spotify.Timeout)
	if err != nil {
		return err
	}
	client := spotify.NewClient(httpClient, spotify.Config{
		BaseURL:           cfg.Spotify.APIBaseURL,
		Market:            cfg.Spotify.Market,
		MaxRetries:        cfg.Spotify.MaxRetries,
		RetryBackoff:      cfg.Spotify.RetryBackoff,
		RequestsPerSecond: cfg.Spotify.RequestsPerSecond,
	}, log)

	// 3. Core
	recorder := metrics.NewRecorder(log)
	opts := []services.Option{services.WithObserver(recorder)}
	if n := newNotifier(cfg.Notify, log); n != nil {
		opts = append(opts, services.WithNotifier(n))
	}

	svc := services.NewOrchestrator(client, history, services.Settings{
		MaxSeedTracks:   cfg.Discovery.MaxSeedTracks,
		MaxSeedArtists:  cfg.Discovery.MaxSeedArtists,
		TimeRange:       cfg.Discovery.TimeRange,
		ListeningLimit:  cfg.Discovery.ListeningLimit,
		HistoryLookback: cfg.History.Lookback,
		NamePrefix:      cfg.Playlist.NamePrefix,
	}, log, opts...)

	res, runErr := svc.Run(ctx, services.RunOptions{
		Tracks: cfg.Playlist.Tracks,
		Name:   c.String("name"),
		Public: cfg.Playlist.Public,
		DryRun: c.Bool("dry-run"),
	})

	if err := recorder.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		log.Warn().Err(err).Msg("metrics not written")
	}
	if runErr != nil {
		return runFailure(runErr)
	}

	printResult(c.App.Writer, res)
	return nil
}

// runFailure adds a hint for failures caused by missing listening data,
// which a retry will not fix.
func runFailure(err error) error {
	if services.IsDataAbsence(err) {
		return fmt.Errorf("%w (listen to more music on this account, or widen discovery.time_range)", err)
	}
	return err
}

func printResult(w io.Writer, res services.RunResult) {
	if res.DryRun {
		fmt.Fprintf(w, "Dry run: %q would contain %d tracks\n", res.Name, len(res.Tracks))
	} else {
		fmt.Fprintf(w, "Created %q with %d tracks\n%s\n", res.Name, len(res.Tracks), res.URL)
	}
	for i, t := range res.Tracks {
		if i >= resultPreview {
			fmt.Fprintf(w, "  ... and %d more\n", len(res.Tracks)-resultPreview)
			break
		}
		fmt.Fprintf(w, "  %d. %s - %s\n", i+1, t.Name, strings.Join(t.ArtistNames(), ", "))
	}
}

func authAction(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	if err := cfg.RequireCredentials(); err != nil {
		return err
	}

	redirect, err := url.Parse(cfg.Spotify.RedirectURI)
	if err != nil || redirect.Host == "" {
		return fmt.Errorf("invalid redirect uri %q", cfg.Spotify.RedirectURI)
	}
	if redirect.Path != "/callback" {
		log.Warn().Str("redirect_uri", cfg.Spotify.RedirectURI).Msg("callback is served at /callback; redirect uri path differs")
	}

	auth := newAuthenticator(cfg, log)
	state := spotify.NewState()
	handler := rest.NewHandler(auth, state, log)

	srv := &http.Server{
		Addr:              redirect.Host,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	fmt.Fprintf(c.App.Writer, "Open this URL in your browser to authorize moodify:\n\n  %s\n\n", auth.AuthCodeURL(state))
	log.Info().Str("addr", redirect.Host).Msg("waiting for authorization callback")

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var result error
	select {
	case err := <-serverErr:
		result = err
	case err := <-handler.Done():
		result = err
	case <-ctx.Done():
		result = errors.New("authorization cancelled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown error")
	}

	if result != nil {
		return result
	}
	fmt.Fprintf(c.App.Writer, "Authorized. Token cached at %s\n", cfg.Spotify.TokenCache)
	return nil
}

func historyAction(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}

	history, closeHistory, err := openHistory(cfg.History, log)
	if err != nil {
		return err
	}
	defer closeHistory()

	records, err := history.MostRecent(c.Context, c.Int("count"))
	if err != nil {
		return err
	}
	printHistory(c.App.Writer, records)
	return nil
}

func printHistory(w io.Writer, records []domain.PlaylistRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No playlists generated yet.")
		return
	}
	for _, rec := range records {
		fmt.Fprintf(w, "%s  %-40s %3d tracks  %s\n",
			rec.CreatedAt.Local().Format("2006-01-02 15:04"), rec.Name, len(rec.TrackIDs), rec.ID)
	}
}
