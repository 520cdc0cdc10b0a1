// Package config loads moodify settings.
//
// Sources are layered lowest to highest priority: built-in defaults, a YAML
// file, environment variables (a .env file in the working directory is
// loaded first), and finally explicit command-line overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names the variable that points at a YAML config file.
const ConfigPathEnvVar = "CONFIG_PATH"

// EnvPrefix marks moodify-specific environment variables,
// e.g. MOODIFY_PLAYLIST_TRACKS -> playlist.tracks.
const EnvPrefix = "MOODIFY_"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"moodify.yaml",
	"moodify.yml",
	"config/moodify.yaml",
}

// Config is the full application configuration.
type Config struct {
	Spotify   SpotifyConfig   `koanf:"spotify"`
	History   HistoryConfig   `koanf:"history"`
	Playlist  PlaylistConfig  `koanf:"playlist"`
	Discovery DiscoveryConfig `koanf:"discovery"`
	Notify    NotifyConfig    `koanf:"notify"`
	Logging   LoggingConfig   `koanf:"logging"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

// SpotifyConfig holds API credentials and client tuning.
type SpotifyConfig struct {
	ClientID          string        `koanf:"client_id"`
	ClientSecret      string        `koanf:"client_secret"`
	RedirectURI       string        `koanf:"redirect_uri" validate:"omitempty,url"`
	RefreshToken      string        `koanf:"refresh_token"`
	TokenCache        string        `koanf:"token_cache"`
	APIBaseURL        string        `koanf:"api_base_url" validate:"required,url"`
	AuthURL           string        `koanf:"auth_url" validate:"required,url"`
	TokenURL          string        `koanf:"token_url" validate:"required,url"`
	Market            string        `koanf:"market" validate:"omitempty,len=2"`
	MaxRetries        int           `koanf:"max_retries" validate:"gte=0,lte=10"`
	RetryBackoff      time.Duration `koanf:"retry_backoff" validate:"gte=0"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"gte=0"`
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
}

// HistoryConfig selects the playlist history backend.
type HistoryConfig struct {
	Driver   string `koanf:"driver" validate:"oneof=json sqlite"`
	Path     string `koanf:"path" validate:"required"`
	Lookback int    `koanf:"lookback" validate:"gte=1"`
}

// PlaylistConfig holds defaults for generated playlists.
type PlaylistConfig struct {
	Tracks     int    `koanf:"tracks" validate:"gte=1,lte=100"`
	Public     bool   `koanf:"public"`
	NamePrefix string `koanf:"name_prefix" validate:"required"`
}

// DiscoveryConfig tunes seed selection.
type DiscoveryConfig struct {
	MaxSeedTracks  int    `koanf:"max_seed_tracks" validate:"gte=1,lte=5"`
	MaxSeedArtists int    `koanf:"max_seed_artists" validate:"gte=1,lte=5"`
	TimeRange      string `koanf:"time_range" validate:"oneof=short_term medium_term long_term"`
	ListeningLimit int    `koanf:"listening_limit" validate:"gte=1,lte=50"`
}

// NotifyConfig configures the optional email notifier.
// Notifications are disabled unless both From and To are set.
type NotifyConfig struct {
	SMTPHost string `koanf:"smtp_host"`
	SMTPPort int    `koanf:"smtp_port" validate:"gte=0,lte=65535"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from" validate:"omitempty,email"`
	To       string `koanf:"to" validate:"omitempty,email"`
}

// Enabled reports whether enough is set to send mail.
func (n NotifyConfig) Enabled() bool {
	return n.From != "" && n.To != ""
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// MetricsConfig controls run metrics export.
type MetricsConfig struct {
	// Textfile is a node-exporter textfile path; empty disables export.
	Textfile string `koanf:"textfile"`
}

// Overrides are values given explicitly on the command line. Zero values
// (and nil pointers) leave the loaded configuration untouched.
type Overrides struct {
	ConfigPath   string
	ClientID     string
	ClientSecret string
	RefreshToken string
	LogLevel     string
	Tracks       int
	Public       *bool
}

func defaultConfig() Config {
	return Config{
		Spotify: SpotifyConfig{
			RedirectURI:       "http://127.0.0.1:8888/callback",
			TokenCache:        ".moodify-token.json",
			APIBaseURL:        "https://api.spotify.com/v1",
			AuthURL:           "https://accounts.spotify.com/authorize",
			TokenURL:          "https://accounts.spotify.com/api/token",
			Market:            "US",
			MaxRetries:        3,
			RetryBackoff:      500 * time.Millisecond,
			RequestsPerSecond: 5,
			Timeout:           15 * time.Second,
		},
		History: HistoryConfig{
			Driver:   "json",
			Path:     "playlist_history.json",
			Lookback: 1,
		},
		Playlist: PlaylistConfig{
			Tracks:     20,
			NamePrefix: "Weekly Discoveries",
		},
		Discovery: DiscoveryConfig{
			MaxSeedTracks:  3,
			MaxSeedArtists: 2,
			TimeRange:      "short_term",
			ListeningLimit: 50,
		},
		Notify: NotifyConfig{
			SMTPHost: "smtp.gmail.com",
			SMTPPort: 587,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration from every source and validates it.
func Load(o Overrides) (*Config, error) {
	// A missing .env file is the common case.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	path := o.ConfigPath
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}
	if err := applyLegacyBackoff(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.apply(o)
	if cfg.Notify.From == "" && strings.Contains(cfg.Notify.Username, "@") {
		cfg.Notify.From = cfg.Notify.Username
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) apply(o Overrides) {
	if o.ClientID != "" {
		c.Spotify.ClientID = o.ClientID
	}
	if o.ClientSecret != "" {
		c.Spotify.ClientSecret = o.ClientSecret
	}
	if o.RefreshToken != "" {
		c.Spotify.RefreshToken = o.RefreshToken
	}
	if o.LogLevel != "" {
		c.Logging.Level = strings.ToLower(o.LogLevel)
	}
	if o.Tracks > 0 {
		c.Playlist.Tracks = o.Tracks
	}
	if o.Public != nil {
		c.Playlist.Public = *o.Public
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("config: validate: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("config: invalid configuration: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// RequireCredentials reports whether the app credentials are present.
func (c *Config) RequireCredentials() error {
	var missing []string
	if c.Spotify.ClientID == "" {
		missing = append(missing, "SPOTIFY_CLIENT_ID")
	}
	if c.Spotify.ClientSecret == "" {
		missing = append(missing, "SPOTIFY_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// legacyEnv maps variable names used by earlier deployments of the job.
var legacyEnv = map[string]string{
	"spotify_client_id":     "spotify.client_id",
	"spotify_client_secret": "spotify.client_secret",
	"spotify_redirect_uri":  "spotify.redirect_uri",
	"spotify_refresh_token": "spotify.refresh_token",
	"spotify_max_retries":   "spotify.max_retries",

	"gmail_user":                 "notify.username",
	"gmail_app_password":         "notify.password",
	"notification_email":         "notify.to",
	"notification_smtp_server":   "notify.smtp_host",
	"notification_smtp_port":     "notify.smtp_port",
	"notification_smtp_username": "notify.username",
	"notification_smtp_password": "notify.password",
	"notification_from_email":    "notify.from",
	"notification_to_email":      "notify.to",
}

// sections are the top-level keys reachable through MOODIFY_ variables.
var sections = []string{"spotify", "history", "playlist", "discovery", "notify", "logging", "metrics"}

// envTransformFunc maps an environment variable name to a config key.
// Unknown variables return "" and are ignored.
//
//   - SPOTIFY_CLIENT_ID            -> spotify.client_id
//   - MOODIFY_PLAYLIST_NAME_PREFIX -> playlist.name_prefix
func envTransformFunc(key string) string {
	lower := strings.ToLower(key)
	if mapped, ok := legacyEnv[lower]; ok {
		return mapped
	}

	if !strings.HasPrefix(key, EnvPrefix) {
		return ""
	}
	rest := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	for _, s := range sections {
		if strings.HasPrefix(rest, s+"_") {
			return s + "." + strings.TrimPrefix(rest, s+"_")
		}
	}
	return ""
}

// applyLegacyBackoff honours SPOTIFY_RETRY_BACKOFF_MS, which older
// deployments set as a bare millisecond count.
func applyLegacyBackoff(k *koanf.Koanf) error {
	raw := strings.TrimSpace(os.Getenv("SPOTIFY_RETRY_BACKOFF_MS"))
	if raw == "" {
		return nil
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms < 0 {
		return fmt.Errorf("config: SPOTIFY_RETRY_BACKOFF_MS must be a non-negative integer, got %q", raw)
	}
	if err := k.Set("spotify.retry_backoff", (time.Duration(ms) * time.Millisecond).String()); err != nil {
		return fmt.Errorf("config: set spotify.retry_backoff: %w", err)
	}
	return nil
}
