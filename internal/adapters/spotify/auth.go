package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/moodify/internal/logging"
)

const (
	DefaultAuthURL  = "https://accounts.spotify.com/authorize"
	DefaultTokenURL = "https://accounts.spotify.com/api/token"
)

// Scopes are the permissions the pipeline needs.
var Scopes = []string{
	"user-read-private",
	"user-top-read",
	"user-read-recently-played",
	"user-library-read",
	"playlist-read-private",
	"playlist-modify-public",
	"playlist-modify-private",
}

// ErrNoCredentials means neither a cached token nor a refresh token is available.
var ErrNoCredentials = errors.New("spotify adapter: no cached token or refresh token; run `moodify auth` first")

// AuthConfig holds the OAuth client settings.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	RefreshToken string
	// TokenCache is a file path; empty disables the cache.
	TokenCache string
	AuthURL    string
	TokenURL   string
}

// Authenticator obtains and persists user tokens.
type Authenticator struct {
	oauth      *oauth2.Config
	refresh    string
	cachePath  string
	log        zerolog.Logger
	httpClient *http.Client
}

// NewAuthenticator constructs an Authenticator. httpClient is used for token
// endpoint calls; nil selects http.DefaultClient.
func NewAuthenticator(cfg AuthConfig, httpClient *http.Client, log zerolog.Logger) *Authenticator {
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Authenticator{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		refresh:    cfg.RefreshToken,
		cachePath:  cfg.TokenCache,
		log:        logging.Component(log, "spotify-auth"),
		httpClient: httpClient,
	}
}

// NewState returns a random value for the authorization request's state parameter.
func NewState() string {
	return uuid.NewString()
}

// AuthCodeURL is the page the user visits to grant access.
func (a *Authenticator) AuthCodeURL(state string) string {
	return a.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and caches it.
func (a *Authenticator) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := a.oauth.Exchange(a.tokenContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: exchange code: %w", err)
	}
	if err := a.saveToken(tok); err != nil {
		return tok, err
	}
	return tok, nil
}

// TokenSource prefers the cached token and falls back to the configured
// refresh token. Refreshed tokens are written back to the cache.
func (a *Authenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	tok, err := a.loadToken()
	if err != nil {
		a.log.Warn().Err(err).Str("path", a.cachePath).Msg("ignoring unreadable token cache")
	}
	if tok == nil && a.refresh != "" {
		tok = &oauth2.Token{RefreshToken: a.refresh}
	}
	if tok == nil {
		return nil, ErrNoCredentials
	}
	if tok.RefreshToken == "" && a.refresh != "" {
		tok.RefreshToken = a.refresh
	}

	base := a.oauth.TokenSource(a.tokenContext(ctx), tok)
	return &cachingTokenSource{base: base, last: tok.AccessToken, save: a.saveToken, log: a.log}, nil
}

// HTTPClient returns a client that authorizes every request and gives up
// after timeout.
func (a *Authenticator) HTTPClient(ctx context.Context, timeout time.Duration) (*http.Client, error) {
	ts, err := a.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	client := oauth2.NewClient(a.tokenContext(ctx), ts)
	client.Timeout = timeout
	return client, nil
}

func (a *Authenticator) tokenContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

func (a *Authenticator) loadToken() (*oauth2.Token, error) {
	if a.cachePath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(a.cachePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: read token cache: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("spotify adapter: decode token cache: %w", err)
	}
	return &tok, nil
}

func (a *Authenticator) saveToken(tok *oauth2.Token) error {
	if a.cachePath == "" || tok == nil {
		return nil
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("spotify adapter: encode token: %w", err)
	}
	if dir := filepath.Dir(a.cachePath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("spotify adapter: token cache dir: %w", err)
		}
	}
	if err := os.WriteFile(a.cachePath, data, 0o600); err != nil {
		return fmt.Errorf("spotify adapter: write token cache: %w", err)
	}
	return nil
}

// cachingTokenSource persists a token whenever the access token changes.
type cachingTokenSource struct {
	mu   sync.Mutex
	base oauth2.TokenSource
	last string
	save func(*oauth2.Token) error
	log  zerolog.Logger
}

func (s *cachingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: refresh token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.save(tok); err != nil {
			s.log.Warn().Err(err).Msg("token refreshed but not cached")
		}
	}
	return tok, nil
}
