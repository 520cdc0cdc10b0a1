package spotify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/ewilliams-labs/moodify/internal/core/domain"
	"github.com/ewilliams-labs/moodify/internal/core/ports"
	"github.com/ewilliams-labs/moodify/internal/logging"
)

const (
	DefaultBaseURL = "https://api.spotify.com/v1"
	DefaultMarket  = "US"

	breakerName = "spotify-api"
)

// Config tunes the Web API client. Zero values take defaults.
type Config struct {
	BaseURL           string
	Market            string
	MaxRetries        int
	RetryBackoff      time.Duration
	RequestsPerSecond float64
}

// Client is an HTTP client for the Spotify adapter. The http.Client it is
// given is expected to attach credentials (see Authenticator.HTTPClient).
type Client struct {
	httpClient  *http.Client
	baseURL     string
	market      string
	maxRetries  int
	baseBackoff time.Duration
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	log         zerolog.Logger
}

// compile-time interface assertion
var _ ports.CatalogClient = (*Client)(nil)

// NewClient constructs a new Spotify client.
func NewClient(httpClient *http.Client, cfg Config, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Market == "" {
		cfg.Market = DefaultMarket
	}

	c := &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		market:      cfg.Market,
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.RetryBackoff,
		log:         logging.Component(log, "spotify"),
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("circuit breaker state change")
		},
	})
	return c
}

// StatusError is a non-success HTTP response from the Web API.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("spotify adapter: %s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("spotify adapter: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Is lets callers match a 404 with domain.ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == domain.ErrNotFound && e.StatusCode == http.StatusNotFound
}

// errUpstream marks a 5xx response as a breaker failure without losing the response.
var errUpstream = errors.New("spotify adapter: upstream error")

// do sends one attempt through the rate limiter and circuit breaker.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("spotify adapter: rate limiter: %w", err)
		}
	}
	if c.breaker == nil {
		return c.httpClient.Do(req)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		// #nosec G107 -- URL constructed from trusted Spotify API baseURL
		resp, err := c.httpClient.Do(req)
		if err == nil && resp.StatusCode >= http.StatusInternalServerError {
			return resp, errUpstream
		}
		return resp, err
	})
	if errors.Is(err, errUpstream) {
		return resp, nil
	}
	return resp, err
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// getJSON issues a GET against path (or an absolute next-page URL) and decodes a 200 body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.endpoint(path, query)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("spotify adapter: failed to create request: %w", err)
	}
	return c.roundTrip(req, path, out)
}

// sendJSON issues a request with a JSON body and decodes a 2xx body into out when out is non-nil.
func (c *Client) sendJSON(ctx context.Context, method, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("spotify adapter: failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, nil), bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("spotify adapter: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.roundTrip(req, path, out)
}

func (c *Client) roundTrip(req *http.Request, path string, out any) error {
	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			Method:     req.Method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("spotify adapter: %s decode error: %w", path, err)
	}
	return nil
}

// page is the Web API paging object.
type page[T any] struct {
	Items []T    `json:"items"`
	Next  string `json:"next"`
	Total int    `json:"total"`
}

// collectPages follows next links until limit items are read. A limit of
// zero reads every page.
func collectPages[T any](ctx context.Context, c *Client, path string, query url.Values, limit, pageSize int) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}
	size := pageSize
	if limit > 0 && limit < size {
		size = limit
	}
	query.Set("limit", fmt.Sprint(size))

	var out []T
	next := path
	for next != "" {
		var p page[T]
		if err := c.getJSON(ctx, next, query, &p); err != nil {
			return out, err
		}
		out = append(out, p.Items...)
		if limit > 0 && len(out) >= limit {
			return out[:limit], nil
		}
		next = p.Next
	}
	return out, nil
}
