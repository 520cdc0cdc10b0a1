// Package rest serves the local OAuth redirect endpoint used by `moodify auth`.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/moodify/internal/logging"
)

// CodeExchanger trades an authorization code for a token.
type CodeExchanger interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// Handler manages the HTTP interface for the authorization flow.
type Handler struct {
	auth   CodeExchanger
	state  string
	log    zerolog.Logger
	router *http.ServeMux

	once sync.Once
	done chan error
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(auth CodeExchanger, state string, log zerolog.Logger) *Handler {
	h := &Handler{
		auth:   auth,
		state:  state,
		log:    logging.Component(log, "callback"),
		router: http.NewServeMux(),
		done:   make(chan error, 1),
	}

	h.routes()

	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Done yields the outcome of the first completed callback.
func (h *Handler) Done() <-chan error {
	return h.done
}

func (h *Handler) routes() {
	h.router.HandleFunc("GET /health", h.HealthCheck)
	h.router.HandleFunc("GET /callback", h.Callback)
}

// HealthCheck is a simple endpoint to verify the server is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Callback completes the authorization code flow.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if got := q.Get("state"); got != h.state {
		h.log.Warn().Str("state", got).Msg("callback with unexpected state")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "state mismatch"})
		return
	}
	if reason := q.Get("error"); reason != "" {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": reason})
		h.finish(fmt.Errorf("rest: authorization denied: %s", reason))
		return
	}
	code := q.Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing code"})
		return
	}

	if _, err := h.auth.Exchange(r.Context(), code); err != nil {
		h.log.Error().Err(err).Msg("token exchange failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "token exchange failed"})
		h.finish(err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintln(w, "Login completed. You can close this window.")
	h.finish(nil)
}

func (h *Handler) finish(err error) {
	h.once.Do(func() { h.done <- err })
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
