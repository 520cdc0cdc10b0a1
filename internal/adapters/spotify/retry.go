package spotify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond
)

// retryPolicy bounds the attempts made for one logical request.
type retryPolicy struct {
	attempts int
	base     time.Duration
}

func (c *Client) policy() retryPolicy {
	p := retryPolicy{attempts: c.maxRetries, base: c.baseBackoff}
	if p.attempts <= 0 {
		p.attempts = defaultMaxRetries
	}
	if p.base <= 0 {
		p.base = defaultBackoff
	}
	return p
}

// wait is the pause before attempt n+1. A server hint wins over the
// exponential schedule.
func (p retryPolicy) wait(n int, hint time.Duration) time.Duration {
	if hint > 0 {
		return hint
	}
	return p.base << n
}

// doRequestWithRetry sends req, retrying transport errors, 429 and 5xx.
// Non-retryable responses, including 4xx, are returned to the caller as is.
func (c *Client) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	p := c.policy()
	if err := bufferBody(req); err != nil {
		return nil, err
	}

	ctx := req.Context()
	var lastStatus int
	var lastErr error

	for n := 0; n < p.attempts; n++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("spotify adapter: request canceled: %w", err)
		}
		if err := rewindBody(req); err != nil {
			return nil, err
		}

		resp, err := c.do(req)
		if isBreakerRejection(err) {
			return nil, fmt.Errorf("spotify adapter: %s %s: %w", req.Method, req.URL.Path, err)
		}
		hint, retry := retryable(resp, err)
		if !retry {
			return resp, err
		}

		ev := c.log.Warn().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Int("attempt", n+1).
			Int("max_attempts", p.attempts)
		if err != nil {
			lastErr, lastStatus = err, 0
			ev = ev.Err(err)
		} else {
			lastErr, lastStatus = nil, resp.StatusCode
			ev = ev.Int("status", resp.StatusCode)
			_ = resp.Body.Close()
		}

		if n == p.attempts-1 {
			ev.Msg("giving up")
			break
		}
		delay := p.wait(n, hint)
		ev.Dur("backoff", delay).Msg("retrying")

		if err := sleepWithContext(ctx, delay); err != nil {
			return nil, err
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("spotify adapter: %s %s failed after %d attempts: %w", req.Method, req.URL.Path, p.attempts, lastErr)
	}
	return nil, fmt.Errorf("spotify adapter: %s %s failed after %d attempts: status %d", req.Method, req.URL.Path, p.attempts, lastStatus)
}

// bufferBody makes req's body replayable across attempts.
func bufferBody(req *http.Request) error {
	if req.Body == nil || req.GetBody != nil {
		return nil
	}
	buf, err := io.ReadAll(req.Body)
	if err != nil {
		return fmt.Errorf("spotify adapter: read request body: %w", err)
	}
	_ = req.Body.Close()
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(buf)), nil
	}
	return nil
}

func rewindBody(req *http.Request) error {
	if req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("spotify adapter: reset request body: %w", err)
	}
	req.Body = body
	return nil
}

// retryable reports whether the attempt should be repeated, along with any
// Retry-After hint the server gave.
func retryable(resp *http.Response, err error) (time.Duration, bool) {
	switch {
	case err != nil:
		return 0, true
	case resp == nil:
		return 0, false
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= http.StatusInternalServerError:
		return parseRetryAfter(resp), true
	default:
		return 0, false
	}
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("spotify adapter: request canceled: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
