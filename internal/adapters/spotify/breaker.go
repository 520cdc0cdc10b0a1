package spotify

import (
	"errors"

	gobreaker "github.com/sony/gobreaker/v2"
)

// isBreakerRejection reports whether the breaker refused to send the request.
// Rejections are not retried.
func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
