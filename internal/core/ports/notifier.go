package ports

import "context"

// Notifier delivers a best-effort message about a finished run.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}
