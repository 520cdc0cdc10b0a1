// Package email delivers run notifications over SMTP.
package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodify/internal/core/ports"
	"github.com/ewilliams-labs/moodify/internal/logging"
)

const (
	DefaultSMTPHost = "smtp.gmail.com"
	DefaultSMTPPort = 587
	defaultFromName = "Moodify"
)

// ErrNotConfigured is returned when sender or recipient is missing.
var ErrNotConfigured = errors.New("email: sender and recipient are required")

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
	// StartTLS upgrades the connection before authenticating.
	StartTLS bool
	Timeout  time.Duration
}

// Notifier sends notifications as multipart text and HTML mail.
type Notifier struct {
	cfg  Config
	log  zerolog.Logger
	now  func() time.Time
	send func(ctx context.Context, cfg Config, msg []byte) error
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier validates cfg and constructs a Notifier.
func NewNotifier(cfg Config, log zerolog.Logger) (*Notifier, error) {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.From == "" || cfg.To == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Host == "" {
		cfg.Host = DefaultSMTPHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultSMTPPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Notifier{
		cfg:  cfg,
		log:  logging.Component(log, "email"),
		now:  time.Now,
		send: sendSMTP,
	}, nil
}

// Notify sends subject and body to the configured recipient.
func (n *Notifier) Notify(ctx context.Context, subject, body string) error {
	msg := n.buildMessage(subject, body)
	if err := n.send(ctx, n.cfg, msg); err != nil {
		return fmt.Errorf("email: send to %s: %w", n.cfg.To, err)
	}
	n.log.Info().Str("to", n.cfg.To).Str("subject", subject).Msg("notification email sent")
	return nil
}

func (n *Notifier) buildMessage(subject, body string) []byte {
	var msg strings.Builder
	boundary := fmt.Sprintf("boundary_%d", n.now().UnixNano())

	fmt.Fprintf(&msg, "From: %s <%s>\r\n", defaultFromName, n.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", n.cfg.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", sanitizeHeader(subject))
	fmt.Fprintf(&msg, "Date: %s\r\n", n.now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	msg.WriteString("\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(crlf(body))
	msg.WriteString("\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	msg.WriteString(renderHTML(body))
	msg.WriteString("\r\n")

	fmt.Fprintf(&msg, "--%s--\r\n", boundary)
	return []byte(msg.String())
}

func renderHTML(body string) string {
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	for i, l := range lines {
		l = html.EscapeString(l)
		if strings.HasPrefix(l, "https://") {
			l = fmt.Sprintf(`<a href="%s">%s</a>`, l, l)
		}
		lines[i] = l
	}
	return "<html><body><p>" + strings.Join(lines, "<br>\r\n") + "</p></body></html>"
}

func crlf(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\n", "\r\n")
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

func sendSMTP(ctx context.Context, cfg Config, msg []byte) error {
	addr := net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port))

	dialer := &net.Dialer{Timeout: cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(cfg.Timeout))
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if cfg.StartTLS {
		tlsConfig := &tls.Config{
			ServerName: cfg.Host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if cfg.Username != "" && cfg.Password != "" {
		auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(cfg.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(cfg.To); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start message: %w", err)
	}
	if _, err := writer.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}

	// the message is accepted once Data is closed
	_ = client.Quit()
	return nil
}
