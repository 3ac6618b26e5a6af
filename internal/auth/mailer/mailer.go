// Package mailer delivers transactional email.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
	"golang.org/x/time/rate"
)

// Sender delivers one HTML message.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

var ErrNotConfigured = errors.New("mailer: smtp host not configured")

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// RatePerSecond caps outbound messages. Zero or less disables throttling.
	RatePerSecond float64
	Timeout       time.Duration
}

// SMTPSender sends through an SMTP relay, dialling once per message.
type SMTPSender struct {
	cfg     SMTPConfig
	limiter *rate.Limiter
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &SMTPSender{cfg: cfg, limiter: limiter}, nil
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, html string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("mailer: throttle: %w", err)
	}

	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("mailer: from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("mailer: to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, html)

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(s.cfg.Timeout),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("mailer: client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}

// LogSender writes messages to the log instead of sending them. It is used
// in development when no SMTP relay is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, to, subject, html string) error {
	s.Logger.Info("email not sent, no smtp relay configured",
		"to", to,
		"subject", subject,
		"body", html,
	)
	return nil
}
