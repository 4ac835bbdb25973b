package notifications

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/observability"
	"github.com/zatekoja/expertbooking/backend/pkg/config"
	"gopkg.in/gomail.v2"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// mailDialer is the part of gomail.Dialer the sender needs
type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender sends HTML email through an SMTP relay
type SMTPSender struct {
	from   string
	dialer mailDialer
}

// NewSMTPSender creates a new SMTP sender
func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP_HOST must be set")
	}

	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	if from == "" {
		return nil, fmt.Errorf("SMTP_FROM or SMTP_USER must be set")
	}

	return &SMTPSender{
		from:   from,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
	}, nil
}

// Send delivers one message. Failures are logged and reported as false.
func (s *SMTPSender) Send(ctx context.Context, to, subject, html string) bool {
	if to == "" {
		observability.LoggerFromContext(ctx).Warn().Str("subject", subject).Msg("email skipped, no recipient")
		return false
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", tagPattern.ReplaceAllString(html, ""))
	m.AddAlternative("text/html", html)

	if err := s.dialer.DialAndSend(m); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("to", to).
			Str("subject", subject).
			Msg("email delivery failed")
		return false
	}

	log.Debug().Str("to", to).Str("subject", subject).Msg("email sent")
	return true
}

// LogDispatcher writes messages to the log instead of sending them. Used when
// SMTP is not configured.
type LogDispatcher struct{}

// Send logs the message and reports it delivered
func (LogDispatcher) Send(ctx context.Context, to, subject, _ string) bool {
	observability.LoggerFromContext(ctx).Info().
		Str("to", to).
		Str("subject", subject).
		Msg("email (not sent, SMTP disabled)")
	return true
}
