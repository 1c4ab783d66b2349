package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/joez89/autism-center-api/internal/config"
)

// Service sends the center's operational mail. Implementations must be
// safe for concurrent use.
type Service interface {
	SendAppointmentNotification(ctx context.Context, to, subject, body string) error
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPService(cfg config.SMTPConfig) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) SendAppointmentNotification(ctx context.Context, to, subject, body string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
