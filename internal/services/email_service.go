package services

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"commentboard/internal/config"
	"commentboard/internal/logging"
)

type EmailService interface {
	SendConfirmationCode(ctx context.Context, email, name, code string) error
}

type emailService struct {
	dialer *gomail.Dialer
	from   string
	dryRun bool
	log    logging.Logger
}

// NewEmailService sends through SMTP. With cfg.DryRun the message is
// built but only logged, never delivered.
func NewEmailService(cfg config.EmailConfig, log logging.Logger) EmailService {
	return &emailService{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:   cfg.FromEmail,
		dryRun: cfg.DryRun,
		log:    log.With("component", "email"),
	}
}

func (s *emailService) SendConfirmationCode(ctx context.Context, email, name, code string) error {
	m := buildConfirmationMessage(s.from, email, name, code)

	if s.dryRun {
		// code stays out of the log even in dry-run
		s.log.Info(ctx, "confirmation mail (dry run)", "to", email, "name", name)
		return nil
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send confirmation email: %w", err)
	}
	return nil
}

func buildConfirmationMessage(from, email, name, code string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Confirm your email")

	body := fmt.Sprintf(`
		<h3>Hello, %s!</h3>
		<p>Your confirmation code is: <strong>%s</strong></p>
		<p>Enter it on the confirmation page to finish signing up.</p>
		<p>If you did not sign up, you can ignore this email.</p>
	`, name, code)

	m.SetBody("text/html", body)
	return m
}
