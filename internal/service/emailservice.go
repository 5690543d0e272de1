package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"vidshare/internal/email"
)

// EmailService sends account emails over SMTP using static settings.
type EmailService struct {
	SMTP      email.SMTPSettings
	FromName  string
	FromEmail string
	// PublicURL is the externally reachable base of the API, used to build
	// links in outgoing mail.
	PublicURL string

	// Send defaults to email.SendSMTP.
	Send func(ctx context.Context, settings email.SMTPSettings, msg email.Message) error
}

func (s *EmailService) SendEmailVerification(ctx context.Context, toEmail, rawToken string) error {
	link, err := s.link("/api/v1/verify-email/"+rawToken, nil)
	if err != nil {
		return err
	}
	body := strings.Join([]string{
		"Welcome! Please confirm your email address.",
		"",
		"Open this link to verify your account:",
		link,
		"",
		"If you did not sign up, you can ignore this email.",
	}, "\n")
	return s.send(ctx, toEmail, "Verify your email address", body)
}

func (s *EmailService) SendPasswordReset(ctx context.Context, toEmail, rawToken string) error {
	link, err := s.link("/reset-password", url.Values{"email": {toEmail}, "token": {rawToken}})
	if err != nil {
		return err
	}
	body := strings.Join([]string{
		"You requested a password reset.",
		"",
		"Your reset token is:",
		rawToken,
		"",
		"Or reset your password using this link:",
		link,
		"",
		"If you did not request this, you can ignore this email.",
	}, "\n")
	return s.send(ctx, toEmail, "Reset your password", body)
}

func (s *EmailService) link(path string, query url.Values) (string, error) {
	base, err := url.Parse(strings.TrimRight(s.PublicURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse public url: %w", err)
	}
	u := base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

func (s *EmailService) send(ctx context.Context, toEmail, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.SMTP.Host == "" {
		return fmt.Errorf("smtp settings not configured")
	}
	if s.FromEmail == "" {
		return fmt.Errorf("mail sender not configured")
	}
	send := s.Send
	if send == nil {
		send = email.SendSMTP
	}
	return send(ctx, s.SMTP, email.Message{
		FromName:  s.FromName,
		FromEmail: s.FromEmail,
		ToEmail:   toEmail,
		Subject:   subject,
		TextBody:  body,
	})
}
