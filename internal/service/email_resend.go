package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/resend/resend-go"
)

// ResendEmailSender delivers transactional mail through the Resend API.
// NewResendEmailSender returns nil when the key or sender address is
// missing; callers treat a nil sender as "email disabled".
type ResendEmailSender struct {
	client *resend.Client
	from   string
	app    string
}

func NewResendEmailSender(apiKey string, from string, appName string) *ResendEmailSender {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(from) == "" {
		return nil
	}
	if strings.TrimSpace(appName) == "" {
		appName = "authgate"
	}
	return &ResendEmailSender{
		client: resend.NewClient(apiKey),
		from:   from,
		app:    appName,
	}
}

func (s *ResendEmailSender) SendWelcomeEmail(ctx context.Context, email string, name string) error {
	greeting := strings.TrimSpace(name)
	if greeting == "" {
		greeting = "there"
	}
	subject := fmt.Sprintf("Welcome to %s", s.app)
	htmlBody := fmt.Sprintf("<p>Hi %s,</p><p>Your %s account is ready. You can now sign in with your email address.</p>", html.EscapeString(greeting), html.EscapeString(s.app))
	textBody := fmt.Sprintf("Hi %s, your %s account is ready. You can now sign in with your email address.", greeting, s.app)

	_, err := s.client.Emails.Send(&resend.SendEmailRequest{
		From:    s.from,
		To:      []string{email},
		Subject: subject,
		Html:    htmlBody,
		Text:    textBody,
	})
	return err
}
