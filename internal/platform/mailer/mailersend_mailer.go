package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendMailer struct {
	client *mailersend.Mailersend
	from   mailersend.From
}

func NewMailerSendMailer(apiKey, fromName, fromEmail string) (*MailerSendMailer, error) {
	if apiKey == "" || fromEmail == "" {
		return nil, errors.New("mailersend requires an API key and a from address")
	}
	return &MailerSendMailer{
		client: mailersend.NewMailersend(apiKey),
		from:   mailersend.From{Name: fromName, Email: fromEmail},
	}, nil
}

func (m *MailerSendMailer) SendWelcome(toEmail, toName, accountURL string) error {
	subject := "Welcome to Trailventures"
	text := fmt.Sprintf("Hi %s,\n\nWelcome aboard! Manage your account here: %s", toName, accountURL)
	html := fmt.Sprintf(`<p>Hi %s,</p><p>Welcome aboard! Manage your account <a href="%s">here</a>.</p>`, toName, accountURL)
	return m.send(toEmail, toName, subject, text, html)
}

func (m *MailerSendMailer) SendPasswordReset(toEmail, toName, resetURL string) error {
	subject := "Your password reset link (valid for 10 minutes)"
	text := fmt.Sprintf("Hi %s,\n\nReset your password here: %s", toName, resetURL)
	html := fmt.Sprintf(`<p>Hi %s,</p><p><a href="%s">Reset your password</a>. If you didn't request this, ignore this email.</p>`, toName, resetURL)
	return m.send(toEmail, toName, subject, text, html)
}

func (m *MailerSendMailer) send(toEmail, toName, subject, text, html string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	msg.SetSubject(subject)
	msg.SetText(text)
	msg.SetHTML(html)

	res, err := m.client.Email.Send(ctx, msg)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return fmt.Errorf("mailersend status %d: %s", res.StatusCode, body)
	}
	return nil
}
