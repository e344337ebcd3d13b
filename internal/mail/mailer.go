// Package mail defines the outbound email collaborator. SendOTP
// failures propagate to the caller (the OTP service rolls the record
// back); SendWelcomeEmail is best effort and callers are expected to
// log-and-continue.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"
)

// Mailer is the delivery contract consumed by the auth flows and the
// OTP service.
type Mailer interface {
	SendOTP(ctx context.Context, email, code, purpose string) error
	SendWelcomeEmail(ctx context.Context, email, name string) error
}

// SMTPMailer delivers through a plain SMTP relay. No third-party
// client is used: the message surface is two fixed templates, which
// net/smtp covers.
type SMTPMailer struct {
	Addr string // host:port of the relay
	From string
	Auth smtp.Auth // nil for an open relay
}

func NewSMTPMailer(addr, from, username, password string) *SMTPMailer {
	m := &SMTPMailer{Addr: addr, From: from}
	if username != "" {
		host := addr
		if i := strings.IndexByte(addr, ':'); i >= 0 {
			host = addr[:i]
		}
		m.Auth = smtp.PlainAuth("", username, password, host)
	}
	return m
}

// SendOTP mails the passcode. The purpose picks the subject line so
// users can tell a password-reset code from a registration code.
func (m *SMTPMailer) SendOTP(_ context.Context, email, code, purpose string) error {
	subject := "Your verification code"
	switch purpose {
	case "password-reset":
		subject = "Your password reset code"
	case "login":
		subject = "Your login code"
	}
	body := fmt.Sprintf("Your one-time code is %s. It expires in 10 minutes.", code)
	return m.send(email, subject, body)
}

// SendWelcomeEmail greets a freshly verified account.
func (m *SMTPMailer) SendWelcomeEmail(_ context.Context, email, name string) error {
	body := fmt.Sprintf("Hi %s,\r\n\r\nYour laboratory account is ready. You can now book labs and equipment.", name)
	return m.send(email, "Welcome to the laboratory portal", body)
}

func (m *SMTPMailer) send(to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + m.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")
	if err := smtp.SendMail(m.Addr, m.Auth, m.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// LogMailer writes messages to the log instead of a relay. Used in
// development when no SMTP host is configured.
type LogMailer struct {
	Log zerolog.Logger
}

func (m *LogMailer) SendOTP(_ context.Context, email, code, purpose string) error {
	m.Log.Info().Str("email", email).Str("code", code).Str("purpose", purpose).Msg("otp email (dev mailer)")
	return nil
}

func (m *LogMailer) SendWelcomeEmail(_ context.Context, email, name string) error {
	m.Log.Info().Str("email", email).Str("name", name).Msg("welcome email (dev mailer)")
	return nil
}
