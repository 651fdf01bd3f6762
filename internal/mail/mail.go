// Package mail delivers one-time codes over SMTP.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	gomail "gopkg.in/gomail.v2"

	"inmapper.dev/authgate/internal/auth"
)

const bodyTemplate = `<div style="font-family:sans-serif;max-width:480px;margin:0 auto">
  <h2>{{.Heading}}</h2>
  <p>Hi {{.Name}},</p>
  <p>{{.Intro}}</p>
  <p style="font-size:32px;letter-spacing:8px;font-weight:bold">{{.Code}}</p>
  <p>This code expires in {{.TTLMinutes}} minutes. If you did not request it, you can safely ignore this email.</p>
</div>`

var tmpl = template.Must(template.New("otp").Parse(bodyTemplate))

type templateData struct {
	Heading    string
	Name       string
	Intro      string
	Code       string
	TTLMinutes int
}

// SMTPSender sends one-time codes through an SMTP relay. It implements
// auth.Sender.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTP constructs a sender for the given relay. An empty from address
// falls back to the relay username.
func NewSMTP(host string, port int, username, password, from string) *SMTPSender {
	if from == "" {
		from = username
	}
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// SendCode renders and delivers the code email for the given kind.
func (s *SMTPSender) SendCode(ctx context.Context, to, name, code string, kind auth.CodeKind, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject, body, err := Render(name, code, kind, ttl)
	if err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)
	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// Render produces the subject and HTML body for a code email.
func Render(name, code string, kind auth.CodeKind, ttl time.Duration) (subject, body string, err error) {
	data := templateData{
		Name:       name,
		Code:       code,
		TTLMinutes: int(ttl.Minutes()),
	}
	switch kind {
	case auth.KindVerify:
		subject = "Verify your inMapper account"
		data.Heading = "Verify your email"
		data.Intro = "Use the code below to verify your email address."
	case auth.KindLogin:
		subject = "Your inMapper login code"
		data.Heading = "Sign in to inMapper"
		data.Intro = "Use the code below to sign in to your account."
	default:
		return "", "", fmt.Errorf("unknown code kind %q", kind)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render mail: %w", err)
	}
	return subject, buf.String(), nil
}
