// Package notifier delivers outbound alert notifications. The provider
// is opaque to the engine; this implementation speaks SMTP.
package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/DilipViharika/PostgresTool-sub003/internal/config"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Provider is the external notification collaborator.
type Provider interface {
	Send(recipients []string, subject, body string) error
	SendTest(recipient string) error
}

// SMTPProvider delivers mail through a configured SMTP relay, upgrading
// to STARTTLS when the server offers it.
type SMTPProvider struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewSMTPProvider(cfg config.NotificationConfig) *SMTPProvider {
	return &SMTPProvider{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.From,
	}
}

func (p *SMTPProvider) Send(recipients []string, subject, body string) error {
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	msg := p.buildMessage(recipients, subject, body)

	var auth sasl.Client
	if p.username != "" {
		auth = sasl.NewPlainClient("", p.username, p.password)
	}

	addr := fmt.Sprintf("%s:%d", p.host, p.port)
	if err := smtp.SendMail(addr, auth, p.from, recipients, strings.NewReader(msg)); err != nil {
		return fmt.Errorf("smtp delivery to %s failed: %w", addr, err)
	}

	return nil
}

func (p *SMTPProvider) SendTest(recipient string) error {
	return p.Send([]string{recipient},
		"Database health monitor test notification",
		"This is a test notification. If you can read this, outbound delivery is working.")
}

func (p *SMTPProvider) buildMessage(recipients []string, subject, body string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", p.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")

	return b.String()
}
