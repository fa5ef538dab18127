package reply

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/resend/resend-go/v2"

	"github.com/dunbot/dunbot/internal/email"
)

// ErrSend indicates the delivery provider rejected the outgoing reply.
// Terminal for the run; the send is never retried here.
var ErrSend = errors.New("email send failed")

// Sender delivers an outgoing reply
type Sender interface {
	Send(ctx context.Context, e *email.OutboundEmail) error
}

// ResendSender sends emails via the Resend API
type ResendSender struct {
	client *resend.Client
}

// NewResendSender creates a new Resend sender
func NewResendSender(apiKey string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
	}
}

func (s *ResendSender) Send(ctx context.Context, e *email.OutboundEmail) error {
	to := make([]string, len(e.To))
	for i, addr := range e.To {
		to[i] = addr.Address
	}

	params := &resend.SendEmailRequest{
		From:    e.From.String(),
		To:      to,
		Subject: e.Subject,
	}

	if e.HTMLBody != "" {
		params.Html = e.HTMLBody
	}
	if e.TextBody != "" {
		params.Text = e.TextBody
	}

	// Threading headers keep the reply inside the original conversation
	if e.InReplyTo != "" {
		params.Headers = map[string]string{
			"In-Reply-To": e.InReplyTo,
		}
		if len(e.References) > 0 {
			params.Headers["References"] = strings.Join(e.References, " ")
		}
	}

	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("%w: resend: %w", ErrSend, err)
	}

	return nil
}

// SMTPSender sends emails through a plain SMTP relay
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
}

// NewSMTPSender creates a new SMTP sender
func NewSMTPSender(host string, port int, username, password string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
	}
}

func (s *SMTPSender) Send(ctx context.Context, e *email.OutboundEmail) error {
	var recipients []string
	for _, to := range e.To {
		recipients = append(recipients, to.Address)
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", e.From.String()))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", formatAddresses(e.To)))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", e.Subject))
	if e.InReplyTo != "" {
		msg.WriteString(fmt.Sprintf("In-Reply-To: %s\r\n", e.InReplyTo))
	}
	if len(e.References) > 0 {
		msg.WriteString(fmt.Sprintf("References: %s\r\n", strings.Join(e.References, " ")))
	}
	msg.WriteString("MIME-Version: 1.0\r\n")
	if e.HTMLBody != "" {
		msg.WriteString("Content-Type: text/html; charset=utf-8\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(e.HTMLBody)
	} else {
		msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(e.TextBody)
	}

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if err := smtp.SendMail(addr, auth, e.From.Address, recipients, []byte(msg.String())); err != nil {
		return fmt.Errorf("%w: smtp: %w", ErrSend, err)
	}

	return nil
}

func formatAddresses(addrs []email.Address) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// NoopSender composes but never delivers, for dry runs
type NoopSender struct{}

func (s *NoopSender) Send(ctx context.Context, e *email.OutboundEmail) error {
	return nil
}
