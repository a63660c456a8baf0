// Package email delivers outbound mail through SMTP, Amazon SES, or the log.
package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlogic/remix-api/internal/config"
	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/pkg/logger"
)

// Message is a plain-text mail.
type Message struct {
	From    string
	To      string
	ReplyTo string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// FromContact renders a queued contact form message for the support inbox.
func FromContact(c *model.ContactMessage, from, to string) Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Name: %s\n", c.Name)
	fmt.Fprintf(&body, "Email: %s\n", c.Email)
	fmt.Fprintf(&body, "Received: %s\n\n", c.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	body.WriteString(c.Message)
	body.WriteString("\n")

	return Message{
		From:    from,
		To:      to,
		ReplyTo: c.Email,
		Subject: "Contact form: " + c.Name,
		Body:    body.String(),
	}
}

// NewMailer builds the mailer selected by cfg.Driver.
func NewMailer(ctx context.Context, cfg config.MailConfig, log *logger.Logger) (Mailer, error) {
	switch cfg.Driver {
	case "smtp":
		return NewSMTPMailer(cfg.SMTP), nil
	case "ses":
		return NewSESMailer(ctx, cfg.SESRegion)
	case "log":
		return NewLogMailer(log), nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Driver)
	}
}
