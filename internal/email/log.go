package email

import (
	"context"

	"github.com/nextlogic/remix-api/pkg/logger"
)

// LogMailer records messages instead of sending them. Used in development.
type LogMailer struct {
	logger *logger.Logger
}

func NewLogMailer(log *logger.Logger) *LogMailer {
	return &LogMailer{logger: log}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("mail not sent, log driver",
		"to", msg.To,
		"reply_to", msg.ReplyTo,
		"subject", msg.Subject,
		"bytes", len(msg.Body))
	return nil
}
