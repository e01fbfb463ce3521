package notify

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/brightpath-edu/ms-go-billing/app/factory"
)

// Sender delivers guardian-facing notifications. Delivery is fire-and-forget:
// callers log a failed send and never let it fail a payment or invoice
// operation.
type Sender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// LogSender writes notifications to the log instead of delivering them. It is
// the default until a real messaging backend is wired in deployment.
type LogSender struct {
	logger logrus.FieldLogger
}

func NewLogSender() *LogSender {
	return &LogSender{logger: factory.NewModuleLogger("notify")}
}

func (s *LogSender) Send(_ context.Context, recipient, subject, body string) error {
	s.logger.WithFields(logrus.Fields{
		"recipient": recipient,
		"subject":   subject,
	}).Info(body)
	return nil
}
