package notifications

import (
	"context"

	"go.uber.org/zap"
)

// EmailSender sends an email message to a recipient.
type EmailSender interface {
	SendEmail(ctx context.Context, recipient string, subject string, message string) error
}

// SimulatedSender is implemented by senders that accept messages without delivering them.
type SimulatedSender interface {
	Simulated() bool
}

// IsSimulated reports whether sender only pretends to deliver.
func IsSimulated(sender EmailSender) bool {
	simulated, ok := sender.(SimulatedSender)
	return ok && simulated.Simulated()
}

type noopEmailSender struct{}

func (noopEmailSender) SendEmail(ctx context.Context, recipient string, subject string, message string) error {
	return nil
}

func (noopEmailSender) Simulated() bool {
	return true
}

// ResolveEmailSender substitutes a sender that drops messages for nil.
func ResolveEmailSender(sender EmailSender) EmailSender {
	if sender == nil {
		return noopEmailSender{}
	}
	return sender
}

// LoggingEmailSender records outgoing messages instead of delivering them.
type LoggingEmailSender struct {
	logger *zap.Logger
}

// NewLoggingEmailSender constructs a LoggingEmailSender.
func NewLoggingEmailSender(logger *zap.Logger) *LoggingEmailSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingEmailSender{logger: logger}
}

func (sender *LoggingEmailSender) SendEmail(ctx context.Context, recipient string, subject string, message string) error {
	sender.logger.Info("email_dispatched",
		zap.String("recipient", recipient),
		zap.String("subject", subject),
		zap.Int("body_length", len(message)),
	)
	return nil
}

func (sender *LoggingEmailSender) Simulated() bool {
	return true
}
