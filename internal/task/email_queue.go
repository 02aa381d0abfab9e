package task

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
	"github.com/MarkoPoloResearchLab/leadloop/internal/notifications"
)

// Composer drafts welcome emails for queue entries.
type Composer interface {
	ComposeWelcomeEmail(ctx context.Context, entry model.QueueEntry) model.EmailDraft
}

// FlagReader reports whether a feature flag is on.
type FlagReader interface {
	IsEnabled(name model.FlagName) bool
}

// EmailQueueConfig groups the email-assistant collaborators.
type EmailQueueConfig struct {
	Queue    *notifications.Queue[model.QueueEntry]
	History  *notifications.Queue[model.EmailHistoryEntry]
	Composer Composer
	Sender   notifications.EmailSender
	Flags    FlagReader
	Clock    func() time.Time
}

// EmailQueueJob drains the email-assistant queue: every pending entry gets a
// draft in email_history, and drafts are sent only while auto_email is on.
type EmailQueueJob struct {
	config EmailQueueConfig
	sender notifications.EmailSender
	clock  func() time.Time
	logger *zap.Logger
}

func NewEmailQueueJob(config EmailQueueConfig, logger *zap.Logger) *EmailQueueJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := config.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &EmailQueueJob{
		config: config,
		sender: notifications.ResolveEmailSender(config.Sender),
		clock:  clock,
		logger: logger,
	}
}

func (job *EmailQueueJob) Name() string {
	return JobEmailQueue
}

func (job *EmailQueueJob) Run(ctx context.Context) error {
	autoSend := job.config.Flags != nil && job.config.Flags.IsEnabled(model.FlagAutoEmail)
	for _, entry := range job.config.Queue.Pending(ctx) {
		if err := ctx.Err(); err != nil {
			return err
		}
		draft := job.config.Composer.ComposeWelcomeEmail(ctx, entry)
		historyEntry := model.EmailHistoryEntry{
			ID:         uuid.NewString(),
			ClientID:   entry.ClientID,
			QueueEntry: entry.ID,
			Draft:      draft,
			Timestamp:  job.clock(),
		}
		if autoSend && draft.To != "" {
			if sendErr := job.sender.SendEmail(ctx, draft.To, draft.Subject, draft.Body); sendErr != nil {
				job.logger.Warn("welcome_email_send_failed", zap.String("client_id", entry.ClientID), zap.Error(sendErr))
				historyEntry.Error = sendErr.Error()
			} else if notifications.IsSimulated(job.sender) {
				historyEntry.Simulated = true
			} else {
				historyEntry.Sent = true
			}
		}
		job.config.History.Push(ctx, historyEntry)
		job.config.Queue.MarkProcessed(ctx, entry.ID)
	}
	return nil
}
