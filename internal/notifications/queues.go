package notifications

import (
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
	"github.com/MarkoPoloResearchLab/leadloop/internal/storage"
)

// EmailHistoryCapacity bounds the email_history document.
const EmailHistoryCapacity = 100

var queueEntryAccessors = Accessors[model.QueueEntry]{
	ID:            func(entry model.QueueEntry) string { return entry.ID },
	Processed:     func(entry model.QueueEntry) bool { return entry.Processed },
	MarkProcessed: func(entry *model.QueueEntry) { entry.Processed = true },
}

var marketingCommandAccessors = Accessors[model.MarketingCommand]{
	ID:            func(command model.MarketingCommand) string { return command.ID },
	Processed:     func(command model.MarketingCommand) bool { return command.Processed },
	MarkProcessed: func(command *model.MarketingCommand) { command.Processed = true },
}

var emailHistoryAccessors = Accessors[model.EmailHistoryEntry]{
	ID: func(entry model.EmailHistoryEntry) string { return entry.ID },
}

// NewEmailAssistantQueue binds email_assistant_queue.
func NewEmailAssistantQueue(documents storage.DocumentStore, logger *zap.Logger) *Queue[model.QueueEntry] {
	return NewQueue(documents, storage.KeyEmailAssistantQueue, DefaultQueueCapacity, queueEntryAccessors, logger)
}

// NewMarketingAssistantQueue binds marketing_assistant_queue.
func NewMarketingAssistantQueue(documents storage.DocumentStore, logger *zap.Logger) *Queue[model.QueueEntry] {
	return NewQueue(documents, storage.KeyMarketingAssistantQueue, DefaultQueueCapacity, queueEntryAccessors, logger)
}

// NewMarketingCommandQueue binds marketing_commands.
func NewMarketingCommandQueue(documents storage.DocumentStore, logger *zap.Logger) *Queue[model.MarketingCommand] {
	return NewQueue(documents, storage.KeyMarketingCommands, DefaultQueueCapacity, marketingCommandAccessors, logger)
}

// NewEmailHistory binds email_history.
func NewEmailHistory(documents storage.DocumentStore, logger *zap.Logger) *Queue[model.EmailHistoryEntry] {
	return NewQueue(documents, storage.KeyEmailHistory, EmailHistoryCapacity, emailHistoryAccessors, logger)
}
