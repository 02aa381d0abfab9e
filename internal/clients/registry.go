// Package clients promotes lead submissions from the notification log into
// client records and hands them to the downstream assistants.
package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadloop/internal/metrics"
	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
	"github.com/MarkoPoloResearchLab/leadloop/internal/notifications"
	"github.com/MarkoPoloResearchLab/leadloop/internal/signals"
	"github.com/MarkoPoloResearchLab/leadloop/internal/storage"
)

const (
	// DefaultIngestWindow bounds how far back ScanAndIngest looks for unprocessed submissions.
	DefaultIngestWindow = 24 * time.Hour

	clientIDPrefix = "CLI_"

	emailQueueMessageFormat     = "Nouveau %s détecté: %s. Email de bienvenue requis."
	marketingQueueMessageFormat = "Nouveau prospect %s: %s (%s)."

	errorMessageClientNotFound  = "client_not_found"
	errorMessageDecodeLead      = "clients: decode lead payload"
	errorMessageDuplicateClient = "duplicate_client"
)

var (
	// ErrClientNotFound indicates an unknown client id.
	ErrClientNotFound = errors.New(errorMessageClientNotFound)

	errDuplicateClient = errors.New(errorMessageDuplicateClient)
)

var marketingActionsByCategory = map[model.ClientCategory]string{
	model.CategoryVendeur:  model.QueueActionPrepareListing,
	model.CategoryAcheteur: model.QueueActionPrepareBuyerSearch,
}

// IngestReport summarizes one ScanAndIngest pass.
type IngestReport struct {
	Scanned    int      `json:"scanned"`
	Created    int      `json:"created"`
	Duplicates int      `json:"duplicates"`
	Malformed  int      `json:"malformed"`
	ClientIDs  []string `json:"client_ids"`
}

// Registry owns clients_database, pending_authorizations and the assistant queues.
type Registry struct {
	log            *notifications.Log
	clients        *storage.Slot[[]model.ClientRecord]
	authorizations *storage.Slot[[]model.AuthorizationRequest]
	emailQueue     *notifications.Queue[model.QueueEntry]
	marketingQueue *notifications.Queue[model.QueueEntry]
	commands       *notifications.Queue[model.MarketingCommand]
	publisher      signals.Publisher
	logger         *zap.Logger
	clock          func() time.Time
	window         time.Duration
	ingestMutex    sync.Mutex
}

// Option customizes a Registry.
type Option func(*Registry)

// WithIngestWindow overrides DefaultIngestWindow.
func WithIngestWindow(window time.Duration) Option {
	return func(registry *Registry) {
		if window > 0 {
			registry.window = window
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(registry *Registry) {
		if clock != nil {
			registry.clock = clock
		}
	}
}

// NewRegistry binds the registry documents.
func NewRegistry(documents storage.DocumentStore, log *notifications.Log, publisher signals.Publisher, logger *zap.Logger, options ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := &Registry{
		log: log,
		clients: storage.NewSlot(documents, storage.KeyClientsDatabase, func() []model.ClientRecord {
			return []model.ClientRecord{}
		}, storage.WithSlotLogger(logger)),
		authorizations: storage.NewSlot(documents, storage.KeyPendingAuthorizations, func() []model.AuthorizationRequest {
			return []model.AuthorizationRequest{}
		}, storage.WithSlotLogger(logger)),
		emailQueue:     notifications.NewEmailAssistantQueue(documents, logger),
		marketingQueue: notifications.NewMarketingAssistantQueue(documents, logger),
		commands:       notifications.NewMarketingCommandQueue(documents, logger),
		publisher:      signals.PublisherOrDiscard(publisher),
		logger:         logger,
		clock:          func() time.Time { return time.Now().UTC() },
		window:         DefaultIngestWindow,
	}
	for _, option := range options {
		option(registry)
	}
	return registry
}

// EmailQueue exposes the email-assistant queue.
func (registry *Registry) EmailQueue() *notifications.Queue[model.QueueEntry] {
	return registry.emailQueue
}

// MarketingQueue exposes the marketing-assistant queue.
func (registry *Registry) MarketingQueue() *notifications.Queue[model.QueueEntry] {
	return registry.marketingQueue
}

// MarketingCommands exposes the marketing command queue.
func (registry *Registry) MarketingCommands() *notifications.Queue[model.MarketingCommand] {
	return registry.commands
}

// ScanAndIngest turns unprocessed lead submissions inside the window into
// clients, oldest first. A notification that already produced a client is
// only marked processed.
func (registry *Registry) ScanAndIngest(ctx context.Context) (IngestReport, error) {
	registry.ingestMutex.Lock()
	defer registry.ingestMutex.Unlock()
	if err := ctx.Err(); err != nil {
		return IngestReport{}, err
	}

	unprocessed := false
	pending := registry.log.List(ctx, notifications.Filter{
		Types:     []string{model.NotificationTypeLeadSubmitted},
		Since:     registry.clock().Add(-registry.window),
		Processed: &unprocessed,
	})
	report := IngestReport{Scanned: len(pending), ClientIDs: []string{}}

	for index := len(pending) - 1; index >= 0; index-- {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		record := pending[index]

		lead, decodeErr := decodeLead(record.Data)
		if decodeErr != nil {
			registry.logger.Warn("lead_payload_malformed", zap.String("notification_id", record.ID), zap.Error(decodeErr))
			registry.log.MarkProcessed(ctx, record)
			report.Malformed++
			continue
		}

		client, createErr := registry.createClient(ctx, record, lead)
		if errors.Is(createErr, errDuplicateClient) {
			registry.log.MarkProcessed(ctx, record)
			report.Duplicates++
			continue
		}
		if createErr != nil {
			return report, createErr
		}

		registry.log.MarkProcessed(ctx, record)
		registry.notifyAssistants(ctx, client)
		report.Created++
		report.ClientIDs = append(report.ClientIDs, client.ID)
	}

	if report.Created > 0 {
		registry.logger.Info("clients_ingested", zap.Int("created", report.Created), zap.Int("duplicates", report.Duplicates))
	}
	return report, nil
}

func (registry *Registry) createClient(ctx context.Context, record model.NotificationRecord, lead model.LeadSubmission) (model.ClientRecord, error) {
	client := BuildClient(lead, registry.clock())
	client.ID = newClientID(registry.clock())
	client.SourceNotificationID = record.ID

	_, updateErr := registry.clients.Update(ctx, func(clients *[]model.ClientRecord) error {
		for _, existing := range *clients {
			if existing.SourceNotificationID != "" && existing.SourceNotificationID == record.ID {
				return errDuplicateClient
			}
		}
		*clients = append(*clients, client)
		return nil
	})
	if updateErr != nil {
		return model.ClientRecord{}, updateErr
	}
	metrics.ObserveClientIngested(string(client.Category))
	return client, nil
}

func (registry *Registry) notifyAssistants(ctx context.Context, client model.ClientRecord) {
	now := registry.clock()

	emailEntry := model.NewQueueEntry(client, model.QueueActionSendWelcomeEmail, now)
	emailEntry.Message = fmt.Sprintf(emailQueueMessageFormat, client.Category, client.DisplayName())
	registry.emailQueue.Push(ctx, emailEntry)

	marketingAction, hasAction := marketingActionsByCategory[client.Category]
	if !hasAction {
		marketingAction = model.QueueActionFollowUp
	}
	marketingEntry := model.NewQueueEntry(client, marketingAction, now)
	marketingEntry.Message = fmt.Sprintf(marketingQueueMessageFormat, client.Category, client.DisplayName(), client.City)
	registry.marketingQueue.Push(ctx, marketingEntry)

	if client.Category == model.CategoryVendeur {
		if _, err := registry.CreateAuthorizationRequest(ctx, client); err != nil {
			registry.logger.Warn("authorization_request_failed", zap.String("client_id", client.ID), zap.Error(err))
		}
	}

	registry.publisher.Publish(signals.New(signals.TypeClientCreated, client.ID, map[string]string{
		"category": string(client.Category),
		"priority": strconv.Itoa(client.Priority),
	}))
}

// BuildClient derives a client record from a lead without assigning an id.
func BuildClient(lead model.LeadSubmission, now time.Time) model.ClientRecord {
	lead = lead.Normalize()
	name := lead.Prop1Nom
	if name == "" {
		name = AnonymousName
	}
	city := lead.Ville
	if city == "" {
		city = DefaultCity
	}
	phone := lead.ContactPhone()
	message := lead.Message
	if message == "" {
		message = lead.Commentaires
	}

	service := DetermineServiceType(lead)
	category := Classify(service, message)
	tags := Tags(service, city, message)
	if lead.PremierAchat && !containsTag(tags, TagFirstPurchase) {
		tags = append(tags, TagFirstPurchase)
	}
	if lead.Budget != "" && !containsTag(tags, TagBudgetSet) {
		tags = append(tags, TagBudgetSet)
	}

	return model.ClientRecord{
		Name:               name,
		FirstName:          lead.Prop1Prenom,
		Phone:              phone,
		Email:              lead.Prop1Email,
		Address:            lead.Adresse,
		City:               city,
		PostalCode:         lead.CodePostal,
		ServiceType:        service,
		Message:            message,
		Category:           category,
		Priority:           Priority(category, phone, lead.Prop1Email, message),
		Tags:               tags,
		CommissionEstimate: EstimateCommission(category),
		Status:             model.ClientStatusNewProspect,
		CreatedAt:          now.UTC(),
		LastActivityAt:     now.UTC(),
		Interactions:       []model.Interaction{},
	}
}

func decodeLead(payload json.RawMessage) (model.LeadSubmission, error) {
	var lead model.LeadSubmission
	if err := json.Unmarshal(payload, &lead); err != nil {
		return model.LeadSubmission{}, fmt.Errorf("%s: %w", errorMessageDecodeLead, err)
	}
	lead = lead.Normalize()
	if err := lead.Validate(); err != nil {
		return model.LeadSubmission{}, fmt.Errorf("%s: %w", errorMessageDecodeLead, err)
	}
	return lead, nil
}

func newClientID(now time.Time) string {
	return strings.ToUpper(clientIDPrefix + strconv.FormatInt(now.UnixMilli(), 36) + "_" + shortRandom())
}

func shortRandom() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func containsTag(tags []string, tag string) bool {
	for _, existing := range tags {
		if existing == tag {
			return true
		}
	}
	return false
}
