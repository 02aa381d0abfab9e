package clients_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadloop/internal/clients"
	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
	"github.com/MarkoPoloResearchLab/leadloop/internal/notifications"
	"github.com/MarkoPoloResearchLab/leadloop/internal/signals"
	"github.com/MarkoPoloResearchLab/leadloop/internal/storage"
	"github.com/MarkoPoloResearchLab/leadloop/internal/testutil"
)

type recordingPublisher struct {
	mutex   sync.Mutex
	signals []signals.Signal
}

func (publisher *recordingPublisher) Publish(signal signals.Signal) {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	publisher.signals = append(publisher.signals, signal)
}

func (publisher *recordingPublisher) count(signalType signals.Type) int {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	total := 0
	for _, signal := range publisher.signals {
		if signal.Type == signalType {
			total++
		}
	}
	return total
}

type manualClock struct {
	mutex sync.Mutex
	now   time.Time
}

func (clock *manualClock) Now() time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return clock.now
}

func (clock *manualClock) Advance(duration time.Duration) {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	clock.now = clock.now.Add(duration)
}

type registryFixture struct {
	documents storage.DocumentStore
	log       *notifications.Log
	registry  *clients.Registry
	publisher *recordingPublisher
	clock     *manualClock
}

func newRegistryFixture(testingT *testing.T) registryFixture {
	testingT.Helper()
	documents := testutil.NewDocumentStore(testingT)
	clock := &manualClock{now: time.Date(2026, time.March, 2, 14, 0, 0, 0, time.UTC)}
	publisher := &recordingPublisher{}
	log := notifications.NewLog(documents, zap.NewNop(), notifications.WithLogClock(clock.Now))
	registry := clients.NewRegistry(documents, log, publisher, zap.NewNop(), clients.WithClock(clock.Now))
	return registryFixture{documents: documents, log: log, registry: registry, publisher: publisher, clock: clock}
}

func sellerLead() model.LeadSubmission {
	return model.LeadSubmission{
		Adresse:   "123 Main, Lebel-sur-Quévillon",
		Prop1Nom:  "Jean Test",
		Prop1Tel1: "418-555-0000",
		Message:   "Je veux vendre ma maison",
	}
}

func (fixture registryFixture) submit(testingT *testing.T, lead model.LeadSubmission) model.NotificationRecord {
	testingT.Helper()
	record, err := fixture.log.Append(context.Background(), model.NotificationTypeLeadSubmitted, lead, model.NotificationSourcePublicForm)
	require.NoError(testingT, err)
	return record
}

func TestScanAndIngestCreatesSellerWithAuthorization(testingT *testing.T) {
	fixture := newRegistryFixture(testingT)
	ctx := context.Background()
	record := fixture.submit(testingT, sellerLead())

	report, err := fixture.registry.ScanAndIngest(ctx)
	require.NoError(testingT, err)
	require.Equal(testingT, 1, report.Created)

	created := fixture.registry.Clients(ctx)
	require.Len(testingT, created, 1)
	client := created[0]
	require.Equal(testingT, model.CategoryVendeur, client.Category)
	require.GreaterOrEqual(testingT, client.Priority, 4)
	require.Equal(testingT, record.ID, client.SourceNotificationID)
	require.Equal(testingT, model.ClientStatusNewProspect, client.Status)
	require.Contains(testingT, client.ID, "CLI_")
	require.InDelta(testingT, 11750.0, client.CommissionEstimate, 0.001)
	require.Equal(testingT, clients.DefaultCity, client.City)

	pending := fixture.registry.PendingAuthorizations(ctx)
	require.Len(testingT, pending, 1)
	require.Equal(testingT, client.ID, pending[0].ClientID)
	require.Equal(testingT, model.AuthorizationActions(), pending[0].Actions)

	processed := true
	require.Len(testingT, fixture.log.List(ctx, notifications.Filter{Processed: &processed}), 1)

	emailEntries := fixture.registry.EmailQueue().List(ctx)
	require.Len(testingT, emailEntries, 1)
	require.Equal(testingT, model.QueueActionSendWelcomeEmail, emailEntries[0].Action)
	marketingEntries := fixture.registry.MarketingQueue().List(ctx)
	require.Len(testingT, marketingEntries, 1)
	require.Equal(testingT, model.QueueActionPrepareListing, marketingEntries[0].Action)

	require.Equal(testingT, 1, fixture.publisher.count(signals.TypeClientCreated))
	require.Equal(testingT, 1, fixture.publisher.count(signals.TypeAuthorizationRequested))
}

func TestScanAndIngestIsIdempotent(testingT *testing.T) {
	fixture := newRegistryFixture(testingT)
	ctx := context.Background()
	fixture.submit(testingT, sellerLead())

	_, err := fixture.registry.ScanAndIngest(ctx)
	require.NoError(testingT, err)
	second, err := fixture.registry.ScanAndIngest(ctx)
	require.NoError(testingT, err)

	require.Equal(testingT, 0, second.Scanned)
	require.Len(testingT, fixture.registry.Clients(ctx), 1)
	require.Len(testingT, fixture.registry.Authorizations(ctx), 1)
}

func TestScanAndIngestSkipsNotificationThatAlreadyProducedClient(testingT *testing.T) {
	fixture := newRegistryFixture(testingT)
	ctx := context.Background()
	fixture.submit(testingT, sellerLead())

	_, err := fixture.registry.ScanAndIngest(ctx)
	require.NoError(testingT, err)

	// Simulate a lost mark-processed write from another process.
	logSlot := storage.NewSlot(fixture.documents, storage.KeyNotificationLog, func() []model.NotificationRecord {
		return []model.NotificationRecord{}
	})
	_, err = logSlot.Update(ctx, func(records *[]model.NotificationRecord) error {
		for index := range *records {
			(*records)[index].Processed = false
		}
		return nil
	})
	require.NoError(testingT, err)

	report, err := fixture.registry.ScanAndIngest(ctx)
	require.NoError(testingT, err)
	require.Equal(testingT, 1, report.Duplicates)
	require.Equal(testingT, 0, report.Created)
	require.Len(testingT, fixture.registry.Clients(ctx), 1)

	processed := false
	require.Empty(testingT, fixture.log.List(ctx, notifications.Filter{Processed: &processed}))
}

func TestScanAndIngestHonorsWindowAndType(testingT *testing.T) {
	fixture := newRegistryFixture(testingT)
	ctx := context.Background()
	fixture.submit(testingT, sellerLead())
	_, err := fixture.log.Append(ctx, model.NotificationTypeFicheAnalyzed, map[string]string{"type_client": "PROSPECT"}, model.NotificationSourceAssistant)
	require.NoError(testingT, err)

	fixture.clock.Advance(clients.DefaultIngestWindow + time.Minute)
	report, err := fixture.registry.ScanAndIngest(ctx)
	require.NoError(testingT, err)
	require.Equal(testingT, 0, report.Scanned)
	require.Empty(testingT, fixture.registry.Clients(ctx))
}

func TestScanAndIngestMarksMalformedPayloadProcessed(testingT *testing.T) {
	fixture := newRegistryFixture(testingT)
	ctx := context.Background()
	_, err := fixture.log.Append(ctx, model.NotificationTypeLeadSubmitted, map[string]any{"prop1Nom": 42}, model.NotificationSourcePublicForm)
	require.NoError(testingT, err)
	_, err = fixture.log.Append(ctx, model.NotificationTypeLeadSubmitted, map[string]string{}, model.NotificationSourcePublicForm)
	require.NoError(testingT, err)

	report, err := fixture.registry.ScanAndIngest(ctx)
	require.NoError(testingT, err)
	require.Equal(testingT, 2, report.Malformed)
	require.Empty(testingT, fixture.registry.Clients(ctx))

	processed := false
	require.Empty(testingT, fixture.log.List(ctx, notifications.Filter{Processed: &processed}))
}

func TestScanAndIngestRoutesBuyerWithoutAuthorization(testingT *testing.T) {
	fixture := newRegistryFixture(testingT)
	ctx := context.Background()
	fixture.submit(testingT, model.LeadSubmission{
		Prop1Nom:    "Tremblay",
		Prop1Prenom: "Marie",
		Prop1Email:  "marie@example.com",
		Prop1Tel1:   "418 555 1234",
		Ville:       "Matagami",
		Message:     "Je cherche maison avec garage",
	})

	_, err := fixture.registry.ScanAndIngest(ctx)
	require.NoError(testingT, err)

	created := fixture.registry.Clients(ctx)
	require.Len(testingT, created, 1)
	require.Equal(testingT, model.CategoryAcheteur, created[0].Category)
	require.Equal(testingT, 4, created[0].Priority)
	require.Equal(testingT, "Marie Tremblay", created[0].DisplayName())
	require.Empty(testingT, fixture.registry.Authorizations(ctx))
	require.Equal(testingT, model.QueueActionPrepareBuyerSearch, fixture.registry.MarketingQueue().List(ctx)[0].Action)
}

func TestScanAndIngestStopsOnCanceledContext(testingT *testing.T) {
	fixture := newRegistryFixture(testingT)
	fixture.submit(testingT, sellerLead())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fixture.registry.ScanAndIngest(ctx)
	require.ErrorIs(testingT, err, context.Canceled)
}

func TestBuildClientDefaults(testingT *testing.T) {
	now := time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC)
	client := clients.BuildClient(model.LeadSubmission{Prop1Tel2: "418-555-9999", Commentaires: "Info", PremierAchat: true}, now)

	require.Equal(testingT, clients.AnonymousName, client.Name)
	require.Equal(testingT, "418-555-9999", client.Phone)
	require.Equal(testingT, "Info", client.Message)
	require.Equal(testingT, model.CategoryInformation, client.Category)
	require.True(testingT, client.HasTag(clients.TagFirstPurchase))
	require.Equal(testingT, now, client.CreatedAt)
}
