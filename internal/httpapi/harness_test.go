package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadloop/internal/assistant"
	"github.com/MarkoPoloResearchLab/leadloop/internal/clients"
	"github.com/MarkoPoloResearchLab/leadloop/internal/features"
	"github.com/MarkoPoloResearchLab/leadloop/internal/identity"
	"github.com/MarkoPoloResearchLab/leadloop/internal/intake"
	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
	"github.com/MarkoPoloResearchLab/leadloop/internal/notifications"
	"github.com/MarkoPoloResearchLab/leadloop/internal/signals"
	"github.com/MarkoPoloResearchLab/leadloop/internal/storage"
	"github.com/MarkoPoloResearchLab/leadloop/internal/testutil"
)

const (
	testAccessCode    = "code-operateur"
	testSessionSecret = "12345678901234567890123456789012"
)

type apiHarness struct {
	router    *gin.Engine
	documents storage.DocumentStore
	flags     *features.Store
	log       *notifications.Log
	registry  *clients.Registry
	guard     *identity.Guard
	bus       *signals.Bus
}

func newAPIHarness(testingT *testing.T, accessCode string) apiHarness {
	testingT.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	logger := zap.NewNop()
	documents := testutil.NewDocumentStore(testingT)
	bus := signals.NewBus()
	testingT.Cleanup(bus.Close)

	flags := features.NewStore(ctx, documents, bus, logger)
	log := notifications.NewLog(documents, logger)
	guard := identity.NewGuard(model.DefaultIdentityConstraint(), documents, bus, logger)
	registry := clients.NewRegistry(documents, log, bus, logger)
	generator := assistant.NewGenerator(nil, 0, logger)
	controller := intake.NewController(documents, flags, guard, generator, log, bus, logger)

	operatorAuth := NewOperatorAuth(logger, accessCode, testSessionSecret)
	intakeHandlers := NewIntakeHandlers(controller, logger)
	adminHandlers := NewAdminHandlers(AdminDependencies{
		Flags:        flags,
		Log:          log,
		Registry:     registry,
		Guard:        guard,
		Documents:    documents,
		EmailHistory: notifications.NewEmailHistory(documents, logger),
	}, logger)

	router := gin.New()
	router.Use(RequestMetrics())
	router.POST("/api/leads", intakeHandlers.SubmitLead)
	router.GET("/api/leads/draft", intakeHandlers.LoadDraft)
	router.PUT("/api/leads/draft", intakeHandlers.SaveDraft)
	router.DELETE("/api/leads/draft", intakeHandlers.ClearDraft)
	router.POST("/api/operator/login", operatorAuth.Login)
	router.POST("/api/operator/logout", operatorAuth.Logout)

	admin := router.Group("/api/admin")
	admin.Use(operatorAuth.RequireOperatorJSON())
	admin.GET("/flags", adminHandlers.FlagStatus)
	admin.POST("/flags/emergency", adminHandlers.EmergencyMode)
	admin.POST("/flags/reset", adminHandlers.ResetFlags)
	admin.POST("/flags/:name/toggle", adminHandlers.ToggleFlag)
	admin.POST("/flags/:name/enable", adminHandlers.EnableFlag)
	admin.POST("/flags/:name/disable", adminHandlers.DisableFlag)
	admin.GET("/notifications", adminHandlers.ListNotifications)
	admin.POST("/ingest", adminHandlers.Ingest)
	admin.GET("/clients", adminHandlers.ListClients)
	admin.GET("/clients/stats", adminHandlers.ClientStats)
	admin.GET("/clients/:id", adminHandlers.GetClient)
	admin.PATCH("/clients/:id/status", adminHandlers.UpdateClientStatus)
	admin.POST("/clients/:id/interactions", adminHandlers.AppendInteraction)
	admin.GET("/authorizations", adminHandlers.ListAuthorizations)
	admin.POST("/authorizations/:id", adminHandlers.ResolveAuthorization)
	admin.GET("/identity", adminHandlers.IdentityStatus)
	admin.GET("/queues/:name", adminHandlers.ListQueue)
	admin.GET("/documents/:key", adminHandlers.GetDocument)
	admin.PUT("/documents/:key", adminHandlers.PutDocument)

	return apiHarness{
		router:    router,
		documents: documents,
		flags:     flags,
		log:       log,
		registry:  registry,
		guard:     guard,
		bus:       bus,
	}
}

func (harness apiHarness) do(testingT *testing.T, method string, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	testingT.Helper()
	var reader *bytes.Reader
	switch typed := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(typed))
	default:
		encoded, err := json.Marshal(typed)
		require.NoError(testingT, err)
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	for name, value := range headers {
		request.Header.Set(name, value)
	}
	recorder := httptest.NewRecorder()
	harness.router.ServeHTTP(recorder, request)
	return recorder
}

func (harness apiHarness) operator(testingT *testing.T, method string, path string, body any) *httptest.ResponseRecorder {
	testingT.Helper()
	return harness.do(testingT, method, path, body, map[string]string{"Authorization": bearerPrefix + testAccessCode})
}

func decodeBody[T any](testingT *testing.T, recorder *httptest.ResponseRecorder) T {
	testingT.Helper()
	var decoded T
	require.NoError(testingT, json.Unmarshal(recorder.Body.Bytes(), &decoded))
	return decoded
}

func sellerLeadPayload() model.LeadSubmission {
	return model.LeadSubmission{
		Adresse:   "123 Main, Lebel-sur-Quévillon",
		Prop1Nom:  "Jean Test",
		Prop1Tel1: "418-555-0000",
		Message:   "Je veux vendre ma maison",
	}
}

func requireStatus(testingT *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	testingT.Helper()
	require.Equal(testingT, expected, recorder.Code, recorder.Body.String())
}
