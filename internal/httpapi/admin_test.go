package httpapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/leadloop/internal/clients"
	"github.com/MarkoPoloResearchLab/leadloop/internal/identity"
	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
	"github.com/MarkoPoloResearchLab/leadloop/internal/storage"
)

type flagMutationResponse struct {
	Applied bool                 `json:"applied"`
	Flags   model.FeatureFlagSet `json:"flags"`
}

type clientsResponse struct {
	Clients []model.ClientRecord `json:"clients"`
}

type authorizationsResponse struct {
	Authorizations []model.AuthorizationRequest `json:"authorizations"`
}

type notificationsResponse struct {
	Notifications []model.NotificationRecord `json:"notifications"`
}

func ingestSeller(testingT *testing.T, harness apiHarness) model.ClientRecord {
	testingT.Helper()
	requireStatus(testingT, harness.do(testingT, http.MethodPost, "/api/leads", sellerLeadPayload(), nil), http.StatusAccepted)

	recorder := harness.operator(testingT, http.MethodPost, "/api/admin/ingest", nil)
	requireStatus(testingT, recorder, http.StatusOK)
	report := decodeBody[clients.IngestReport](testingT, recorder)
	require.Equal(testingT, 1, report.Created)
	require.Len(testingT, report.ClientIDs, 1)

	client, found := harness.registry.Client(context.Background(), report.ClientIDs[0])
	require.True(testingT, found)
	return client
}

func TestFlagEndpoints(testingT *testing.T) {
	harness := newAPIHarness(testingT, testAccessCode)

	recorder := harness.operator(testingT, http.MethodPost, "/api/admin/flags/ia_analysis/toggle", nil)
	requireStatus(testingT, recorder, http.StatusOK)
	mutation := decodeBody[flagMutationResponse](testingT, recorder)
	require.True(testingT, mutation.Applied)
	require.True(testingT, mutation.Flags.Flags[model.FlagIAAnalysis])

	recorder = harness.operator(testingT, http.MethodPost, "/api/admin/flags/ia_analysis/enable", nil)
	requireStatus(testingT, recorder, http.StatusOK)
	require.True(testingT, decodeBody[flagMutationResponse](testingT, recorder).Flags.Flags[model.FlagIAAnalysis])

	recorder = harness.operator(testingT, http.MethodPost, "/api/admin/flags/ia_analysis/disable", nil)
	requireStatus(testingT, recorder, http.StatusOK)
	require.True(testingT, decodeBody[flagMutationResponse](testingT, recorder).Applied)
	require.False(testingT, harness.flags.IsEnabled(model.FlagIAAnalysis))

	recorder = harness.operator(testingT, http.MethodPost, "/api/admin/flags/teleportation/toggle", nil)
	requireStatus(testingT, recorder, http.StatusNotFound)
	require.Equal(testingT, errorValueUnknownFlag, decodeBody[map[string]string](testingT, recorder)[jsonKeyError])
}

func TestEmergencyAndResetEndpoints(testingT *testing.T) {
	harness := newAPIHarness(testingT, testAccessCode)
	harness.flags.Enable(context.Background(), model.FlagAutoEmail)

	recorder := harness.operator(testingT, http.MethodPost, "/api/admin/flags/emergency", nil)
	requireStatus(testingT, recorder, http.StatusOK)
	flagSet := decodeBody[model.FeatureFlagSet](testingT, recorder)
	require.False(testingT, flagSet.Flags[model.FlagAutoEmail])
	require.True(testingT, flagSet.Flags[model.FlagFormProcessing])
	require.True(testingT, flagSet.Flags[model.FlagManualMode])

	recorder = harness.operator(testingT, http.MethodPost, "/api/admin/flags/reset", map[string]bool{"confirm": false})
	requireStatus(testingT, recorder, http.StatusBadRequest)
	require.Equal(testingT, errorValueConfirmationRequired, decodeBody[map[string]string](testingT, recorder)[jsonKeyError])

	recorder = harness.operator(testingT, http.MethodPost, "/api/admin/flags/reset", map[string]bool{"confirm": true})
	requireStatus(testingT, recorder, http.StatusOK)
	flagSet = decodeBody[model.FeatureFlagSet](testingT, recorder)
	require.Equal(testingT, model.DefaultFlagsConfiguredBy, flagSet.ConfiguredBy)
	require.True(testingT, flagSet.Flags[model.FlagContactForms])
}

func TestNotificationListingFilters(testingT *testing.T) {
	harness := newAPIHarness(testingT, testAccessCode)
	ingestSeller(testingT, harness)

	recorder := harness.operator(testingT, http.MethodGet, "/api/admin/notifications?type=NEW_FORM&processed=true", nil)
	requireStatus(testingT, recorder, http.StatusOK)
	require.Len(testingT, decodeBody[notificationsResponse](testingT, recorder).Notifications, 1)

	recorder = harness.operator(testingT, http.MethodGet, "/api/admin/notifications?processed=false", nil)
	requireStatus(testingT, recorder, http.StatusOK)
	require.Empty(testingT, decodeBody[notificationsResponse](testingT, recorder).Notifications)

	invalidFilters := []struct {
		name          string
		query         string
		expectedError string
	}{
		{name: "since", query: "since=yesterday", expectedError: errorValueInvalidSince},
		{name: "processed", query: "processed=peut-etre", expectedError: errorValueInvalidProcessed},
	}
	for _, testCase := range invalidFilters {
		testCase := testCase
		testingT.Run(testCase.name, func(testingT *testing.T) {
			recorder := harness.operator(testingT, http.MethodGet, "/api/admin/notifications?"+testCase.query, nil)
			requireStatus(testingT, recorder, http.StatusBadRequest)
			require.Equal(testingT, testCase.expectedError, decodeBody[map[string]string](testingT, recorder)[jsonKeyError])
		})
	}
}

func TestClientEndpoints(testingT *testing.T) {
	harness := newAPIHarness(testingT, testAccessCode)
	client := ingestSeller(testingT, harness)
	require.Equal(testingT, model.CategoryVendeur, client.Category)

	recorder := harness.operator(testingT, http.MethodGet, "/api/admin/clients?q=jean", nil)
	requireStatus(testingT, recorder, http.StatusOK)
	require.Len(testingT, decodeBody[clientsResponse](testingT, recorder).Clients, 1)

	recorder = harness.operator(testingT, http.MethodGet, "/api/admin/clients?category=acheteur", nil)
	requireStatus(testingT, recorder, http.StatusOK)
	require.Empty(testingT, decodeBody[clientsResponse](testingT, recorder).Clients)

	recorder = harness.operator(testingT, http.MethodGet, "/api/admin/clients/stats", nil)
	requireStatus(testingT, recorder, http.StatusOK)
	stats := decodeBody[clients.Stats](testingT, recorder)
	require.Equal(testingT, 1, stats.Total)
	require.Equal(testingT, 1, stats.Vendeurs)

	recorder = harness.operator(testingT, http.MethodGet, "/api/admin/clients/"+client.ID, nil)
	requireStatus(testingT, recorder, http.StatusOK)
	require.Equal(testingT, client.ID, decodeBody[model.ClientRecord](testingT, recorder).ID)

	recorder = harness.operator(testingT, http.MethodGet, "/api/admin/clients/CLI_MISSING", nil)
	requireStatus(testingT, recorder, http.StatusNotFound)

	recorder = harness.operator(testingT, http.MethodPatch, "/api/admin/clients/"+client.ID+"/status", map[string]string{"statut": "contacte"})
	requireStatus(testingT, recorder, http.StatusOK)
	require.Equal(testingT, model.ClientStatusContacted, decodeBody[model.ClientRecord](testingT, recorder).Status)

	recorder = harness.operator(testingT, http.MethodPatch, "/api/admin/clients/"+client.ID+"/status", map[string]string{"statut": "vendu"})
	requireStatus(testingT, recorder, http.StatusBadRequest)
	require.Equal(testingT, errorValueInvalidStatus, decodeBody[map[string]string](testingT, recorder)[jsonKeyError])

	recorder = harness.operator(testingT, http.MethodPost, "/api/admin/clients/"+client.ID+"/interactions", map[string]string{"type": "appel", "note": "Rappel demain"})
	requireStatus(testingT, recorder, http.StatusCreated)
	require.Len(testingT, decodeBody[model.ClientRecord](testingT, recorder).Interactions, 1)

	recorder = harness.operator(testingT, http.MethodPost, "/api/admin/clients/"+client.ID+"/interactions", map[string]string{"note": "sans type"})
	requireStatus(testingT, recorder, http.StatusBadRequest)
}

func TestAuthorizationEndpoints(testingT *testing.T) {
	harness := newAPIHarness(testingT, testAccessCode)
	ingestSeller(testingT, harness)

	recorder := harness.operator(testingT, http.MethodGet, "/api/admin/authorizations?pending=true", nil)
	requireStatus(testingT, recorder, http.StatusOK)
	pending := decodeBody[authorizationsResponse](testingT, recorder).Authorizations
	require.Len(testingT, pending, 1)
	authorizationID := pending[0].ID

	recorder = harness.operator(testingT, http.MethodPost, "/api/admin/authorizations/"+authorizationID, map[string]string{"decision": "peut-etre"})
	requireStatus(testingT, recorder, http.StatusBadRequest)
	require.Equal(testingT, errorValueInvalidDecision, decodeBody[map[string]string](testingT, recorder)[jsonKeyError])

	recorder = harness.operator(testingT, http.MethodPost, "/api/admin/authorizations/AUTH_MISSING", map[string]string{"decision": "autoriser"})
	requireStatus(testingT, recorder, http.StatusNotFound)

	recorder = harness.operator(testingT, http.MethodPost, "/api/admin/authorizations/"+authorizationID, map[string]string{"decision": "autoriser"})
	requireStatus(testingT, recorder, http.StatusOK)
	require.Equal(testingT, model.AuthorizationAuthorize, decodeBody[model.AuthorizationRequest](testingT, recorder).Status)

	recorder = harness.operator(testingT, http.MethodPost, "/api/admin/authorizations/"+authorizationID, map[string]string{"decision": "refuser"})
	requireStatus(testingT, recorder, http.StatusConflict)

	recorder = harness.operator(testingT, http.MethodGet, "/api/admin/queues/commands", nil)
	requireStatus(testingT, recorder, http.StatusOK)
	commands := decodeBody[struct {
		Entries []model.MarketingCommand `json:"entries"`
	}](testingT, recorder).Entries
	require.Len(testingT, commands, 1)
	require.Equal(testingT, authorizationID, commands[0].AuthorizationID)

	recorder = harness.operator(testingT, http.MethodGet, "/api/admin/authorizations", nil)
	requireStatus(testingT, recorder, http.StatusOK)
	require.Len(testingT, decodeBody[authorizationsResponse](testingT, recorder).Authorizations, 1)
}

func TestQueueEndpoints(testingT *testing.T) {
	harness := newAPIHarness(testingT, testAccessCode)
	ingestSeller(testingT, harness)

	testCases := []struct {
		name           string
		expectedStatus int
		expectedCount  int
	}{
		{name: queueNameEmail, expectedStatus: http.StatusOK, expectedCount: 1},
		{name: queueNameMarketing, expectedStatus: http.StatusOK, expectedCount: 1},
		{name: queueNameMarketingCommand, expectedStatus: http.StatusOK, expectedCount: 0},
		{name: queueNameEmailHistory, expectedStatus: http.StatusOK, expectedCount: 0},
		{name: "fax", expectedStatus: http.StatusNotFound},
	}
	for _, testCase := range testCases {
		testCase := testCase
		testingT.Run(testCase.name, func(testingT *testing.T) {
			recorder := harness.operator(testingT, http.MethodGet, "/api/admin/queues/"+testCase.name, nil)
			requireStatus(testingT, recorder, testCase.expectedStatus)
			if testCase.expectedStatus != http.StatusOK {
				return
			}
			entries := decodeBody[struct {
				Entries []map[string]any `json:"entries"`
			}](testingT, recorder).Entries
			require.Len(testingT, entries, testCase.expectedCount)
		})
	}
}

func TestIdentityStatusReportsBlockedAttempts(testingT *testing.T) {
	harness := newAPIHarness(testingT, testAccessCode)
	lead := sellerLeadPayload()
	lead.Adresse = "10 rue Sainte-Catherine, Montréal"
	requireStatus(testingT, harness.do(testingT, http.MethodPost, "/api/leads", lead, nil), http.StatusUnprocessableEntity)

	recorder := harness.operator(testingT, http.MethodGet, "/api/admin/identity", nil)
	requireStatus(testingT, recorder, http.StatusOK)
	status := decodeBody[identity.Status](testingT, recorder)
	require.True(testingT, status.Active)
	require.Len(testingT, status.BlockedAttempts, 1)
}

func TestDocumentEndpoints(testingT *testing.T) {
	harness := newAPIHarness(testingT, testAccessCode)

	recorder := harness.operator(testingT, http.MethodGet, "/api/admin/documents/visual_config", nil)
	requireStatus(testingT, recorder, http.StatusOK)
	require.JSONEq(testingT, "null", string(decodeBody[documentResponse](testingT, recorder).Body))

	recorder = harness.operator(testingT, http.MethodPut, "/api/admin/documents/visual_config", `{"theme":"sombre"}`)
	requireStatus(testingT, recorder, http.StatusOK)

	recorder = harness.operator(testingT, http.MethodGet, "/api/admin/documents/visual_config", nil)
	requireStatus(testingT, recorder, http.StatusOK)
	document := decodeBody[documentResponse](testingT, recorder)
	require.Equal(testingT, storage.KeyVisualConfig, document.Key)
	require.Equal(testingT, int64(1), document.Version)
	require.JSONEq(testingT, `{"theme":"sombre"}`, string(document.Body))

	recorder = harness.operator(testingT, http.MethodPut, "/api/admin/documents/visual_config", `{"theme":`)
	requireStatus(testingT, recorder, http.StatusBadRequest)

	recorder = harness.operator(testingT, http.MethodPut, "/api/admin/documents/features_config", `{}`)
	requireStatus(testingT, recorder, http.StatusForbidden)

	recorder = harness.operator(testingT, http.MethodGet, "/api/admin/documents/secrets", nil)
	requireStatus(testingT, recorder, http.StatusNotFound)
}
