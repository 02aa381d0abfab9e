package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadloop/internal/clients"
	"github.com/MarkoPoloResearchLab/leadloop/internal/identity"
	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
	"github.com/MarkoPoloResearchLab/leadloop/internal/notifications"
	"github.com/MarkoPoloResearchLab/leadloop/internal/storage"
)

func newDatabasePath(testingT *testing.T) string {
	testingT.Helper()
	return filepath.Join(testingT.TempDir(), "leadctl.db")
}

func runLeadctl(testingT *testing.T, databasePath string, arguments ...string) (string, error) {
	testingT.Helper()
	application := NewApplication()
	rootCommand, commandErr := application.Command()
	require.NoError(testingT, commandErr)
	var output bytes.Buffer
	rootCommand.SetOut(&output)
	rootCommand.SetErr(io.Discard)
	rootCommand.SetArgs(append([]string{"--" + flagNameDatabaseDSN, databasePath}, arguments...))
	executeErr := rootCommand.Execute()
	return output.String(), executeErr
}

func decodeOutput[T any](testingT *testing.T, output string) T {
	testingT.Helper()
	var decoded T
	require.NoError(testingT, json.Unmarshal([]byte(output), &decoded))
	return decoded
}

func seedSellerLead(testingT *testing.T, databasePath string) {
	testingT.Helper()
	ctx := context.Background()
	documents, closeDocuments, openErr := storage.OpenDocumentStore(ctx, storage.BackendConfig{
		Backend:  storage.BackendSQLite,
		Database: storage.Config{DriverName: storage.DriverNameSQLite, DataSourceName: databasePath},
	})
	require.NoError(testingT, openErr)
	defer func() {
		require.NoError(testingT, closeDocuments())
	}()
	log := notifications.NewLog(documents, zap.NewNop())
	_, appendErr := log.Append(ctx, model.NotificationTypeLeadSubmitted, model.LeadSubmission{
		Adresse:   "123 Main, Lebel-sur-Quévillon",
		Prop1Nom:  "Jean Test",
		Prop1Tel1: "418-555-0000",
		Message:   "Je veux vendre ma maison",
	}, model.NotificationSourcePublicForm)
	require.NoError(testingT, appendErr)
}

func TestFlagsTogglePersistsAcrossInvocations(testingT *testing.T) {
	databasePath := newDatabasePath(testingT)

	output, err := runLeadctl(testingT, databasePath, "flags", "toggle", string(model.FlagIAAnalysis))
	require.NoError(testingT, err)
	mutation := decodeOutput[flagMutation](testingT, output)
	require.True(testingT, mutation.Applied)
	require.True(testingT, mutation.Flags.Flags[model.FlagIAAnalysis])

	output, err = runLeadctl(testingT, databasePath, "flags", "status")
	require.NoError(testingT, err)
	status := decodeOutput[model.FeatureFlagSet](testingT, output)
	require.True(testingT, status.Flags[model.FlagIAAnalysis])
}

func TestFlagsRejectUnknownNameAndUnconfirmedReset(testingT *testing.T) {
	databasePath := newDatabasePath(testingT)

	_, err := runLeadctl(testingT, databasePath, "flags", "enable", "teleportation")
	require.ErrorIs(testingT, err, errUnknownFlag)

	_, err = runLeadctl(testingT, databasePath, "flags", "reset")
	require.ErrorIs(testingT, err, errConfirmationRequired)

	output, err := runLeadctl(testingT, databasePath, "flags", "reset", "--"+flagNameConfirm)
	require.NoError(testingT, err)
	status := decodeOutput[model.FeatureFlagSet](testingT, output)
	require.True(testingT, status.Flags[model.FlagFormProcessing])
}

func TestFlagsEmergencyKeepsEssentials(testingT *testing.T) {
	databasePath := newDatabasePath(testingT)

	output, err := runLeadctl(testingT, databasePath, "flags", "emergency")
	require.NoError(testingT, err)
	status := decodeOutput[model.FeatureFlagSet](testingT, output)
	for _, essential := range model.EssentialFlags() {
		require.True(testingT, status.Flags[essential], string(essential))
	}
	require.False(testingT, status.Flags[model.FlagAutoEmail])
}

func TestIngestThenResolveAuthorization(testingT *testing.T) {
	databasePath := newDatabasePath(testingT)
	seedSellerLead(testingT, databasePath)

	output, err := runLeadctl(testingT, databasePath, "ingest")
	require.NoError(testingT, err)
	report := decodeOutput[clients.IngestReport](testingT, output)
	require.Equal(testingT, 1, report.Created)

	output, err = runLeadctl(testingT, databasePath, "clients", "list", "--"+flagNameCategory, string(model.CategoryVendeur))
	require.NoError(testingT, err)
	require.Len(testingT, decodeOutput[[]model.ClientRecord](testingT, output), 1)

	output, err = runLeadctl(testingT, databasePath, "notifications", "--"+flagNameType, model.NotificationTypeLeadSubmitted, "--"+flagNameUnprocessed)
	require.NoError(testingT, err)
	require.Empty(testingT, decodeOutput[[]model.NotificationRecord](testingT, output))

	output, err = runLeadctl(testingT, databasePath, "authorizations", "list", "--"+flagNamePending)
	require.NoError(testingT, err)
	pending := decodeOutput[[]model.AuthorizationRequest](testingT, output)
	require.Len(testingT, pending, 1)

	_, err = runLeadctl(testingT, databasePath, "authorizations", "resolve", pending[0].ID, "peut-etre")
	require.ErrorIs(testingT, err, model.ErrInvalidAuthorizationDecision)

	output, err = runLeadctl(testingT, databasePath, "authorizations", "resolve", pending[0].ID, string(model.AuthorizationAuthorize))
	require.NoError(testingT, err)
	resolved := decodeOutput[model.AuthorizationRequest](testingT, output)
	require.Equal(testingT, model.AuthorizationAuthorize, resolved.Status)

	_, err = runLeadctl(testingT, databasePath, "authorizations", "resolve", pending[0].ID, string(model.AuthorizationRefuse))
	require.ErrorIs(testingT, err, clients.ErrAuthorizationClosed)
}

func TestClientsStatsAndIncidents(testingT *testing.T) {
	databasePath := newDatabasePath(testingT)
	seedSellerLead(testingT, databasePath)
	_, err := runLeadctl(testingT, databasePath, "ingest")
	require.NoError(testingT, err)

	output, err := runLeadctl(testingT, databasePath, "clients", "stats")
	require.NoError(testingT, err)
	stats := decodeOutput[clients.Stats](testingT, output)
	require.Equal(testingT, 1, stats.Total)
	require.Equal(testingT, 1, stats.Vendeurs)

	output, err = runLeadctl(testingT, databasePath, "incidents")
	require.NoError(testingT, err)
	status := decodeOutput[identity.Status](testingT, output)
	require.True(testingT, status.Active)
}

func TestOutputFormats(testingT *testing.T) {
	databasePath := newDatabasePath(testingT)

	output, err := runLeadctl(testingT, databasePath, "--"+flagNameOutput, outputFormatYAML, "flags", "status")
	require.NoError(testingT, err)
	require.Contains(testingT, output, "ia_analysis: false")

	_, err = runLeadctl(testingT, databasePath, "--"+flagNameOutput, "xml", "flags", "status")
	require.ErrorIs(testingT, err, errUnsupportedOutput)
}

func TestMissingDataSourceFails(testingT *testing.T) {
	_, err := runLeadctl(testingT, "", "flags", "status")
	require.ErrorIs(testingT, err, storage.ErrMissingDataSourceName)
}
