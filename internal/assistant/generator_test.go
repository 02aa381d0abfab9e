package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
)

type stubCompleter struct {
	response string
	err      error
	delay    time.Duration
	requests []CompletionRequest
}

func (completer *stubCompleter) Complete(ctx context.Context, request CompletionRequest) (string, error) {
	completer.requests = append(completer.requests, request)
	if completer.delay > 0 {
		select {
		case <-time.After(completer.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return completer.response, completer.err
}

var testLead = model.LeadSubmission{
	Adresse:              "123 Main, Lebel-sur-Quévillon",
	Prop1Nom:             "Jean Test",
	EvaluationMunicipale: "620000",
}

func TestAnalyzeUsesCompletionJSON(t *testing.T) {
	completer := &stubCompleter{response: "Analyse:\n{\"type_client\":\"vendeur\",\"priorite\":\"haute\",\"budget_estime\":620000,\"points_interessants\":[\"Grand terrain\"],\"recommandations\":[\"Appeler\"],\"score_qualite\":8}"}
	generator := NewGenerator(completer, time.Second, zap.NewNop())

	analysis := generator.Analyze(context.Background(), testLead)

	require.Equal(t, model.AnalysisSourceAI, analysis.Source)
	require.Equal(t, "VENDEUR", analysis.ClientType)
	require.Equal(t, "HAUTE", analysis.Priority)
	require.Equal(t, "620000", analysis.BudgetEstimate)
	require.Equal(t, []string{"Grand terrain"}, analysis.AttentionPoints)
	require.Equal(t, 8, analysis.QualityScore)

	require.Len(t, completer.requests, 1)
	require.Equal(t, int64(500), completer.requests[0].MaxTokens)
	require.InDelta(t, 0.3, completer.requests[0].Temperature, 0.0001)
	require.NotEmpty(t, completer.requests[0].System)
}

func TestAnalyzeFallsBack(t *testing.T) {
	testCases := []struct {
		name      string
		completer Completer
	}{
		{name: "no completer", completer: nil},
		{name: "call error", completer: &stubCompleter{err: errors.New("status 500")}},
		{name: "no json", completer: &stubCompleter{response: "Désolé, je ne peux pas."}},
		{name: "wrong shape", completer: &stubCompleter{response: `{"foo":"bar"}`}},
		{name: "timeout", completer: &stubCompleter{response: `{"type_client":"VENDEUR"}`, delay: time.Second}},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(testingT *testing.T) {
			generator := NewGenerator(testCase.completer, 20*time.Millisecond, zap.NewNop())
			analysis := generator.Analyze(context.Background(), testLead)
			require.Equal(testingT, BasicAnalysis(testLead), analysis)
		})
	}
}

func TestComposeWelcomeEmail(t *testing.T) {
	entry := model.QueueEntry{ClientName: "Jean Test", ClientEmail: "jean@example.com", Category: model.CategoryVendeur}

	aiGenerator := NewGenerator(&stubCompleter{response: `{"subject":"Bienvenue","body":"Bonjour Jean"}`}, time.Second, nil)
	draft := aiGenerator.ComposeWelcomeEmail(context.Background(), entry)
	require.Equal(t, model.EmailDraft{To: "jean@example.com", Subject: "Bienvenue", Body: "Bonjour Jean", Source: model.AnalysisSourceAI}, draft)

	fallbackGenerator := NewGenerator(&stubCompleter{response: `{"subject":"Bienvenue"}`}, time.Second, nil)
	require.Equal(t, BasicWelcomeEmail(entry), fallbackGenerator.ComposeWelcomeEmail(context.Background(), entry))
}

func TestNewGeneratorDefaults(t *testing.T) {
	generator := NewGenerator(nil, 0, nil)
	require.Equal(t, DefaultTimeout, generator.timeout)
	require.False(t, generator.Enabled())
}
