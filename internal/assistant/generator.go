package assistant

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadloop/internal/metrics"
	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
)

const (
	DefaultTimeout      = 20 * time.Second
	analysisMaxTokens   = 500
	analysisTemperature = 0.3
	emailMaxTokens      = 600
	emailTemperature    = 0.4

	completionResultSuccess  = "success"
	completionResultFailure  = "failure"
	completionResultFallback = "fallback"
)

// Generator turns fiches and queue entries into operator-facing content.
// Every method returns usable output; completion failures are logged and replaced
// by the deterministic local rendition.
type Generator struct {
	completer Completer
	timeout   time.Duration
	logger    *zap.Logger
}

// NewGenerator accepts a nil completer, in which case only local output is produced.
func NewGenerator(completer Completer, timeout time.Duration, logger *zap.Logger) *Generator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{completer: completer, timeout: timeout, logger: logger}
}

// Enabled reports whether a completer is configured.
func (generator *Generator) Enabled() bool {
	return generator.completer != nil
}

type analysisWire struct {
	ClientType        string          `json:"type_client"`
	Priority          string          `json:"priorite"`
	BudgetEstimate    json.RawMessage `json:"budget_estime"`
	AttentionPoints   []string        `json:"points_attention"`
	InterestingPoints []string        `json:"points_interessants"`
	Recommendations   []string        `json:"recommandations"`
	QualityScore      float64         `json:"score_qualite"`
}

// Analyze asks the completion service for a fiche analysis.
func (generator *Generator) Analyze(ctx context.Context, lead model.LeadSubmission) model.Analysis {
	text, ok := generator.complete(ctx, "analysis", CompletionRequest{
		System:      analysisSystemInstruction,
		Prompt:      BuildAnalysisPrompt(lead),
		MaxTokens:   analysisMaxTokens,
		Temperature: analysisTemperature,
	})
	if !ok {
		return BasicAnalysis(lead)
	}
	object, extractErr := ExtractJSONObject(text)
	if extractErr != nil {
		generator.logger.Warn("analysis_completion_unparseable", zap.Error(extractErr))
		metrics.ObserveCompletion(completionResultFallback, 0)
		return BasicAnalysis(lead)
	}
	var wire analysisWire
	if decodeErr := json.Unmarshal(object, &wire); decodeErr != nil || strings.TrimSpace(wire.ClientType) == "" {
		generator.logger.Warn("analysis_completion_invalid", zap.Error(decodeErr))
		metrics.ObserveCompletion(completionResultFallback, 0)
		return BasicAnalysis(lead)
	}
	attentionPoints := append(append([]string{}, wire.AttentionPoints...), wire.InterestingPoints...)
	return model.Analysis{
		ClientType:      strings.ToUpper(strings.TrimSpace(wire.ClientType)),
		Priority:        strings.ToUpper(strings.TrimSpace(wire.Priority)),
		BudgetEstimate:  budgetText(wire.BudgetEstimate),
		AttentionPoints: attentionPoints,
		Recommendations: append([]string{}, wire.Recommendations...),
		QualityScore:    int(wire.QualityScore),
		Source:          model.AnalysisSourceAI,
	}
}

// ComposeWelcomeEmail drafts the first message to a new client.
func (generator *Generator) ComposeWelcomeEmail(ctx context.Context, entry model.QueueEntry) model.EmailDraft {
	fallback := BasicWelcomeEmail(entry)
	text, ok := generator.complete(ctx, "welcome_email", CompletionRequest{
		System:      emailSystemInstruction,
		Prompt:      BuildWelcomeEmailPrompt(entry),
		MaxTokens:   emailMaxTokens,
		Temperature: emailTemperature,
	})
	if !ok {
		return fallback
	}
	object, extractErr := ExtractJSONObject(text)
	if extractErr != nil {
		generator.logger.Warn("email_completion_unparseable", zap.Error(extractErr))
		return fallback
	}
	var draft struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if decodeErr := json.Unmarshal(object, &draft); decodeErr != nil || strings.TrimSpace(draft.Body) == "" {
		generator.logger.Warn("email_completion_invalid", zap.Error(decodeErr))
		return fallback
	}
	subject := strings.TrimSpace(draft.Subject)
	if subject == "" {
		subject = fallback.Subject
	}
	return model.EmailDraft{
		To:      entry.ClientEmail,
		Subject: subject,
		Body:    strings.TrimSpace(draft.Body),
		Source:  model.AnalysisSourceAI,
	}
}

func (generator *Generator) complete(ctx context.Context, purpose string, request CompletionRequest) (string, bool) {
	if generator.completer == nil {
		return "", false
	}
	callContext, cancel := context.WithTimeout(ctx, generator.timeout)
	defer cancel()

	started := time.Now()
	text, err := generator.completer.Complete(callContext, request)
	elapsed := time.Since(started)
	if err != nil {
		metrics.ObserveCompletion(completionResultFailure, elapsed)
		generator.logger.Warn("completion_failed", zap.String("purpose", purpose), zap.Duration("elapsed", elapsed), zap.Error(err))
		return "", false
	}
	metrics.ObserveCompletion(completionResultSuccess, elapsed)
	return text, true
}

func budgetText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return budgetPendingLabel
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if strings.TrimSpace(text) == "" {
			return budgetPendingLabel
		}
		return text
	}
	return trimmed
}
