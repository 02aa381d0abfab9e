// Package intake accepts lead submissions from the public form.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadloop/internal/identity"
	"github.com/MarkoPoloResearchLab/leadloop/internal/metrics"
	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
	"github.com/MarkoPoloResearchLab/leadloop/internal/notifications"
	"github.com/MarkoPoloResearchLab/leadloop/internal/signals"
	"github.com/MarkoPoloResearchLab/leadloop/internal/storage"
)

const (
	outcomeAccepted = "accepted"
	outcomeRejected = "rejected"
	outcomeInvalid  = "invalid"
	outcomeDisabled = "disabled"

	errorMessageIntakeDisabled    = "intake_disabled"
	errorMessageAppendLead        = "intake: append lead notification"
	errorMessageInvalidDraftToken = "invalid_draft_token"
)

var (
	// ErrIntakeDisabled indicates that form_processing is off.
	ErrIntakeDisabled = errors.New(errorMessageIntakeDisabled)
	// ErrInvalidDraftToken indicates a draft token that was not issued by NewDraftToken.
	ErrInvalidDraftToken = errors.New(errorMessageInvalidDraftToken)
)

// FlagReader reports whether a feature flag is on.
type FlagReader interface {
	IsEnabled(name model.FlagName) bool
}

// Validator screens a candidate before it reaches the log.
type Validator interface {
	Validate(ctx context.Context, candidate model.LeadSubmission) identity.Verdict
}

// Analyzer produces a fiche analysis.
type Analyzer interface {
	Analyze(ctx context.Context, lead model.LeadSubmission) model.Analysis
}

// Result describes what Submit did with a candidate.
type Result struct {
	Verdict      identity.Verdict          `json:"verdict"`
	Notification *model.NotificationRecord `json:"notification,omitempty"`
	Analysis     *model.Analysis           `json:"analysis,omitempty"`
}

// AnalysisPayload is the data of a fiche-analyzed notification.
type AnalysisPayload struct {
	NotificationID string         `json:"notification_id"`
	Fiche          string         `json:"fiche"`
	Analysis       model.Analysis `json:"analysis"`
}

// Draft is one visitor's autosaved, not yet submitted form.
type Draft struct {
	Token   string               `json:"token"`
	Fields  model.LeadSubmission `json:"fields"`
	SavedAt time.Time            `json:"saved_at"`
}

// NewDraftToken issues the opaque identifier a visitor presents to reach its own draft.
func NewDraftToken() string {
	return uuid.NewString()
}

// ParseDraftToken normalizes a visitor-supplied draft token.
func ParseDraftToken(raw string) (string, error) {
	parsed, parseErr := uuid.Parse(strings.TrimSpace(raw))
	if parseErr != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDraftToken, parseErr)
	}
	return parsed.String(), nil
}

// Controller runs a submission through the guard and into the notification log.
type Controller struct {
	flags     FlagReader
	validator Validator
	analyzer  Analyzer
	log       *notifications.Log
	documents storage.DocumentStore
	publisher signals.Publisher
	logger    *zap.Logger
	clock     func() time.Time
}

// NewController wires the intake dependencies. A nil analyzer disables fiche analysis.
func NewController(documents storage.DocumentStore, flags FlagReader, validator Validator, analyzer Analyzer, log *notifications.Log, publisher signals.Publisher, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		flags:     flags,
		validator: validator,
		analyzer:  analyzer,
		log:       log,
		documents: documents,
		publisher: signals.PublisherOrDiscard(publisher),
		logger:    logger,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates and records a lead. A guard rejection is reported in the
// result, not as an error. Both a rejection and an acceptance clear the draft
// identified by draftToken; an empty or malformed token clears nothing.
func (controller *Controller) Submit(ctx context.Context, candidate model.LeadSubmission, draftToken string) (Result, error) {
	if !controller.flags.IsEnabled(model.FlagFormProcessing) {
		metrics.ObserveLeadSubmission(outcomeDisabled)
		return Result{}, ErrIntakeDisabled
	}
	lead := candidate.Normalize()
	if err := lead.Validate(); err != nil {
		metrics.ObserveLeadSubmission(outcomeInvalid)
		return Result{}, err
	}

	verdict := controller.validator.Validate(ctx, lead)
	if !verdict.Accepted {
		metrics.ObserveLeadSubmission(outcomeRejected)
		if verdict.ClearCandidate {
			controller.clearSubmittedDraft(ctx, draftToken)
		}
		return Result{Verdict: verdict}, nil
	}

	record, appendErr := controller.log.Append(ctx, model.NotificationTypeLeadSubmitted, lead, model.NotificationSourcePublicForm)
	if appendErr != nil {
		return Result{Verdict: verdict}, fmt.Errorf("%s: %w", errorMessageAppendLead, appendErr)
	}
	metrics.ObserveLeadSubmission(outcomeAccepted)
	controller.logger.Info("lead_submitted", zap.String("notification_id", record.ID))
	controller.publisher.Publish(signals.New(signals.TypeLeadSubmitted, record.ID, map[string]string{
		"source": model.NotificationSourcePublicForm,
	}))
	controller.clearSubmittedDraft(ctx, draftToken)

	result := Result{Verdict: verdict, Notification: &record}
	if controller.analyzer != nil && controller.flags.IsEnabled(model.FlagIAAnalysis) {
		analysis := controller.analyzer.Analyze(ctx, lead)
		result.Analysis = &analysis
		_, analysisErr := controller.log.Append(ctx, model.NotificationTypeFicheAnalyzed, AnalysisPayload{
			NotificationID: record.ID,
			Fiche:          lead.Location(),
			Analysis:       analysis,
		}, model.NotificationSourceAssistant)
		if analysisErr != nil {
			controller.logger.Warn("analysis_notification_failed", zap.Error(analysisErr))
		}
	}
	return result, nil
}

// SaveDraft stores the in-progress form under token.
func (controller *Controller) SaveDraft(ctx context.Context, token string, fields model.LeadSubmission) (Draft, error) {
	parsed, parseErr := ParseDraftToken(token)
	if parseErr != nil {
		return Draft{}, parseErr
	}
	return controller.draftSlot(parsed).Replace(ctx, Draft{Token: parsed, Fields: fields, SavedAt: controller.clock()}), nil
}

// LoadDraft returns the form saved under token, if any.
func (controller *Controller) LoadDraft(ctx context.Context, token string) (Draft, bool, error) {
	parsed, parseErr := ParseDraftToken(token)
	if parseErr != nil {
		return Draft{}, false, parseErr
	}
	draft := controller.draftSlot(parsed).Read(ctx)
	return draft, !draft.SavedAt.IsZero(), nil
}

// ClearDraft discards the form saved under token.
func (controller *Controller) ClearDraft(ctx context.Context, token string) error {
	parsed, parseErr := ParseDraftToken(token)
	if parseErr != nil {
		return parseErr
	}
	if resetErr := controller.draftSlot(parsed).Reset(ctx); resetErr != nil {
		controller.logger.Warn("clear_draft_failed", zap.Error(resetErr))
	}
	return nil
}

func (controller *Controller) clearSubmittedDraft(ctx context.Context, token string) {
	if strings.TrimSpace(token) == "" {
		return
	}
	if clearErr := controller.ClearDraft(ctx, token); clearErr != nil {
		controller.logger.Debug("submitted_draft_token_ignored", zap.Error(clearErr))
	}
}

func (controller *Controller) draftSlot(token string) *storage.Slot[Draft] {
	return storage.NewSlot(controller.documents, storage.DraftKey(token), func() Draft {
		return Draft{}
	}, storage.WithSlotLogger(controller.logger))
}
