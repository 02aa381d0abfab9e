package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadloop/internal/intake"
	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
)

// HeaderDraftToken carries the visitor's draft token on the draft and submit routes.
const HeaderDraftToken = "X-Draft-Token"

// IntakeHandlers serve the public lead form.
type IntakeHandlers struct {
	controller *intake.Controller
	logger     *zap.Logger
}

func NewIntakeHandlers(controller *intake.Controller, logger *zap.Logger) *IntakeHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntakeHandlers{controller: controller, logger: logger}
}

func (handlers *IntakeHandlers) SubmitLead(context *gin.Context) {
	var lead model.LeadSubmission
	if bindErr := context.ShouldBindJSON(&lead); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	result, submitErr := handlers.controller.Submit(context.Request.Context(), lead, context.GetHeader(HeaderDraftToken))
	switch {
	case errors.Is(submitErr, intake.ErrIntakeDisabled):
		context.JSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueIntakeDisabled})
		return
	case errors.Is(submitErr, model.ErrEmptyLeadSubmission):
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueMissingFields})
		return
	case submitErr != nil:
		handlers.logger.Error("submit_lead_failed", zap.Error(submitErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSaveFailed})
		return
	}
	if !result.Verdict.Accepted {
		context.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	context.JSON(http.StatusAccepted, result)
}

func (handlers *IntakeHandlers) LoadDraft(context *gin.Context) {
	token := strings.TrimSpace(context.GetHeader(HeaderDraftToken))
	if token == "" {
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueNoDraft})
		return
	}
	draft, found, loadErr := handlers.controller.LoadDraft(context.Request.Context(), token)
	if loadErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidDraftToken})
		return
	}
	if !found {
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueNoDraft})
		return
	}
	context.JSON(http.StatusOK, draft)
}

// SaveDraft stores the form under the presented token, issuing a new token
// when the visitor has none yet.
func (handlers *IntakeHandlers) SaveDraft(context *gin.Context) {
	var fields model.LeadSubmission
	if bindErr := context.ShouldBindJSON(&fields); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	token := strings.TrimSpace(context.GetHeader(HeaderDraftToken))
	if token == "" {
		token = intake.NewDraftToken()
	}
	draft, saveErr := handlers.controller.SaveDraft(context.Request.Context(), token, fields)
	if saveErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidDraftToken})
		return
	}
	context.Header(HeaderDraftToken, draft.Token)
	context.JSON(http.StatusOK, draft)
}

func (handlers *IntakeHandlers) ClearDraft(context *gin.Context) {
	token := strings.TrimSpace(context.GetHeader(HeaderDraftToken))
	if token == "" {
		context.Status(http.StatusNoContent)
		return
	}
	if clearErr := handlers.controller.ClearDraft(context.Request.Context(), token); clearErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidDraftToken})
		return
	}
	context.Status(http.StatusNoContent)
}
