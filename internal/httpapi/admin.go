package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadloop/internal/clients"
	"github.com/MarkoPoloResearchLab/leadloop/internal/features"
	"github.com/MarkoPoloResearchLab/leadloop/internal/identity"
	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
	"github.com/MarkoPoloResearchLab/leadloop/internal/notifications"
	"github.com/MarkoPoloResearchLab/leadloop/internal/storage"
)

const (
	jsonKeyError   = "error"
	jsonKeyApplied = "applied"
	jsonKeyFlags   = "flags"

	errorValueInvalidJSON          = "invalid_json"
	errorValueMissingFields        = "missing_fields"
	errorValueSaveFailed           = "save_failed"
	errorValueQueryFailed          = "query_failed"
	errorValueIntakeDisabled       = "intake_disabled"
	errorValueNoDraft              = "no_draft"
	errorValueInvalidDraftToken    = "invalid_draft_token"
	errorValueInvalidProcessed     = "invalid_processed"
	errorValueUnknownFlag          = "unknown_flag"
	errorValueConfirmationRequired = "confirmation_required"
	errorValueUnknownClient        = "unknown_client"
	errorValueInvalidStatus        = "invalid_status"
	errorValueInvalidInteraction   = "invalid_interaction"
	errorValueUnknownAuthorization = "unknown_authorization"
	errorValueAuthorizationClosed  = "authorization_closed"
	errorValueInvalidDecision      = "invalid_decision"
	errorValueUnknownQueue         = "unknown_queue"
	errorValueUnknownDocument      = "unknown_document"
	errorValueReadOnlyDocument     = "read_only_document"
	errorValueInvalidSince         = "invalid_since"
	errorValueStreamUnavailable    = "stream_unavailable"

	queueNameEmail            = "email"
	queueNameMarketing        = "marketing"
	queueNameMarketingCommand = "commands"
	queueNameEmailHistory     = "email_history"

	maxDocumentBodyBytes = 1 << 20
)

// Documents owned by external collaborators; the operator may replace them wholesale.
var writableDocuments = map[storage.DocumentKey]struct{}{
	storage.KeyVisualConfig:        {},
	storage.KeyPublishedProperties: {},
}

// AdminDependencies groups the components behind the operator endpoints.
type AdminDependencies struct {
	Flags        *features.Store
	Log          *notifications.Log
	Registry     *clients.Registry
	Guard        *identity.Guard
	Documents    storage.DocumentStore
	EmailHistory *notifications.Queue[model.EmailHistoryEntry]
}

// AdminHandlers serve the operator dashboard API.
type AdminHandlers struct {
	dependencies AdminDependencies
	logger       *zap.Logger
}

func NewAdminHandlers(dependencies AdminDependencies, logger *zap.Logger) *AdminHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandlers{dependencies: dependencies, logger: logger}
}

func (handlers *AdminHandlers) FlagStatus(context *gin.Context) {
	context.JSON(http.StatusOK, handlers.dependencies.Flags.Status())
}

func (handlers *AdminHandlers) ToggleFlag(context *gin.Context) {
	handlers.mutateFlag(context, handlers.dependencies.Flags.Toggle)
}

func (handlers *AdminHandlers) EnableFlag(context *gin.Context) {
	handlers.mutateFlag(context, handlers.dependencies.Flags.Enable)
}

func (handlers *AdminHandlers) DisableFlag(context *gin.Context) {
	handlers.mutateFlag(context, handlers.dependencies.Flags.Disable)
}

func (handlers *AdminHandlers) mutateFlag(context *gin.Context, mutate func(ctx context.Context, name model.FlagName) bool) {
	name := model.FlagName(strings.TrimSpace(context.Param("name")))
	if !model.IsKnownFlag(name) {
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueUnknownFlag})
		return
	}
	applied := mutate(context.Request.Context(), name)
	context.JSON(http.StatusOK, gin.H{jsonKeyApplied: applied, jsonKeyFlags: handlers.dependencies.Flags.Status()})
}

func (handlers *AdminHandlers) EmergencyMode(context *gin.Context) {
	context.JSON(http.StatusOK, handlers.dependencies.Flags.EmergencyMode(context.Request.Context()))
}

type resetRequest struct {
	Confirm bool `json:"confirm"`
}

func (handlers *AdminHandlers) ResetFlags(context *gin.Context) {
	var request resetRequest
	if bindErr := context.ShouldBindJSON(&request); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	if !handlers.dependencies.Flags.ResetToDefault(context.Request.Context(), request.Confirm) {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueConfirmationRequired})
		return
	}
	context.JSON(http.StatusOK, handlers.dependencies.Flags.Status())
}

func (handlers *AdminHandlers) ListNotifications(context *gin.Context) {
	filter := notifications.Filter{Types: context.QueryArray("type")}
	if rawSince := strings.TrimSpace(context.Query("since")); rawSince != "" {
		since, parseErr := time.Parse(time.RFC3339, rawSince)
		if parseErr != nil {
			context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidSince})
			return
		}
		filter.Since = since
	}
	if rawProcessed := strings.TrimSpace(context.Query("processed")); rawProcessed != "" {
		processed, parseErr := strconv.ParseBool(rawProcessed)
		if parseErr != nil {
			context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidProcessed})
			return
		}
		filter.Processed = &processed
	}
	context.JSON(http.StatusOK, gin.H{"notifications": handlers.dependencies.Log.List(context.Request.Context(), filter)})
}

func (handlers *AdminHandlers) ListClients(context *gin.Context) {
	requestContext := context.Request.Context()
	registry := handlers.dependencies.Registry
	var records []model.ClientRecord
	switch {
	case context.Query("high_priority") == "true":
		records = registry.HighPriority(requestContext)
	case strings.TrimSpace(context.Query("category")) != "":
		records = registry.ByCategory(requestContext, model.ClientCategory(strings.TrimSpace(context.Query("category"))))
	default:
		records = registry.Search(requestContext, context.Query("q"))
	}
	context.JSON(http.StatusOK, gin.H{"clients": records})
}

func (handlers *AdminHandlers) ClientStats(context *gin.Context) {
	context.JSON(http.StatusOK, handlers.dependencies.Registry.Stats(context.Request.Context()))
}

func (handlers *AdminHandlers) GetClient(context *gin.Context) {
	client, found := handlers.dependencies.Registry.Client(context.Request.Context(), context.Param("id"))
	if !found {
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueUnknownClient})
		return
	}
	context.JSON(http.StatusOK, client)
}

type updateStatusRequest struct {
	Status string `json:"statut"`
}

func (handlers *AdminHandlers) UpdateClientStatus(context *gin.Context) {
	var request updateStatusRequest
	if bindErr := context.ShouldBindJSON(&request); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	client, updateErr := handlers.dependencies.Registry.UpdateStatus(context.Request.Context(), context.Param("id"), model.ClientStatus(request.Status))
	switch {
	case errors.Is(updateErr, model.ErrInvalidClientStatus):
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidStatus})
	case errors.Is(updateErr, clients.ErrClientNotFound):
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueUnknownClient})
	case updateErr != nil:
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSaveFailed})
	default:
		context.JSON(http.StatusOK, client)
	}
}

type interactionRequest struct {
	Kind string `json:"type"`
	Note string `json:"note"`
}

func (handlers *AdminHandlers) AppendInteraction(context *gin.Context) {
	var request interactionRequest
	if bindErr := context.ShouldBindJSON(&request); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	client, appendErr := handlers.dependencies.Registry.AppendInteraction(context.Request.Context(), context.Param("id"), request.Kind, request.Note)
	switch {
	case errors.Is(appendErr, model.ErrInvalidInteractionKind):
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidInteraction})
	case errors.Is(appendErr, clients.ErrClientNotFound):
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueUnknownClient})
	case appendErr != nil:
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSaveFailed})
	default:
		context.JSON(http.StatusCreated, client)
	}
}

func (handlers *AdminHandlers) ListAuthorizations(context *gin.Context) {
	requestContext := context.Request.Context()
	if context.Query("pending") == "true" {
		context.JSON(http.StatusOK, gin.H{"authorizations": handlers.dependencies.Registry.PendingAuthorizations(requestContext)})
		return
	}
	context.JSON(http.StatusOK, gin.H{"authorizations": handlers.dependencies.Registry.Authorizations(requestContext)})
}

type decisionRequest struct {
	Decision string `json:"decision"`
}

func (handlers *AdminHandlers) ResolveAuthorization(context *gin.Context) {
	var request decisionRequest
	if bindErr := context.ShouldBindJSON(&request); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	resolved, resolveErr := handlers.dependencies.Registry.ResolveAuthorization(context.Request.Context(), context.Param("id"), model.AuthorizationDecision(request.Decision))
	switch {
	case errors.Is(resolveErr, model.ErrInvalidAuthorizationDecision):
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidDecision})
	case errors.Is(resolveErr, clients.ErrAuthorizationNotFound):
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueUnknownAuthorization})
	case errors.Is(resolveErr, clients.ErrAuthorizationClosed):
		context.JSON(http.StatusConflict, gin.H{jsonKeyError: errorValueAuthorizationClosed})
	case resolveErr != nil:
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSaveFailed})
	default:
		context.JSON(http.StatusOK, resolved)
	}
}

func (handlers *AdminHandlers) Ingest(context *gin.Context) {
	report, ingestErr := handlers.dependencies.Registry.ScanAndIngest(context.Request.Context())
	if ingestErr != nil {
		handlers.logger.Warn("manual_ingest_failed", zap.Error(ingestErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueQueryFailed})
		return
	}
	context.JSON(http.StatusOK, report)
}

func (handlers *AdminHandlers) IdentityStatus(context *gin.Context) {
	context.JSON(http.StatusOK, handlers.dependencies.Guard.Status(context.Request.Context()))
}

func (handlers *AdminHandlers) ListQueue(context *gin.Context) {
	requestContext := context.Request.Context()
	registry := handlers.dependencies.Registry
	switch context.Param("name") {
	case queueNameEmail:
		context.JSON(http.StatusOK, gin.H{"entries": registry.EmailQueue().List(requestContext)})
	case queueNameMarketing:
		context.JSON(http.StatusOK, gin.H{"entries": registry.MarketingQueue().List(requestContext)})
	case queueNameMarketingCommand:
		context.JSON(http.StatusOK, gin.H{"entries": registry.MarketingCommands().List(requestContext)})
	case queueNameEmailHistory:
		if handlers.dependencies.EmailHistory == nil {
			context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueUnknownQueue})
			return
		}
		context.JSON(http.StatusOK, gin.H{"entries": handlers.dependencies.EmailHistory.List(requestContext)})
	default:
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueUnknownQueue})
	}
}

type documentResponse struct {
	Key       storage.DocumentKey `json:"key"`
	Version   int64               `json:"version"`
	UpdatedAt time.Time           `json:"updated_at"`
	Body      json.RawMessage     `json:"body"`
}

func (handlers *AdminHandlers) GetDocument(context *gin.Context) {
	key, known := storage.ParseDocumentKey(context.Param("key"))
	if !known {
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueUnknownDocument})
		return
	}
	document, getErr := handlers.dependencies.Documents.Get(context.Request.Context(), key)
	switch {
	case errors.Is(getErr, storage.ErrDocumentNotFound):
		context.JSON(http.StatusOK, documentResponse{Key: key, Body: json.RawMessage("null")})
	case getErr != nil:
		handlers.logger.Warn("get_document_failed", zap.String("document_key", string(key)), zap.Error(getErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueQueryFailed})
	default:
		body := json.RawMessage(document.Body)
		if !json.Valid(body) {
			body = json.RawMessage("null")
		}
		context.JSON(http.StatusOK, documentResponse{Key: key, Version: document.Version, UpdatedAt: document.UpdatedAt, Body: body})
	}
}

func (handlers *AdminHandlers) PutDocument(context *gin.Context) {
	key, known := storage.ParseDocumentKey(context.Param("key"))
	if !known {
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueUnknownDocument})
		return
	}
	if _, writable := writableDocuments[key]; !writable {
		context.JSON(http.StatusForbidden, gin.H{jsonKeyError: errorValueReadOnlyDocument})
		return
	}
	body, readErr := io.ReadAll(io.LimitReader(context.Request.Body, maxDocumentBodyBytes))
	if readErr != nil || !json.Valid(body) {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	version, putErr := handlers.dependencies.Documents.Put(context.Request.Context(), key, body)
	if putErr != nil {
		handlers.logger.Warn("put_document_failed", zap.String("document_key", string(key)), zap.Error(putErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSaveFailed})
		return
	}
	context.JSON(http.StatusOK, gin.H{"key": key, "version": version})
}
