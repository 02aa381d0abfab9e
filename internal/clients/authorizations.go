package clients

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadloop/internal/metrics"
	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
	"github.com/MarkoPoloResearchLab/leadloop/internal/signals"
)

const (
	// DeferralDelay is how long a deferred authorization sleeps before it is asked again.
	DeferralDelay = 24 * time.Hour

	authorizationIDPrefix = "AUTH_"
	authorizationTitle    = "Autorisation Publication Fiche Immobilière"
	authorizationFormat   = "Nouveau vendeur détecté:\n\n%s\n%s\n%s\n\nAutoriser la création et la publication de la fiche immobilière ?"

	errorMessageAuthorizationNotFound = "authorization_not_found"
	errorMessageAuthorizationClosed   = "authorization_closed"
	errorMessageNotSeller             = "client_not_seller"
)

var (
	// ErrAuthorizationNotFound indicates an unknown authorization id.
	ErrAuthorizationNotFound = errors.New(errorMessageAuthorizationNotFound)
	// ErrAuthorizationClosed indicates a request that was already authorized or refused.
	ErrAuthorizationClosed = errors.New(errorMessageAuthorizationClosed)
	// ErrNotSeller indicates an authorization request for a non-seller client.
	ErrNotSeller = errors.New(errorMessageNotSeller)

	errNothingToWake = errors.New("nothing_to_wake")
)

// CreateAuthorizationRequest asks the operator whether a seller listing may be published.
func (registry *Registry) CreateAuthorizationRequest(ctx context.Context, client model.ClientRecord) (model.AuthorizationRequest, error) {
	if client.Category != model.CategoryVendeur {
		return model.AuthorizationRequest{}, fmt.Errorf("%w: %s", ErrNotSeller, client.Category)
	}
	now := registry.clock()
	request := model.AuthorizationRequest{
		ID:            strings.ToUpper(authorizationIDPrefix + strconv.FormatInt(now.UnixMilli(), 10) + "_" + shortRandom()),
		ClientID:      client.ID,
		ClientName:    client.DisplayName(),
		ClientAddress: client.Address,
		Title:         authorizationTitle,
		Message:       fmt.Sprintf(authorizationFormat, client.DisplayName(), client.Address, client.Phone),
		Status:        model.AuthorizationPending,
		Actions:       model.AuthorizationActions(),
		Priority:      client.Priority,
		CreatedAt:     now,
	}
	if _, updateErr := registry.authorizations.Update(ctx, func(requests *[]model.AuthorizationRequest) error {
		*requests = append(*requests, request)
		return nil
	}); updateErr != nil {
		return model.AuthorizationRequest{}, updateErr
	}
	registry.publisher.Publish(signals.New(signals.TypeAuthorizationRequested, request.ID, map[string]string{
		"client_id": client.ID,
	}))
	return request, nil
}

// ResolveAuthorization applies an operator decision. Authorizing queues a
// listing command, deferring schedules a reminder, refusing closes the request.
func (registry *Registry) ResolveAuthorization(ctx context.Context, id string, decision model.AuthorizationDecision) (model.AuthorizationRequest, error) {
	decision, parseErr := model.ParseAuthorizationDecision(string(decision))
	if parseErr != nil {
		return model.AuthorizationRequest{}, parseErr
	}
	now := registry.clock()

	var resolved model.AuthorizationRequest
	_, updateErr := registry.authorizations.Update(ctx, func(requests *[]model.AuthorizationRequest) error {
		for index := range *requests {
			request := &(*requests)[index]
			if request.ID != id {
				continue
			}
			if request.IsTerminal() {
				return fmt.Errorf("%w: %s", ErrAuthorizationClosed, request.Status)
			}
			respondedAt := now
			request.Status = decision
			request.RespondedAt = &respondedAt
			request.RemindAt = nil
			if decision == model.AuthorizationDefer {
				remindAt := now.Add(DeferralDelay)
				request.RemindAt = &remindAt
			}
			resolved = *request
			return nil
		}
		return ErrAuthorizationNotFound
	})
	if updateErr != nil {
		return model.AuthorizationRequest{}, updateErr
	}

	switch decision {
	case model.AuthorizationAuthorize:
		registry.queueListingCommand(ctx, resolved, now)
	case model.AuthorizationDefer:
		registry.logger.Info("authorization_deferred", zap.String("authorization_id", resolved.ID), zap.Time("remind_at", *resolved.RemindAt))
	case model.AuthorizationRefuse:
		registry.logger.Info("authorization_refused", zap.String("authorization_id", resolved.ID), zap.String("client_id", resolved.ClientID))
	}

	metrics.ObserveAuthorizationResolved(string(decision))
	registry.publisher.Publish(signals.New(signals.TypeAuthorizationResolved, resolved.ID, map[string]string{
		"client_id": resolved.ClientID,
		"decision":  string(decision),
	}))
	return resolved, nil
}

// WakeDeferred returns deferred requests whose reminder has passed to pending.
func (registry *Registry) WakeDeferred(ctx context.Context, now time.Time) []model.AuthorizationRequest {
	var woken []model.AuthorizationRequest
	_, _ = registry.authorizations.Update(ctx, func(requests *[]model.AuthorizationRequest) error {
		for index := range *requests {
			request := &(*requests)[index]
			if request.Status != model.AuthorizationDefer || request.RemindAt == nil || request.RemindAt.After(now) {
				continue
			}
			request.Status = model.AuthorizationPending
			request.RemindAt = nil
			woken = append(woken, *request)
		}
		if len(woken) == 0 {
			return errNothingToWake
		}
		return nil
	})
	for _, request := range woken {
		registry.publisher.Publish(signals.New(signals.TypeAuthorizationRequested, request.ID, map[string]string{
			"client_id": request.ClientID,
			"reminder":  "true",
		}))
	}
	return woken
}

// Authorizations lists every request in creation order.
func (registry *Registry) Authorizations(ctx context.Context) []model.AuthorizationRequest {
	return registry.authorizations.Read(ctx)
}

// PendingAuthorizations lists requests awaiting a decision.
func (registry *Registry) PendingAuthorizations(ctx context.Context) []model.AuthorizationRequest {
	requests := registry.authorizations.Read(ctx)
	pending := make([]model.AuthorizationRequest, 0, len(requests))
	for _, request := range requests {
		if request.Status == model.AuthorizationPending {
			pending = append(pending, request)
		}
	}
	return pending
}

func (registry *Registry) queueListingCommand(ctx context.Context, request model.AuthorizationRequest, now time.Time) {
	client, found := registry.Client(ctx, request.ClientID)
	if !found {
		registry.logger.Warn("authorized_client_missing", zap.String("client_id", request.ClientID))
		client = model.ClientRecord{ID: request.ClientID, Name: request.ClientName, Address: request.ClientAddress}
	}
	registry.commands.Push(ctx, model.MarketingCommand{
		ID:              strings.ReplaceAll(request.ID, authorizationIDPrefix, "CMD_"),
		Type:            model.MarketingCommandTypeAuthorizationGranted,
		Action:          model.MarketingActionCreateListing,
		ClientID:        request.ClientID,
		Client:          client,
		AuthorizationID: request.ID,
		AutoPublish:     true,
		Timestamp:       now,
	})
}
