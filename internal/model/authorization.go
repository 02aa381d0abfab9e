package model

import (
	"errors"
	"strings"
	"time"
)

// AuthorizationDecision is an operator decision or the pending state.
type AuthorizationDecision string

const (
	AuthorizationPending   AuthorizationDecision = "pending"
	AuthorizationAuthorize AuthorizationDecision = "autoriser"
	AuthorizationDefer     AuthorizationDecision = "reporter"
	AuthorizationRefuse    AuthorizationDecision = "refuser"

	MarketingCommandTypeAuthorizationGranted = "autorisation_accordee"
	MarketingActionCreateListing             = "creer_fiche_immobiliere"

	errorMessageInvalidAuthorizationDecision = "invalid_authorization_decision"
)

var (
	// ErrInvalidAuthorizationDecision indicates a decision outside the allowed actions.
	ErrInvalidAuthorizationDecision = errors.New(errorMessageInvalidAuthorizationDecision)
)

// AuthorizationActions is the fixed set of operator decisions.
func AuthorizationActions() []AuthorizationDecision {
	return []AuthorizationDecision{AuthorizationAuthorize, AuthorizationDefer, AuthorizationRefuse}
}

// ParseAuthorizationDecision validates an operator decision.
func ParseAuthorizationDecision(raw string) (AuthorizationDecision, error) {
	decision := AuthorizationDecision(strings.ToLower(strings.TrimSpace(raw)))
	for _, allowed := range AuthorizationActions() {
		if decision == allowed {
			return decision, nil
		}
	}
	return "", ErrInvalidAuthorizationDecision
}

// AuthorizationRequest asks the operator whether a seller listing may be published.
type AuthorizationRequest struct {
	ID            string                  `json:"id"`
	ClientID      string                  `json:"client_id"`
	ClientName    string                  `json:"client_nom"`
	ClientAddress string                  `json:"client_adresse,omitempty"`
	Title         string                  `json:"titre"`
	Message       string                  `json:"message"`
	Status        AuthorizationDecision   `json:"statut"`
	Actions       []AuthorizationDecision `json:"actions"`
	Priority      int                     `json:"priorite"`
	CreatedAt     time.Time               `json:"date_creation"`
	RespondedAt   *time.Time              `json:"date_reponse,omitempty"`
	RemindAt      *time.Time              `json:"remind_at,omitempty"`
}

// IsTerminal reports whether no further decision may be applied.
func (request AuthorizationRequest) IsTerminal() bool {
	return request.Status == AuthorizationAuthorize || request.Status == AuthorizationRefuse
}

// MarketingCommand instructs the publishing collaborator.
type MarketingCommand struct {
	ID              string       `json:"id"`
	Type            string       `json:"type"`
	Action          string       `json:"action"`
	ClientID        string       `json:"client_id"`
	Client          ClientRecord `json:"client"`
	AuthorizationID string       `json:"authorization_id"`
	AutoPublish     bool         `json:"auto_publish"`
	Timestamp       time.Time    `json:"timestamp"`
	Processed       bool         `json:"processed"`
}
