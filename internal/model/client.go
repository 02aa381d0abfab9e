package model

import (
	"errors"
	"strings"
	"time"
)

// ClientCategory is the operator-facing classification of a lead.
type ClientCategory string

const (
	CategoryVendeur     ClientCategory = "vendeur"
	CategoryAcheteur    ClientCategory = "acheteur"
	CategoryEvaluation  ClientCategory = "evaluation"
	CategoryInformation ClientCategory = "information"
)

// ServiceType is the requested service inferred from the lead.
type ServiceType string

const (
	ServiceVente       ServiceType = "vente"
	ServiceAchat       ServiceType = "achat"
	ServiceEvaluation  ServiceType = "evaluation"
	ServiceInformation ServiceType = "information"
)

// ClientStatus tracks the commercial lifecycle of a client.
type ClientStatus string

const (
	ClientStatusNewProspect ClientStatus = "nouveau_prospect"
	ClientStatusContacted   ClientStatus = "contacte"
	ClientStatusNegotiating ClientStatus = "en_negociation"
	ClientStatusConverted   ClientStatus = "converti"
	ClientStatusLost        ClientStatus = "perdu"

	MinimumClientPriority = 1
	MaximumClientPriority = 5

	errorMessageInvalidClientStatus    = "invalid_client_status"
	errorMessageInvalidInteractionKind = "invalid_interaction_kind"
)

var (
	// ErrInvalidClientStatus indicates an unrecognized client status.
	ErrInvalidClientStatus = errors.New(errorMessageInvalidClientStatus)
	// ErrInvalidInteractionKind indicates an interaction without a kind.
	ErrInvalidInteractionKind = errors.New(errorMessageInvalidInteractionKind)
)

var knownClientStatuses = map[ClientStatus]struct{}{
	ClientStatusNewProspect: {},
	ClientStatusContacted:   {},
	ClientStatusNegotiating: {},
	ClientStatusConverted:   {},
	ClientStatusLost:        {},
}

// ParseClientStatus validates a client status string.
func ParseClientStatus(raw string) (ClientStatus, error) {
	status := ClientStatus(strings.ToLower(strings.TrimSpace(raw)))
	if _, known := knownClientStatuses[status]; !known {
		return "", ErrInvalidClientStatus
	}
	return status, nil
}

// Interaction is one touchpoint appended to a client's history.
type Interaction struct {
	Kind       string    `json:"type"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"date"`
}

// NewInteraction validates and stamps an interaction.
func NewInteraction(kind string, note string, occurred time.Time) (Interaction, error) {
	trimmedKind := strings.TrimSpace(kind)
	if trimmedKind == "" {
		return Interaction{}, ErrInvalidInteractionKind
	}
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return Interaction{Kind: trimmedKind, Note: strings.TrimSpace(note), OccurredAt: occurred.UTC()}, nil
}

// ClientRecord is a lead promoted into the client registry.
type ClientRecord struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"nom"`
	FirstName            string         `json:"prenom,omitempty"`
	Phone                string         `json:"telephone,omitempty"`
	Email                string         `json:"email,omitempty"`
	Address              string         `json:"adresse,omitempty"`
	City                 string         `json:"ville,omitempty"`
	PostalCode           string         `json:"code_postal,omitempty"`
	ServiceType          ServiceType    `json:"service_type"`
	Message              string         `json:"message,omitempty"`
	Category             ClientCategory `json:"category"`
	Priority             int            `json:"priorite"`
	Tags                 []string       `json:"tags"`
	CommissionEstimate   float64        `json:"potentiel_commission"`
	Status               ClientStatus   `json:"statut"`
	CreatedAt            time.Time      `json:"date_creation"`
	LastActivityAt       time.Time      `json:"derniere_activite"`
	Interactions         []Interaction  `json:"interactions"`
	SourceNotificationID string         `json:"source_notification_id,omitempty"`
}

// DisplayName joins first and last names.
func (client ClientRecord) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(client.FirstName) + " " + strings.TrimSpace(client.Name))
}

// HasTag reports whether the client carries tag.
func (client ClientRecord) HasTag(tag string) bool {
	for _, existing := range client.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}
