package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	QueueEntryTypeNewClient       = "nouveau_client"
	QueueActionSendWelcomeEmail   = "envoyer_email_bienvenue"
	QueueActionPrepareListing     = "preparer_fiche_marketing"
	QueueActionPrepareBuyerSearch = "preparer_recherche_acheteur"
	QueueActionFollowUp           = "suivi_prospect"
)

// QueueEntry is a work item handed from the client registry to an assistant.
type QueueEntry struct {
	ID                 string         `json:"id"`
	Type               string         `json:"type"`
	ClientID           string         `json:"client_id"`
	ClientName         string         `json:"client_nom"`
	ClientEmail        string         `json:"client_email,omitempty"`
	ClientAddress      string         `json:"client_adresse,omitempty"`
	ServiceType        ServiceType    `json:"service_type"`
	Category           ClientCategory `json:"category"`
	Action             string         `json:"action"`
	Priority           int            `json:"priorite"`
	CommissionEstimate float64        `json:"potentiel_commission"`
	Message            string         `json:"message,omitempty"`
	Timestamp          time.Time      `json:"timestamp"`
	Processed          bool           `json:"processed"`
}

// NewQueueEntry derives a queue entry for client.
func NewQueueEntry(client ClientRecord, action string, occurred time.Time) QueueEntry {
	return QueueEntry{
		ID:                 uuid.NewString(),
		Type:               QueueEntryTypeNewClient,
		ClientID:           client.ID,
		ClientName:         client.DisplayName(),
		ClientEmail:        client.Email,
		ClientAddress:      client.Address,
		ServiceType:        client.ServiceType,
		Category:           client.Category,
		Action:             action,
		Priority:           client.Priority,
		CommissionEstimate: client.CommissionEstimate,
		Message:            client.Message,
		Timestamp:          occurred.UTC(),
	}
}

// EmailDraft is a composed message awaiting delivery.
type EmailDraft struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Source  string `json:"source"`
}

// EmailHistoryEntry records a draft handled by the email assistant. Sent is
// only set for real deliveries; a sender that logs instead sets Simulated.
type EmailHistoryEntry struct {
	ID         string     `json:"id"`
	ClientID   string     `json:"client_id"`
	QueueEntry string     `json:"queue_entry_id"`
	Draft      EmailDraft `json:"draft"`
	Sent       bool       `json:"sent"`
	Simulated  bool       `json:"simulated,omitempty"`
	Error      string     `json:"error,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}
