package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// NotificationTypeLeadSubmitted tags a lead-intake form submission.
	NotificationTypeLeadSubmitted = "NEW_FORM"
	// NotificationTypeFicheAnalyzed tags an AI or basic analysis of a submitted fiche.
	NotificationTypeFicheAnalyzed = "FICHE_ANALYZED"

	NotificationSourcePublicForm = "public_form"
	NotificationSourceAssistant  = "assistant"

	errorMessageInvalidNotificationType = "invalid_notification_type"
)

var (
	// ErrInvalidNotificationType indicates an empty notification type tag.
	ErrInvalidNotificationType = errors.New(errorMessageInvalidNotificationType)
)

// NotificationRecord is one entry of the notification log.
type NotificationRecord struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	Processed bool            `json:"processed"`
}

// NotificationRecordInput captures the producer-supplied parts of a record.
type NotificationRecordInput struct {
	Type     string
	Data     json.RawMessage
	Source   string
	Occurred time.Time
}

// NewNotificationRecord validates input and assigns identity.
func NewNotificationRecord(input NotificationRecordInput) (NotificationRecord, error) {
	notificationType := strings.TrimSpace(input.Type)
	if notificationType == "" {
		return NotificationRecord{}, ErrInvalidNotificationType
	}
	data := input.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	occurred := input.Occurred
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return NotificationRecord{
		ID:        uuid.NewString(),
		Type:      notificationType,
		Data:      data,
		Timestamp: occurred.UTC(),
		Source:    strings.TrimSpace(input.Source),
		Processed: false,
	}, nil
}

// SameIdentity reports whether other refers to the same logical record.
// Records written before ids existed fall back to timestamp and type.
func (record NotificationRecord) SameIdentity(other NotificationRecord) bool {
	if record.ID != "" && other.ID != "" {
		return record.ID == other.ID
	}
	return record.Type == other.Type && record.Timestamp.Equal(other.Timestamp)
}
