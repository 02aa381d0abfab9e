package storage

// DocumentKey names one JSON slot in the shared store.
type DocumentKey string

const (
	KeyFeaturesConfig          DocumentKey = "features_config"
	KeyNotificationLog         DocumentKey = "notification_log"
	KeyClientsDatabase         DocumentKey = "clients_database"
	KeyPendingAuthorizations   DocumentKey = "pending_authorizations"
	KeyIdentityIncidents       DocumentKey = "identity_incidents"
	KeySuspiciousActivities    DocumentKey = "suspicious_activities"
	KeyLeadFormDraft           DocumentKey = "lead_form_draft"
	KeyEmailHistory            DocumentKey = "email_history"
	KeyPublishedProperties     DocumentKey = "published_properties"
	KeyVisualConfig            DocumentKey = "visual_config"
	KeyEmailAssistantQueue     DocumentKey = "email_assistant_queue"
	KeyMarketingAssistantQueue DocumentKey = "marketing_assistant_queue"
	KeyMarketingCommands       DocumentKey = "marketing_commands"
)

// DraftKey names the lead-form draft owned by one visitor.
func DraftKey(token string) DocumentKey {
	return DocumentKey(string(KeyLeadFormDraft) + ":" + token)
}

// KnownDocumentKeys lists every shared slot the application owns. Per-visitor
// drafts are excluded.
func KnownDocumentKeys() []DocumentKey {
	return []DocumentKey{
		KeyFeaturesConfig,
		KeyNotificationLog,
		KeyClientsDatabase,
		KeyPendingAuthorizations,
		KeyIdentityIncidents,
		KeySuspiciousActivities,
		KeyEmailHistory,
		KeyPublishedProperties,
		KeyVisualConfig,
		KeyEmailAssistantQueue,
		KeyMarketingAssistantQueue,
		KeyMarketingCommands,
	}
}

// ParseDocumentKey reports whether raw names a known slot.
func ParseDocumentKey(raw string) (DocumentKey, bool) {
	for _, key := range KnownDocumentKeys() {
		if string(key) == raw {
			return key, true
		}
	}
	return "", false
}
