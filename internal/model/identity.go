package model

import "time"

const (
	IncidentTypeIdentityBlock   = "IDENTITY_PROTECTION_BLOCK"
	ActivityTypeSuspiciousMatch = "SUSPICIOUS_PATTERN"
	ActivityActionLoggedOnly    = "LOGGED_ONLY"
)

// IdentityConstraint is the static configuration of the identity guard.
type IdentityConstraint struct {
	AuthenticLocation  string   `json:"authentic_location" yaml:"authentic_location"`
	ServicePhonePrefix string   `json:"service_phone_prefix" yaml:"service_phone_prefix"`
	BlockedLocations   []string `json:"blocked_locations" yaml:"blocked_locations"`
	SuspiciousPatterns []string `json:"suspicious_patterns" yaml:"suspicious_patterns"`
	ServiceTerritory   []string `json:"service_territory" yaml:"service_territory"`
}

// DefaultIdentityConstraint returns the compiled-in constraint.
func DefaultIdentityConstraint() IdentityConstraint {
	return IdentityConstraint{
		AuthenticLocation:  "Lebel-sur-Quévillon",
		ServicePhonePrefix: "418",
		BlockedLocations:   []string{"Montréal", "Laval", "Longueuil", "Québec City"},
		SuspiciousPatterns: []string{"montreal", "laval", "longueuil", "quebec"},
		ServiceTerritory:   []string{"Lebel-sur-Quévillon", "Matagami", "Chibougamau", "Chapais"},
	}
}

// IdentityIncident records a rejected lead candidate.
type IdentityIncident struct {
	Timestamp        time.Time `json:"timestamp"`
	Type             string    `json:"type"`
	Reason           string    `json:"reason"`
	LocationSnippet  string    `json:"location_snippet,omitempty"`
	CandidateCleared bool      `json:"candidate_cleared"`
}

// SuspiciousActivity records a pattern hit that did not block the candidate.
type SuspiciousActivity struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"type"`
	Pattern     string    `json:"pattern"`
	DataSnippet string    `json:"data_snippet"`
	Action      string    `json:"action"`
}
