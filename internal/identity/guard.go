// Package identity rejects lead candidates that belong to another agent's market.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadloop/internal/metrics"
	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
	"github.com/MarkoPoloResearchLab/leadloop/internal/notifications"
	"github.com/MarkoPoloResearchLab/leadloop/internal/signals"
	"github.com/MarkoPoloResearchLab/leadloop/internal/storage"
)

const (
	IncidentCapacity           = 100
	SuspiciousActivityCapacity = 50

	reasonBlockedLocationFormat = "Propriété détectée à %s - Redirection requise vers courtier local"
	reasonPhonePrefixFormat     = "Numéro de téléphone hors de l'indicatif régional %s"
	reasonValidationError       = "Erreur technique de validation"

	locationSnippetLength = 50
	dataSnippetLength     = 50
	northAmericanDialCode = "1"
	northAmericanDigits   = 11
)

var errValidationPanic = errors.New("identity_validation_panic")

// Verdict is the outcome of Validate. A rejection is not an error.
type Verdict struct {
	Accepted       bool   `json:"accepted"`
	Reason         string `json:"reason,omitempty"`
	ClearCandidate bool   `json:"clear_candidate"`
	InTerritory    bool   `json:"in_territory"`
}

// Status is the guard state exposed to the dashboard.
type Status struct {
	Active               bool                       `json:"active"`
	Constraint           model.IdentityConstraint   `json:"constraint"`
	BlockedAttempts      []model.IdentityIncident   `json:"blocked_attempts"`
	SuspiciousActivities []model.SuspiciousActivity `json:"suspicious_activities"`
}

// Guard validates lead candidates against a static constraint and fails closed.
type Guard struct {
	constraint model.IdentityConstraint
	incidents  *notifications.Queue[model.IdentityIncident]
	suspicious *notifications.Queue[model.SuspiciousActivity]
	publisher  signals.Publisher
	logger     *zap.Logger
	clock      func() time.Time
	fold       func(string) (string, error)
}

// NewGuard binds the guard to its incident documents.
func NewGuard(constraint model.IdentityConstraint, documents storage.DocumentStore, publisher signals.Publisher, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{
		constraint: constraint,
		incidents:  notifications.NewQueue(documents, storage.KeyIdentityIncidents, IncidentCapacity, notifications.Accessors[model.IdentityIncident]{}, logger),
		suspicious: notifications.NewQueue(documents, storage.KeySuspiciousActivities, SuspiciousActivityCapacity, notifications.Accessors[model.SuspiciousActivity]{}, logger),
		publisher:  signals.PublisherOrDiscard(publisher),
		logger:     logger,
		clock:      func() time.Time { return time.Now().UTC() },
		fold:       Fold,
	}
}

// Constraint returns the active constraint.
func (guard *Guard) Constraint() model.IdentityConstraint {
	return guard.constraint
}

// Validate applies the ordered rules: blocked location, then phone prefix.
// Suspicious patterns are recorded without affecting the verdict.
func (guard *Guard) Validate(ctx context.Context, candidate model.LeadSubmission) (verdict Verdict) {
	location := candidate.Location()
	defer func() {
		if recovered := recover(); recovered != nil {
			verdict = guard.reject(ctx, reasonValidationError, location, fmt.Errorf("%w: %v", errValidationPanic, recovered))
		}
	}()

	foldedLocation, foldErr := guard.fold(location)
	if foldErr != nil {
		return guard.reject(ctx, reasonValidationError, location, foldErr)
	}

	guard.recordSuspiciousPatterns(ctx, candidate)

	for _, blocked := range guard.constraint.BlockedLocations {
		foldedBlocked, blockedErr := guard.fold(blocked)
		if blockedErr != nil {
			return guard.reject(ctx, reasonValidationError, location, blockedErr)
		}
		if foldedBlocked != "" && strings.Contains(foldedLocation, foldedBlocked) {
			return guard.reject(ctx, fmt.Sprintf(reasonBlockedLocationFormat, blocked), location, nil)
		}
	}

	if phone := candidate.ContactPhone(); phone != "" && !hasServicePrefix(phone, guard.constraint.ServicePhonePrefix) {
		return guard.reject(ctx, fmt.Sprintf(reasonPhonePrefixFormat, guard.constraint.ServicePhonePrefix), location, nil)
	}

	inTerritory, territoryErr := guard.inTerritory(foldedLocation)
	if territoryErr != nil {
		return guard.reject(ctx, reasonValidationError, location, territoryErr)
	}
	if !inTerritory {
		guard.logger.Info("identity_outside_explicit_territory", zap.String("location", truncate(location, locationSnippetLength)))
	}
	return Verdict{Accepted: true, InTerritory: inTerritory}
}

// Status returns the constraint with the recorded incidents and activities.
func (guard *Guard) Status(ctx context.Context) Status {
	return Status{
		Active:               true,
		Constraint:           guard.constraint,
		BlockedAttempts:      guard.incidents.List(ctx),
		SuspiciousActivities: guard.suspicious.List(ctx),
	}
}

func (guard *Guard) reject(ctx context.Context, reason string, location string, cause error) Verdict {
	fields := []zap.Field{zap.String("reason", reason)}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	guard.logger.Warn("identity_blocked", fields...)
	metrics.ObserveIdentityRejection()

	incident := model.IdentityIncident{
		Timestamp:        guard.clock(),
		Type:             model.IncidentTypeIdentityBlock,
		Reason:           reason,
		LocationSnippet:  truncate(location, locationSnippetLength),
		CandidateCleared: true,
	}
	guard.incidents.Push(ctx, incident)
	guard.publisher.Publish(signals.New(signals.TypeIdentityBlocked, "", map[string]string{"reason": reason}))
	return Verdict{Accepted: false, Reason: reason, ClearCandidate: true}
}

func (guard *Guard) recordSuspiciousPatterns(ctx context.Context, candidate model.LeadSubmission) {
	combined, foldErr := guard.fold(strings.Join([]string{
		candidate.Adresse,
		candidate.Ville,
		candidate.CodePostal,
		candidate.Prop1Nom,
		candidate.Prop1Prenom,
		candidate.Prop1Email,
		candidate.Message,
		candidate.Commentaires,
		candidate.Titre,
		candidate.NotesSpeciales,
	}, " "))
	if foldErr != nil {
		return
	}
	for _, pattern := range guard.constraint.SuspiciousPatterns {
		foldedPattern, patternErr := guard.fold(pattern)
		if patternErr != nil || foldedPattern == "" || !strings.Contains(combined, foldedPattern) {
			continue
		}
		guard.logger.Warn("identity_suspicious_pattern", zap.String("pattern", pattern))
		guard.suspicious.Push(ctx, model.SuspiciousActivity{
			Timestamp:   guard.clock(),
			Type:        model.ActivityTypeSuspiciousMatch,
			Pattern:     pattern,
			DataSnippet: truncate(candidate.Adresse, dataSnippetLength),
			Action:      model.ActivityActionLoggedOnly,
		})
		return
	}
}

func (guard *Guard) inTerritory(foldedLocation string) (bool, error) {
	for _, territory := range guard.constraint.ServiceTerritory {
		foldedTerritory, err := guard.fold(territory)
		if err != nil {
			return false, err
		}
		if foldedTerritory != "" && strings.Contains(foldedLocation, foldedTerritory) {
			return true, nil
		}
	}
	return false, nil
}

func hasServicePrefix(phone string, prefix string) bool {
	digits := strings.Map(func(character rune) rune {
		if unicode.IsDigit(character) {
			return character
		}
		return -1
	}, phone)
	if len(digits) == northAmericanDigits && strings.HasPrefix(digits, northAmericanDialCode) {
		digits = digits[len(northAmericanDialCode):]
	}
	return digits != "" && strings.HasPrefix(digits, prefix)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
