package clients

import (
	"strings"
	"unicode/utf8"

	"github.com/MarkoPoloResearchLab/leadloop/internal/identity"
	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
)

const (
	DefaultCity       = "Lebel-sur-Quévillon"
	AnonymousName     = "Client Anonyme"
	HighPriorityFloor = 4

	averageListingPrice      = 235000.0
	commissionRate           = 0.05
	buyerCommissionShare     = 0.5
	detailedMessageThreshold = 50

	TagUrgent        = "urgent"
	TagBudgetSet     = "budget_défini"
	TagFirstPurchase = "premier_achat"
)

type serviceRule struct {
	service  model.ServiceType
	keywords []string
}

// Keywords are matched against accent-folded text, so they are written folded.
var serviceRules = []serviceRule{
	{service: model.ServiceVente, keywords: []string{"vendre", "vente"}},
	{service: model.ServiceAchat, keywords: []string{"acheter", "achat"}},
	{service: model.ServiceEvaluation, keywords: []string{"evaluation", "evaluer"}},
}

type categoryRule struct {
	category model.ClientCategory
	service  model.ServiceType
	phrases  []string
}

var categoryRules = []categoryRule{
	{category: model.CategoryVendeur, service: model.ServiceVente, phrases: []string{"vendre ma maison", "mettre en vente"}},
	{category: model.CategoryAcheteur, service: model.ServiceAchat, phrases: []string{"cherche maison", "acheter"}},
	{category: model.CategoryEvaluation, service: model.ServiceEvaluation, phrases: []string{"valeur", "evaluer"}},
}

var categoryPriorityBonus = map[model.ClientCategory]int{
	model.CategoryVendeur:  3,
	model.CategoryAcheteur: 2,
}

type tagRule struct {
	tag     string
	keyword string
}

var tagRules = []tagRule{
	{tag: TagUrgent, keyword: "urgent"},
	{tag: TagBudgetSet, keyword: "budget"},
	{tag: TagFirstPurchase, keyword: "premiere"},
}

var explicitServiceTypes = map[model.ServiceType]struct{}{
	model.ServiceVente:       {},
	model.ServiceAchat:       {},
	model.ServiceEvaluation:  {},
	model.ServiceInformation: {},
}

// DetermineServiceType reads the intent keywords first, then the declared
// service type, and defaults to information.
func DetermineServiceType(lead model.LeadSubmission) model.ServiceType {
	text := foldOrLower(lead.FreeText())
	for _, rule := range serviceRules {
		if containsAny(text, rule.keywords) {
			return rule.service
		}
	}
	declared := model.ServiceType(strings.ToLower(strings.TrimSpace(lead.ServiceType)))
	if _, known := explicitServiceTypes[declared]; known {
		return declared
	}
	return model.ServiceInformation
}

// Classify applies the ordered category rules.
func Classify(service model.ServiceType, message string) model.ClientCategory {
	text := foldOrLower(message)
	for _, rule := range categoryRules {
		if service == rule.service || containsAny(text, rule.phrases) {
			return rule.category
		}
	}
	return model.CategoryInformation
}

// Priority scores a client from 1 to 5.
func Priority(category model.ClientCategory, phone string, email string, message string) int {
	priority := model.MinimumClientPriority + categoryPriorityBonus[category]
	if strings.TrimSpace(phone) != "" && strings.TrimSpace(email) != "" {
		priority++
	}
	if utf8.RuneCountInString(strings.TrimSpace(message)) > detailedMessageThreshold {
		priority++
	}
	if priority > model.MaximumClientPriority {
		return model.MaximumClientPriority
	}
	return priority
}

// EstimateCommission uses the local average listing price.
func EstimateCommission(category model.ClientCategory) float64 {
	switch category {
	case model.CategoryVendeur:
		return averageListingPrice * commissionRate
	case model.CategoryAcheteur:
		return averageListingPrice * commissionRate * buyerCommissionShare
	default:
		return 0
	}
}

// Tags labels a client by service, city and message keywords.
func Tags(service model.ServiceType, city string, message string) []string {
	if strings.TrimSpace(city) == "" {
		city = DefaultCity
	}
	tags := []string{string(service), city}
	text := foldOrLower(message)
	for _, rule := range tagRules {
		if strings.Contains(text, rule.keyword) {
			tags = append(tags, rule.tag)
		}
	}
	return tags
}

func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}

func foldOrLower(value string) string {
	folded, err := identity.Fold(value)
	if err != nil {
		return strings.ToLower(value)
	}
	return folded
}
