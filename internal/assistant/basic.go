package assistant

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
)

const (
	highValueThreshold     = 500000
	lowValueThreshold      = 200000
	oldConstructionYear    = 1980
	basicQualityScore      = 7
	budgetPendingLabel     = "À évaluer"
	foundationCracksMarker = "fissures"

	attentionOldConstruction = "Propriété ancienne - vérifier rénovations"
	attentionFoundationCrack = "Fissures fondation déclarées"
)

var basicRecommendations = []string{
	"Planifier visite de la propriété",
	"Vérifier documents essentiels",
	"Évaluer potentiel de marché",
}

// BasicAnalysis derives an Analysis from field presence and thresholds alone.
func BasicAnalysis(lead model.LeadSubmission) model.Analysis {
	priority := model.AnalysisPriorityMedium
	if value, ok := digitsValue(lead.EvaluationMunicipale); ok {
		if value > highValueThreshold {
			priority = model.AnalysisPriorityHigh
		}
		if value < lowValueThreshold {
			priority = model.AnalysisPriorityLow
		}
	}

	attentionPoints := []string{}
	if year, err := strconv.Atoi(strings.TrimSpace(lead.AnneeConstruction)); err == nil && year < oldConstructionYear {
		attentionPoints = append(attentionPoints, attentionOldConstruction)
	}
	for _, foundation := range lead.Fondation {
		if strings.Contains(strings.ToLower(foundation), foundationCracksMarker) {
			attentionPoints = append(attentionPoints, attentionFoundationCrack)
			break
		}
	}

	budget := strings.TrimSpace(lead.EvaluationMunicipale)
	if budget == "" {
		budget = budgetPendingLabel
	}

	return model.Analysis{
		ClientType:      model.ClientTypeProspect,
		Priority:        priority,
		BudgetEstimate:  budget,
		AttentionPoints: attentionPoints,
		Recommendations: append([]string(nil), basicRecommendations...),
		QualityScore:    basicQualityScore,
		Source:          model.AnalysisSourceBasic,
	}
}

// BasicWelcomeEmail is the template draft used without a completion.
func BasicWelcomeEmail(entry model.QueueEntry) model.EmailDraft {
	greetingName := entry.ClientName
	if greetingName == "" {
		greetingName = "Bonjour"
	} else {
		greetingName = "Bonjour " + greetingName
	}
	var intent string
	switch entry.Category {
	case model.CategoryVendeur:
		intent = "Je prépare une évaluation de votre propriété afin de vous proposer une stratégie de mise en marché."
	case model.CategoryAcheteur:
		intent = "Je commence dès maintenant la recherche de propriétés qui correspondent à vos critères."
	case model.CategoryEvaluation:
		intent = "Je vous transmettrai une analyse comparative du marché pour estimer la valeur de votre propriété."
	default:
		intent = "Je vous répondrai personnellement très bientôt avec l'information demandée."
	}
	body := fmt.Sprintf("%s,\n\nMerci d'avoir communiqué avec moi. %s\n\nAu plaisir,\nCynthia Bernier\nCourtière immobilière résidentielle\nLebel-sur-Quévillon", greetingName, intent)
	return model.EmailDraft{
		To:      entry.ClientEmail,
		Subject: "Merci pour votre demande - Cynthia Bernier, courtière immobilière",
		Body:    body,
		Source:  model.AnalysisSourceBasic,
	}
}

func digitsValue(raw string) (int, bool) {
	digits := strings.Map(func(character rune) rune {
		if unicode.IsDigit(character) {
			return character
		}
		return -1
	}, raw)
	if digits == "" {
		return 0, false
	}
	value, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return value, true
}
