package assistant

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
)

const (
	analysisSystemInstruction = "Tu es l'assistant de Cynthia Bernier, courtière immobilière à Lebel-sur-Quévillon, Nord-du-Québec. " +
		"Analyse les fiches de propriétés pour identifier le type de client, la priorité et des points d'attention. " +
		"Réponds strictement en JSON."
	emailSystemInstruction = "Tu rédiges des courriels courts, chaleureux et professionnels en français québécois " +
		"au nom de Cynthia Bernier, courtière immobilière résidentielle. Réponds strictement en JSON avec les clés subject et body."

	notAvailable = "N/A"
)

var analysisPromptTemplate = template.Must(template.New("analysis").Parse(`Analyse cette fiche d'inscription immobilière et fournis:

1. TYPE_CLIENT: (VENDEUR/ACHETEUR/PROSPECT)
2. PRIORITE: (HAUTE/MOYENNE/BASSE)
3. BUDGET_ESTIME: estimation basée sur l'évaluation municipale
4. POINTS_ATTENTION: éléments à vérifier (fissures, âge toiture, etc.)
5. RECOMMANDATIONS: 3 actions prioritaires pour Cynthia

DONNÉES:
Adresse: {{.Adresse}}
Propriétaire 1: {{.Proprietaire}}
Téléphones: {{.Tel1}}, {{.Tel2}}
Année construction: {{.AnneeConstruction}}
Évaluation municipale: {{.EvaluationMunicipale}}
Fondation: {{.Fondation}}
Toiture: {{.Toiture}} ({{.AnneeToiture}})
Équipements: {{.Equipements}}
Notes: {{.Notes}}

Réponds au format JSON:
{
  "type_client": "",
  "priorite": "",
  "budget_estime": "",
  "points_attention": [],
  "recommandations": [],
  "score_qualite": 0
}
`))

var emailPromptTemplate = template.Must(template.New("email").Parse(`Rédige un courriel de bienvenue pour un nouveau client.

Client: {{.ClientName}}
Service demandé: {{.ServiceType}}
Catégorie: {{.Category}}
Adresse: {{.Address}}
Message du client: {{.Message}}

Réponds au format JSON:
{"subject": "", "body": ""}
`))

type analysisPromptData struct {
	Adresse              string
	Proprietaire         string
	Tel1                 string
	Tel2                 string
	AnneeConstruction    string
	EvaluationMunicipale string
	Fondation            string
	Toiture              string
	AnneeToiture         string
	Equipements          string
	Notes                string
}

type emailPromptData struct {
	ClientName  string
	ServiceType string
	Category    string
	Address     string
	Message     string
}

// BuildAnalysisPrompt renders the fiche analysis prompt. Equal inputs render equal prompts.
func BuildAnalysisPrompt(lead model.LeadSubmission) string {
	owner := strings.TrimSpace(lead.Prop1Prenom + " " + lead.Prop1Nom)
	data := analysisPromptData{
		Adresse:              orNotAvailable(lead.Location()),
		Proprietaire:         orNotAvailable(owner),
		Tel1:                 orNotAvailable(lead.Prop1Tel1),
		Tel2:                 orNotAvailable(lead.Prop1Tel2),
		AnneeConstruction:    orNotAvailable(lead.AnneeConstruction),
		EvaluationMunicipale: orNotAvailable(lead.EvaluationMunicipale),
		Fondation:            orNotAvailable(strings.Join(lead.Fondation, ", ")),
		Toiture:              orNotAvailable(lead.Toiture),
		AnneeToiture:         orNotAvailable(lead.AnneeToiture),
		Equipements:          orNotAvailable(strings.Join(lead.Equipements, ", ")),
		Notes:                lead.NotesSpeciales,
	}
	if data.Notes == "" {
		data.Notes = "Aucune"
	}
	return render(analysisPromptTemplate, data)
}

// BuildWelcomeEmailPrompt renders the welcome email prompt for a queue entry.
func BuildWelcomeEmailPrompt(entry model.QueueEntry) string {
	return render(emailPromptTemplate, emailPromptData{
		ClientName:  orNotAvailable(entry.ClientName),
		ServiceType: orNotAvailable(string(entry.ServiceType)),
		Category:    orNotAvailable(string(entry.Category)),
		Address:     orNotAvailable(entry.ClientAddress),
		Message:     orNotAvailable(entry.Message),
	})
}

func render(tmpl *template.Template, data any) string {
	var buffer bytes.Buffer
	if err := tmpl.Execute(&buffer, data); err != nil {
		return ""
	}
	return buffer.String()
}

func orNotAvailable(value string) string {
	if strings.TrimSpace(value) == "" {
		return notAvailable
	}
	return value
}
