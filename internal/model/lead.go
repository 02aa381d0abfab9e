package model

import (
	"errors"
	"strings"
)

const (
	errorMessageEmptyLeadSubmission = "empty_lead_submission"
)

var (
	// ErrEmptyLeadSubmission indicates a lead without any contact or location detail.
	ErrEmptyLeadSubmission = errors.New(errorMessageEmptyLeadSubmission)
)

// LeadSubmission is the fiche captured by the intake form.
type LeadSubmission struct {
	Adresse              string   `json:"adresse"`
	Ville                string   `json:"ville,omitempty"`
	CodePostal           string   `json:"codePostal,omitempty"`
	Prop1Nom             string   `json:"prop1Nom"`
	Prop1Prenom          string   `json:"prop1Prenom,omitempty"`
	Prop1Tel1            string   `json:"prop1Tel1,omitempty"`
	Prop1Tel2            string   `json:"prop1Tel2,omitempty"`
	Prop1Email           string   `json:"prop1Email,omitempty"`
	Message              string   `json:"message,omitempty"`
	Commentaires         string   `json:"commentaires,omitempty"`
	Titre                string   `json:"titre,omitempty"`
	ServiceType          string   `json:"serviceType,omitempty"`
	Urgence              string   `json:"urgence,omitempty"`
	Budget               string   `json:"budget,omitempty"`
	PremierAchat         bool     `json:"premierAchat,omitempty"`
	AnneeConstruction    string   `json:"anneeConstruction,omitempty"`
	EvaluationMunicipale string   `json:"evaluationMunicipale,omitempty"`
	Fondation            []string `json:"fondation,omitempty"`
	Toiture              string   `json:"toiture,omitempty"`
	AnneeToiture         string   `json:"anneeToiture,omitempty"`
	Equipements          []string `json:"equipements,omitempty"`
	NotesSpeciales       string   `json:"notesSpeciales,omitempty"`
}

// Normalize trims every free-text field.
func (lead LeadSubmission) Normalize() LeadSubmission {
	lead.Adresse = strings.TrimSpace(lead.Adresse)
	lead.Ville = strings.TrimSpace(lead.Ville)
	lead.CodePostal = strings.TrimSpace(lead.CodePostal)
	lead.Prop1Nom = strings.TrimSpace(lead.Prop1Nom)
	lead.Prop1Prenom = strings.TrimSpace(lead.Prop1Prenom)
	lead.Prop1Tel1 = strings.TrimSpace(lead.Prop1Tel1)
	lead.Prop1Tel2 = strings.TrimSpace(lead.Prop1Tel2)
	lead.Prop1Email = strings.TrimSpace(lead.Prop1Email)
	lead.Message = strings.TrimSpace(lead.Message)
	lead.Commentaires = strings.TrimSpace(lead.Commentaires)
	lead.Titre = strings.TrimSpace(lead.Titre)
	lead.ServiceType = strings.ToLower(strings.TrimSpace(lead.ServiceType))
	lead.Urgence = strings.ToLower(strings.TrimSpace(lead.Urgence))
	lead.Budget = strings.TrimSpace(lead.Budget)
	lead.AnneeConstruction = strings.TrimSpace(lead.AnneeConstruction)
	lead.EvaluationMunicipale = strings.TrimSpace(lead.EvaluationMunicipale)
	lead.Toiture = strings.TrimSpace(lead.Toiture)
	lead.AnneeToiture = strings.TrimSpace(lead.AnneeToiture)
	lead.NotesSpeciales = strings.TrimSpace(lead.NotesSpeciales)
	return lead
}

// Validate rejects a submission that carries nothing an operator could act on.
func (lead LeadSubmission) Validate() error {
	if lead.Prop1Nom == "" && lead.Prop1Tel1 == "" && lead.Prop1Email == "" && lead.Adresse == "" {
		return ErrEmptyLeadSubmission
	}
	return nil
}

// Location joins the address fields used for location checks.
func (lead LeadSubmission) Location() string {
	parts := make([]string, 0, 2)
	if lead.Adresse != "" {
		parts = append(parts, lead.Adresse)
	}
	if lead.Ville != "" {
		parts = append(parts, lead.Ville)
	}
	return strings.Join(parts, ", ")
}

// ContactPhone is the number the lead is reached at: the primary phone, else the secondary one.
func (lead LeadSubmission) ContactPhone() string {
	if primary := strings.TrimSpace(lead.Prop1Tel1); primary != "" {
		return primary
	}
	return strings.TrimSpace(lead.Prop1Tel2)
}

// FreeText joins the fields that carry the lead's intent.
func (lead LeadSubmission) FreeText() string {
	parts := make([]string, 0, 3)
	for _, value := range []string{lead.Message, lead.Commentaires, lead.Titre} {
		if value != "" {
			parts = append(parts, value)
		}
	}
	return strings.Join(parts, " ")
}
