package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLeadSubmissionNormalizeTrimsFields(t *testing.T) {
	lead := LeadSubmission{
		Adresse:     " 123 Main ",
		Prop1Nom:    " Jean Test ",
		Prop1Tel1:   " 418-555-0000",
		ServiceType: " Vente ",
	}.Normalize()

	require.Equal(t, "123 Main", lead.Adresse)
	require.Equal(t, "Jean Test", lead.Prop1Nom)
	require.Equal(t, "418-555-0000", lead.Prop1Tel1)
	require.Equal(t, "vente", lead.ServiceType)
}

func TestLeadSubmissionValidateRejectsEmpty(t *testing.T) {
	require.ErrorIs(t, LeadSubmission{Message: "bonjour"}.Validate(), ErrEmptyLeadSubmission)
	require.NoError(t, LeadSubmission{Prop1Email: "a@example.com"}.Validate())
}

func TestLeadSubmissionLocationAndFreeText(t *testing.T) {
	lead := LeadSubmission{Adresse: "1 rue", Ville: "Matagami", Message: "vendre", Titre: "Maison"}
	require.Equal(t, "1 rue, Matagami", lead.Location())
	require.Equal(t, "vendre Maison", lead.FreeText())
	require.Empty(t, LeadSubmission{}.Location())
}

func TestLeadSubmissionContactPhonePrefersPrimary(t *testing.T) {
	require.Equal(t, "418-555-0000", LeadSubmission{Prop1Tel1: " 418-555-0000 ", Prop1Tel2: "514-555-0000"}.ContactPhone())
	require.Equal(t, "514-555-0000", LeadSubmission{Prop1Tel1: "  ", Prop1Tel2: "514-555-0000"}.ContactPhone())
	require.Empty(t, LeadSubmission{}.ContactPhone())
}
