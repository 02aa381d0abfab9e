package model

const (
	AnalysisSourceAI    = "ai"
	AnalysisSourceBasic = "basic"

	ClientTypeProspect = "PROSPECT"

	AnalysisPriorityHigh   = "HAUTE"
	AnalysisPriorityMedium = "MOYENNE"
	AnalysisPriorityLow    = "BASSE"
)

// Analysis summarizes a fiche for the operator.
type Analysis struct {
	ClientType      string   `json:"type_client"`
	Priority        string   `json:"priorite"`
	BudgetEstimate  string   `json:"budget_estime"`
	AttentionPoints []string `json:"points_attention"`
	Recommendations []string `json:"recommandations"`
	QualityScore    int      `json:"score_qualite"`
	Source          string   `json:"source"`
}
