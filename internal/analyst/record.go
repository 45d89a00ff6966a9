package analyst

// Coverage decisions the model may return. Anything else is a contract
// violation surfaced as a parse error.
const (
	DecisionYes       = "yes"
	DecisionNo        = "no"
	DecisionPartially = "partially"
)

// NotSpecified is the sentinel for answer fields the policy text did not
// pin down. Core fields are always populated, never absent.
const NotSpecified = "Not Specified"

// AnswerRecord is the validated structured verdict.
type AnswerRecord struct {
	Decision        string         `json:"decision"`
	Amount          string         `json:"amount"`
	Justification   string         `json:"justification"`
	SourceClause    string         `json:"source_clause"`
	ConfidenceScore *float64       `json:"confidence_score,omitempty"`
	RiskFactors     []string       `json:"risk_factors,omitempty"`
	Extra           map[string]any `json:"extra,omitempty"` // schema fields beyond the known set
	// Warnings carries non-fatal annotations, e.g. a confidence score below
	// the configured threshold. The decision itself is never altered by them.
	Warnings []string `json:"warnings,omitempty"`
}

func validDecision(d string) bool {
	switch d {
	case DecisionYes, DecisionNo, DecisionPartially:
		return true
	}
	return false
}
