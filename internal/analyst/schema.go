// Package analyst turns retrieved policy context and a user question into a
// validated coverage verdict.
package analyst

import (
	"fmt"
	"strings"
)

// Field is one entry of the structured answer contract.
type Field struct {
	Name        string
	Description string // instruction shown to the model for this field
	Required    bool
}

// PromptSchema is the enumerable contract for the model's JSON answer.
// The demo's variants differed only in which fields they demanded, so the
// field set is configuration rather than literals scattered across call
// sites. Field order is the order missing-field errors are reported in.
type PromptSchema struct {
	Fields []Field
}

// Core answer field names.
const (
	FieldDecision      = "decision"
	FieldAmount        = "amount"
	FieldJustification = "justification"
	FieldSourceClause  = "source_clause"
	FieldConfidence    = "confidence_score"
	FieldRiskFactors   = "risk_factors"
)

// DefaultSchema returns the four-field contract used by the policy analyst.
func DefaultSchema() PromptSchema {
	return PromptSchema{Fields: []Field{
		{Name: FieldDecision, Description: "A clear 'yes', 'no', or 'partially' based on the context.", Required: true},
		{Name: FieldAmount, Description: "The coverage amount if specified, otherwise 'Not Specified'.", Required: true},
		{Name: FieldJustification, Description: "A concise explanation for your decision, quoting directly from the context.", Required: true},
		{Name: FieldSourceClause, Description: "The specific clause or section number from the context that supports your decision.", Required: true},
	}}
}

// ExtendedSchema adds the advisory self-assessment fields on top of
// DefaultSchema.
func ExtendedSchema() PromptSchema {
	schema := DefaultSchema()
	schema.Fields = append(schema.Fields,
		Field{Name: FieldConfidence, Description: "Your confidence in this decision as a number between 0 and 1.", Required: false},
		Field{Name: FieldRiskFactors, Description: "A list of caveats or exclusions that could affect this decision.", Required: false},
	)
	return schema
}

// RequiredFields returns the names of required fields in declared order.
func (s PromptSchema) RequiredFields() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Has reports whether the schema declares the named field.
func (s PromptSchema) Has(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// jsonSpec renders the schema as the inline JSON template embedded in the
// answer prompt.
func (s PromptSchema) jsonSpec() string {
	parts := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		parts = append(parts, fmt.Sprintf("%q: %q", f.Name, f.Description))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
