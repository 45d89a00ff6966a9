package analyst

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParseErrorKind classifies why a model response could not be accepted.
type ParseErrorKind string

const (
	// MalformedJSON means no decodable JSON object was found in the response,
	// or a decoded value violates the answer contract.
	MalformedJSON ParseErrorKind = "malformed_json"
	// MissingField means the JSON object lacks a required schema field.
	MissingField ParseErrorKind = "missing_field"
)

// ParseError reports a model response that failed validation. RawEvidence is
// always the full original response text so a bad answer can be diagnosed
// without re-running the pipeline.
type ParseError struct {
	Kind        ParseErrorKind
	Field       string // set for MissingField and contract violations
	Message     string
	RawEvidence string
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse answer: %s (%s): %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("parse answer: %s: %s", e.Kind, e.Message)
}

// ParseAnswer extracts and validates the structured verdict from raw model
// output. Models routinely wrap the JSON object in prose, so the parser takes
// the span from the first '{' to the last '}' and decodes that.
//
// A confidence score below confidenceThreshold (when the threshold is
// enabled, i.e. > 0) attaches a warning to the record instead of rejecting
// it; low confidence is informative, not disqualifying.
func ParseAnswer(raw string, schema PromptSchema, confidenceThreshold float64) (*AnswerRecord, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return nil, &ParseError{
			Kind:        MalformedJSON,
			Message:     "no JSON object found in response",
			RawEvidence: raw,
		}
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &fields); err != nil {
		return nil, &ParseError{
			Kind:        MalformedJSON,
			Message:     err.Error(),
			RawEvidence: raw,
		}
	}

	for _, name := range schema.RequiredFields() {
		if _, ok := fields[name]; !ok {
			return nil, &ParseError{
				Kind:        MissingField,
				Field:       name,
				Message:     fmt.Sprintf("required field %q absent from response", name),
				RawEvidence: raw,
			}
		}
	}

	record := &AnswerRecord{
		Decision:      normalizeDecision(stringField(fields, FieldDecision)),
		Amount:        stringField(fields, FieldAmount),
		Justification: stringField(fields, FieldJustification),
		SourceClause:  stringField(fields, FieldSourceClause),
	}
	if !validDecision(record.Decision) {
		return nil, &ParseError{
			Kind:        MalformedJSON,
			Field:       FieldDecision,
			Message:     fmt.Sprintf("decision %q is not one of yes/no/partially", record.Decision),
			RawEvidence: raw,
		}
	}

	if v, ok := fields[FieldConfidence]; ok {
		if score, ok := numericValue(v); ok {
			record.ConfidenceScore = &score
			if confidenceThreshold > 0 && score < confidenceThreshold {
				record.Warnings = append(record.Warnings,
					fmt.Sprintf("confidence score %.2f is below threshold %.2f", score, confidenceThreshold))
			}
		}
	}

	if v, ok := fields[FieldRiskFactors]; ok {
		record.RiskFactors = stringList(v)
	}

	known := map[string]bool{
		FieldDecision: true, FieldAmount: true, FieldJustification: true,
		FieldSourceClause: true, FieldConfidence: true, FieldRiskFactors: true,
	}
	for name, v := range fields {
		if known[name] {
			continue
		}
		if record.Extra == nil {
			record.Extra = make(map[string]any)
		}
		record.Extra[name] = v
	}

	return record, nil
}

// normalizeDecision lowercases and strips punctuation the model tends to add
// around the verdict ("Yes.", "'partially'").
func normalizeDecision(d string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(d), `.'"`))
}

// stringField renders a field value as text, substituting the NotSpecified
// sentinel for missing or empty values so the core fields are never blank.
func stringField(fields map[string]any, name string) string {
	v, ok := fields[name]
	if !ok || v == nil {
		return NotSpecified
	}
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return NotSpecified
		}
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return NotSpecified
		}
		return string(b)
	}
}

func numericValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
