package analyst

import (
	"errors"
	"strings"
	"testing"
)

const goodAnswer = `{
	"decision": "yes",
	"amount": "Rs. 50,000",
	"justification": "Clause 4.2 covers knee surgery after the waiting period.",
	"source_clause": "4.2"
}`

func TestParseAnswer_CleanObject(t *testing.T) {
	record, err := ParseAnswer(goodAnswer, DefaultSchema(), 0)
	if err != nil {
		t.Fatalf("ParseAnswer failed: %v", err)
	}
	if record.Decision != DecisionYes {
		t.Errorf("decision = %q, want %q", record.Decision, DecisionYes)
	}
	if record.Amount != "Rs. 50,000" {
		t.Errorf("amount = %q", record.Amount)
	}
	if record.SourceClause != "4.2" {
		t.Errorf("source_clause = %q", record.SourceClause)
	}
	if len(record.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", record.Warnings)
	}
}

// TestParseAnswer_SurroundingProse verifies the parser tolerates chatter
// around the JSON object.
func TestParseAnswer_SurroundingProse(t *testing.T) {
	raw := "Sure! Here is the analysis you asked for:\n\n```json\n" + goodAnswer + "\n```\nLet me know if you need anything else."

	record, err := ParseAnswer(raw, DefaultSchema(), 0)
	if err != nil {
		t.Fatalf("ParseAnswer failed on wrapped object: %v", err)
	}
	if record.Decision != DecisionYes {
		t.Errorf("decision = %q, want %q", record.Decision, DecisionYes)
	}
}

func TestParseAnswer_NoObject(t *testing.T) {
	raw := "I cannot answer that question."

	_, err := ParseAnswer(raw, DefaultSchema(), 0)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if perr.Kind != MalformedJSON {
		t.Errorf("kind = %q, want %q", perr.Kind, MalformedJSON)
	}
	if perr.RawEvidence != raw {
		t.Errorf("RawEvidence = %q, want the original response", perr.RawEvidence)
	}
}

func TestParseAnswer_BrokenJSON(t *testing.T) {
	raw := `{"decision": "yes", "amount":` + "\ntruncated }"

	_, err := ParseAnswer(raw, DefaultSchema(), 0)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if perr.Kind != MalformedJSON {
		t.Errorf("kind = %q, want %q", perr.Kind, MalformedJSON)
	}
	if perr.RawEvidence != raw {
		t.Error("RawEvidence should be the full original response")
	}
}

// TestParseAnswer_MissingFieldOrder verifies missing fields are reported in
// schema declaration order, deterministically.
func TestParseAnswer_MissingFieldOrder(t *testing.T) {
	// Missing both amount and source_clause; amount is declared first.
	raw := `{"decision": "no", "justification": "Dental work is excluded."}`

	for i := 0; i < 10; i++ {
		_, err := ParseAnswer(raw, DefaultSchema(), 0)
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Fatalf("expected *ParseError, got %v", err)
		}
		if perr.Kind != MissingField {
			t.Fatalf("kind = %q, want %q", perr.Kind, MissingField)
		}
		if perr.Field != FieldAmount {
			t.Fatalf("field = %q, want %q (declaration order)", perr.Field, FieldAmount)
		}
	}
}

func TestParseAnswer_DecisionNormalization(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{`"Yes."`, DecisionYes},
		{`"'partially'"`, DecisionPartially},
		{`" No "`, DecisionNo},
		{`"PARTIALLY"`, DecisionPartially},
	}

	for _, tc := range cases {
		raw := `{"decision": ` + tc.raw + `, "amount": "n/a", "justification": "j", "source_clause": "1"}`
		record, err := ParseAnswer(raw, DefaultSchema(), 0)
		if err != nil {
			t.Errorf("ParseAnswer(%s): %v", tc.raw, err)
			continue
		}
		if record.Decision != tc.want {
			t.Errorf("decision %s normalized to %q, want %q", tc.raw, record.Decision, tc.want)
		}
	}
}

func TestParseAnswer_InvalidDecision(t *testing.T) {
	raw := `{"decision": "maybe", "amount": "n/a", "justification": "j", "source_clause": "1"}`

	_, err := ParseAnswer(raw, DefaultSchema(), 0)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if perr.Kind != MalformedJSON || perr.Field != FieldDecision {
		t.Errorf("got kind=%q field=%q, want malformed_json on decision", perr.Kind, perr.Field)
	}
	if perr.RawEvidence != raw {
		t.Error("RawEvidence should be the full original response")
	}
}

func TestParseAnswer_NotSpecifiedSentinel(t *testing.T) {
	raw := `{"decision": "no", "amount": "", "justification": "Excluded under clause 7.", "source_clause": null}`

	record, err := ParseAnswer(raw, DefaultSchema(), 0)
	if err != nil {
		t.Fatalf("ParseAnswer failed: %v", err)
	}
	if record.Amount != NotSpecified {
		t.Errorf("empty amount = %q, want %q", record.Amount, NotSpecified)
	}
	if record.SourceClause != NotSpecified {
		t.Errorf("null source_clause = %q, want %q", record.SourceClause, NotSpecified)
	}
}

// TestParseAnswer_LowConfidenceWarns verifies a sub-threshold confidence
// score attaches a warning without changing the verdict.
func TestParseAnswer_LowConfidenceWarns(t *testing.T) {
	raw := `{"decision": "yes", "amount": "Not Specified", "justification": "j", "source_clause": "2.1", "confidence_score": 0.35}`

	record, err := ParseAnswer(raw, ExtendedSchema(), 0.7)
	if err != nil {
		t.Fatalf("ParseAnswer failed: %v", err)
	}
	if record.Decision != DecisionYes {
		t.Errorf("low confidence must not change the decision, got %q", record.Decision)
	}
	if record.ConfidenceScore == nil || *record.ConfidenceScore != 0.35 {
		t.Fatalf("confidence score not captured: %v", record.ConfidenceScore)
	}
	if len(record.Warnings) != 1 || !strings.Contains(record.Warnings[0], "below threshold") {
		t.Errorf("expected one low-confidence warning, got %v", record.Warnings)
	}

	// Threshold disabled: same response, no warning.
	record, err = ParseAnswer(raw, ExtendedSchema(), 0)
	if err != nil {
		t.Fatalf("ParseAnswer failed: %v", err)
	}
	if len(record.Warnings) != 0 {
		t.Errorf("threshold 0 should not warn, got %v", record.Warnings)
	}
}

func TestParseAnswer_ExtraFieldsPreserved(t *testing.T) {
	raw := `{"decision": "partially", "amount": "50%", "justification": "j", "source_clause": "3", "risk_factors": ["waiting period", "sub-limit"], "notes": "co-pay applies"}`

	record, err := ParseAnswer(raw, ExtendedSchema(), 0)
	if err != nil {
		t.Fatalf("ParseAnswer failed: %v", err)
	}
	if len(record.RiskFactors) != 2 || record.RiskFactors[0] != "waiting period" {
		t.Errorf("risk_factors = %v", record.RiskFactors)
	}
	if record.Extra["notes"] != "co-pay applies" {
		t.Errorf("extra fields not preserved: %v", record.Extra)
	}
}

func TestSchema_RequiredFields(t *testing.T) {
	want := []string{FieldDecision, FieldAmount, FieldJustification, FieldSourceClause}
	got := DefaultSchema().RequiredFields()
	if len(got) != len(want) {
		t.Fatalf("RequiredFields() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("RequiredFields()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// Extended fields are advisory, not required.
	extended := ExtendedSchema()
	if len(extended.RequiredFields()) != len(want) {
		t.Errorf("ExtendedSchema required fields = %v", extended.RequiredFields())
	}
	if !extended.Has(FieldConfidence) || !extended.Has(FieldRiskFactors) {
		t.Error("ExtendedSchema should declare the advisory fields")
	}
}

func TestSchema_JSONSpec(t *testing.T) {
	spec := DefaultSchema().jsonSpec()
	if !strings.HasPrefix(spec, "{") || !strings.HasSuffix(spec, "}") {
		t.Fatalf("jsonSpec() = %q", spec)
	}
	for _, name := range []string{FieldDecision, FieldAmount, FieldJustification, FieldSourceClause} {
		if !strings.Contains(spec, `"`+name+`"`) {
			t.Errorf("jsonSpec() missing field %q: %s", name, spec)
		}
	}
}
