package ingest

import (
	"errors"
	"testing"

	"github.com/schmug/scubascore/internal/config"
	"github.com/schmug/scubascore/internal/model"
)

func TestNormalizeVerdict(t *testing.T) {
	cases := []struct {
		in   any
		want model.Verdict
	}{
		{"pass", model.VerdictPass},
		{"Passed", model.VerdictPass},
		{"TRUE", model.VerdictPass},
		{"success", model.VerdictPass},
		{"ok", model.VerdictPass},
		{true, model.VerdictPass},
		{"fail", model.VerdictFail},
		{"Failed", model.VerdictFail},
		{"false", model.VerdictFail},
		{"failure", model.VerdictFail},
		{false, model.VerdictFail},
		{"n/a", model.VerdictNA},
		{"NA", model.VerdictNA},
		{"Not Applicable", model.VerdictNA},
		{"not_applicable", model.VerdictNA},
		{"warning", model.VerdictNA},
		{"warn", model.VerdictNA},
		{"manual", model.VerdictNA},
		{"Requires Manual Check", model.VerdictNA},
		{"Error: NO EVENTS FOUND in the last 30 days", model.VerdictNA},
		{"unknown", model.VerdictUnknown},
		{"error", model.VerdictUnknown},
		{"undefined", model.VerdictUnknown},
		{nil, model.VerdictUnknown},
		{"", model.VerdictUnknown},
		{"  pass  ", model.VerdictPass},
		{"gibberish", model.VerdictUnknown},
		{42.0, model.VerdictUnknown},
	}
	for _, tc := range cases {
		if got := NormalizeVerdict(tc.in); got != tc.want {
			t.Errorf("NormalizeVerdict(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestInferService(t *testing.T) {
	cases := []struct {
		id   string
		want string
	}{
		{"gws.gmail.1.1", "gmail"},
		{"gws.drive.2.3", "drive"},
		{"gws.commonsettings.1.1", "commonsettings"},
		{"gws.common.1.1", "common"},
		{"abc123.calendar.", "calendar"},
		{"", ""},
		{"noservicehere", ""},
		{"gws.GMAIL.1.1", ""},
	}
	for _, tc := range cases {
		if got := InferService(tc.id); got != tc.want {
			t.Errorf("InferService(%q) = %q, want %q", tc.id, got, tc.want)
		}
	}
}

func TestParseResultsAliasPriority(t *testing.T) {
	doc := map[string]any{
		"rules": []any{
			map[string]any{
				"rule_id": "gws.gmail.1.1",
				"id":      "shadowed",
				"verdict": "pass",
				"status":  "fail",
			},
		},
	}
	rules, err := ParseResults(doc, nil, nil)
	if err != nil {
		t.Fatalf("ParseResults: %v", err)
	}
	if rules[0].ID != "gws.gmail.1.1" {
		t.Errorf("ID = %q, want rule_id to win over id", rules[0].ID)
	}
	if rules[0].Verdict != model.VerdictPass {
		t.Errorf("Verdict = %v, want verdict to win over status", rules[0].Verdict)
	}
}

func TestParseResultsBooleanVerdictNotSkipped(t *testing.T) {
	doc := []any{
		map[string]any{"rule_id": "a", "verdict": false},
	}
	rules, err := ParseResults(doc, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rules[0].Verdict != model.VerdictFail {
		t.Errorf("Verdict = %v, want FAIL from boolean false", rules[0].Verdict)
	}
}

func TestParseResultsUnknownID(t *testing.T) {
	doc := []any{
		map[string]any{"verdict": "pass"},
	}
	rules, err := ParseResults(doc, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rules[0].ID != "unknown" {
		t.Errorf("ID = %q, want fallback %q", rules[0].ID, "unknown")
	}
}

func TestParseResultsServiceResolution(t *testing.T) {
	doc := map[string]any{
		"services": map[string]any{
			"meet": map[string]any{
				"rules": []any{
					map[string]any{"rule_id": "norule", "verdict": "pass"},
					map[string]any{"rule_id": "x", "verdict": "pass", "service": "explicit"},
				},
			},
		},
	}
	rules, err := ParseResults(doc, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rules[0].Service != "meet" {
		t.Errorf("Service = %q, want inherited %q", rules[0].Service, "meet")
	}
	if rules[1].Service != "explicit" {
		t.Errorf("Service = %q, want explicit field to win", rules[1].Service)
	}
}

func TestParseResultsInfersServiceFromID(t *testing.T) {
	doc := []any{
		map[string]any{"rule_id": "gws.classroom.1.1", "verdict": "pass"},
	}
	rules, err := ParseResults(doc, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rules[0].Service != "classroom" {
		t.Errorf("Service = %q, want inferred classroom", rules[0].Service)
	}
}

func TestParseResultsWeightsAndCompensating(t *testing.T) {
	weights := &config.WeightConfig{Weights: map[string]float64{"gws.gmail": 5}}
	compensating := &config.CompensatingConfig{Controls: map[string]string{
		"gws.gmail.1.1": "mitigated upstream",
	}}
	doc := []any{
		map[string]any{"rule_id": "gws.gmail.1.1", "verdict": "fail"},
		map[string]any{"rule_id": "gws.drive.1.1", "verdict": "fail"},
	}
	rules, err := ParseResults(doc, weights, compensating)
	if err != nil {
		t.Fatal(err)
	}
	if rules[0].Weight != 5 {
		t.Errorf("Weight = %g, want prefix-resolved 5", rules[0].Weight)
	}
	if !rules[0].Compensating || rules[0].CompensatingNote != "mitigated upstream" {
		t.Errorf("compensating not resolved: %+v", rules[0])
	}
	if rules[1].Weight != config.DefaultWeight {
		t.Errorf("Weight = %g, want default", rules[1].Weight)
	}
	if rules[1].Compensating {
		t.Error("uncompensated rule marked compensated")
	}
}

func TestParseResultsDocumentationURL(t *testing.T) {
	doc := []any{
		map[string]any{
			"Control ID":        "GWS.CALENDAR.1.1v0.5",
			"Result":            "Fail",
			"GroupReferenceURL": "https://example.com/calendar",
		},
		map[string]any{
			"rule_id":           "gws.gmail.2.3",
			"documentation_url": "https://explicit.example.com",
			"GroupReferenceURL": "https://ignored.example.com",
		},
		map[string]any{"rule_id": "nocontrolnumber", "GroupReferenceURL": "https://example.com"},
	}
	rules, err := ParseResults(doc, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rules[0].DocumentationURL != "https://example.com/calendar#11" {
		t.Errorf("DocumentationURL = %q, want constructed anchor", rules[0].DocumentationURL)
	}
	if rules[1].DocumentationURL != "https://explicit.example.com" {
		t.Errorf("DocumentationURL = %q, want explicit field to win", rules[1].DocumentationURL)
	}
	if rules[2].DocumentationURL != "" {
		t.Errorf("DocumentationURL = %q, want empty without control number", rules[2].DocumentationURL)
	}
}

func TestParseResultsRequirementAndSeverity(t *testing.T) {
	doc := []any{
		map[string]any{
			"rule_id":     "a",
			"Requirement": "External sharing is disabled",
			"Criticality": "Shall",
		},
	}
	rules, err := ParseResults(doc, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rules[0].Requirement != "External sharing is disabled" {
		t.Errorf("Requirement = %q", rules[0].Requirement)
	}
	if rules[0].Severity != "Shall" {
		t.Errorf("Severity = %q", rules[0].Severity)
	}
}

func TestParseResultsRejectsScalars(t *testing.T) {
	for _, doc := range []any{nil, "text", 3.0, true} {
		if _, err := ParseResults(doc, nil, nil); !errors.Is(err, ErrParse) {
			t.Errorf("ParseResults(%v) error = %v, want ErrParse", doc, err)
		}
	}
}

func TestDecodeInvalidJSON(t *testing.T) {
	if _, err := Decode([]byte("{not json")); !errors.Is(err, ErrParse) {
		t.Errorf("error = %v, want ErrParse", err)
	}
}

func TestParseResultsEmptyInput(t *testing.T) {
	rules, err := ParseResults(map[string]any{}, nil, nil)
	if err != nil {
		t.Fatalf("ParseResults: %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("got %d rules, want 0", len(rules))
	}
}

func TestAllShapesSameCanonicalRules(t *testing.T) {
	pass := map[string]any{"rule_id": "gws.gmail.1.1", "verdict": "pass", "service": "gmail"}
	fail := map[string]any{"rule_id": "gws.gmail.1.2", "verdict": "fail", "service": "gmail"}
	passBare := map[string]any{"rule_id": "gws.gmail.1.1", "verdict": "pass"}
	failBare := map[string]any{"rule_id": "gws.gmail.1.2", "verdict": "fail"}

	shapes := map[string]any{
		"flat array": []any{pass, fail},
		"rules key":  map[string]any{"rules": []any{pass, fail}},
		"nested results": map[string]any{
			"Results": []any{map[string]any{"Rules": []any{pass, fail}}},
		},
		"service-keyed results": map[string]any{
			"Results": map[string]any{
				"gmail": []any{map[string]any{"Controls": []any{passBare, failBare}}},
			},
		},
		"services map": map[string]any{
			"services": map[string]any{
				"gmail": map[string]any{"rules": []any{passBare, failBare}},
			},
		},
	}

	want, err := ParseResults([]any{pass, fail}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	for name, doc := range shapes {
		got, err := ParseResults(doc, nil, nil)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("%s: rules diverge from flat array: %+v", name, got)
		}
	}
}
