package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/schmug/scubascore/internal/model"
)

func sampleResult() model.ScoreResult {
	gmailScore := 75.0
	overall := 75.0
	return model.ScoreResult{
		GeneratedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		OverallScore: &overall,
		PerService: map[string]model.ServiceScore{
			"gmail": {
				Score:           &gmailScore,
				EvaluatedWeight: 10,
				PassedWeight:    7.5,
				PassedCount:     1,
				FailedCount:     1,
				Passed: []model.RulePass{
					{RuleID: "gws.gmail.1.1", Weight: 5},
				},
				Failed: []model.RuleFail{
					{RuleID: "gws.gmail.2.1", Weight: 5, Compensated: true, Requirement: "SPF enforced"},
				},
			},
		},
		DataQuality: model.DataQuality{TotalEntries: 2},
		TopFailures: []model.TopFailure{
			{Service: "gmail", Rule: "gws.gmail.2.1", Weight: 5, IsCompensated: true, EffectiveWeight: 2.5},
		},
	}
}

func TestGenerateAllFormats(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "out", "scan")
	written, err := Generate(sampleResult(), prefix, []string{"json", "csv", "html", "markdown"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := map[string]string{
		"json":     prefix + "_scores.json",
		"csv":      prefix + "_analysis.csv",
		"html":     prefix + "_report.html",
		"markdown": prefix + "_report.md",
	}
	for format, path := range want {
		if written[format] != path {
			t.Errorf("%s path = %q, want %q", format, written[format], path)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s report not written: %v", format, err)
		}
	}
}

func TestGenerateDefaultFormats(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "scan")
	written, err := Generate(sampleResult(), prefix, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(written) != len(DefaultFormats) {
		t.Errorf("got %d outputs, want %d", len(written), len(DefaultFormats))
	}
}

func TestGenerateUnknownFormat(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "scan")
	if _, err := Generate(sampleResult(), prefix, []string{"pdf"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestJSONRoundTrips(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "scan")
	written, err := Generate(sampleResult(), prefix, []string{"json"})
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(written["json"])
	if err != nil {
		t.Fatal(err)
	}
	var decoded model.ScoreResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("report JSON does not parse: %v", err)
	}
	if *decoded.OverallScore != 75.0 {
		t.Errorf("overall = %g, want 75", *decoded.OverallScore)
	}
}

func TestCSVContent(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "scan")
	written, err := Generate(sampleResult(), prefix, []string{"csv"})
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(written["csv"])
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	for _, want := range []string{
		"Service,Score (%),Status",
		"gmail,75,Fair,10,7.5,1,1,1",
		"Overall Score,75",
		"Failed Rules Detail",
		"gmail,gws.gmail.2.1,SPF enforced,5,Yes,",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("CSV missing %q:\n%s", want, content)
		}
	}
}

func TestMarkdownContent(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "scan")
	written, err := Generate(sampleResult(), prefix, []string{"md"})
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(written["md"])
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	for _, want := range []string{
		"# SCuBA Security Score Report",
		"**75%**",
		"| gmail | 75% | 1 | 1 | 1 |",
		"### gmail",
		"- gws.gmail.2.1 (weight: 5) *(compensating control applied)*",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("markdown missing %q:\n%s", want, content)
		}
	}
}

func TestHTMLContent(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "scan")
	written, err := Generate(sampleResult(), prefix, []string{"html"})
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(written["html"])
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{"<html", "gmail", "75"} {
		if !strings.Contains(content, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
}

func TestStatusBand(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{95, "Excellent"},
		{90, "Excellent"},
		{85, "Good"},
		{72, "Fair"},
		{65, "Poor"},
		{10, "Critical"},
	}
	for _, tc := range cases {
		if got := StatusBand(&tc.score); got != tc.want {
			t.Errorf("StatusBand(%g) = %q, want %q", tc.score, got, tc.want)
		}
	}
	if got := StatusBand(nil); got != "N/A" {
		t.Errorf("StatusBand(nil) = %q, want N/A", got)
	}
}
