// Package report renders a ScoreResult to files. Formats are keyed off an
// output prefix: <prefix>_scores.json, <prefix>_analysis.csv,
// <prefix>_report.html, <prefix>_report.md.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schmug/scubascore/internal/model"
)

// DefaultFormats are the formats generated when the caller does not choose.
var DefaultFormats = []string{"json", "csv", "html"}

// Generate writes the requested report formats and returns format → path.
// Parent directories of the prefix are created as needed.
func Generate(result model.ScoreResult, prefix string, formats []string) (map[string]string, error) {
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	if dir := filepath.Dir(prefix); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	outputs := make(map[string]string, len(formats))
	for _, format := range formats {
		var path string
		var err error
		switch format {
		case "json":
			path, err = writeJSON(result, prefix)
		case "csv":
			path, err = writeCSV(result, prefix)
		case "html":
			path, err = writeHTML(result, prefix)
		case "markdown", "md":
			path, err = writeMarkdown(result, prefix)
		default:
			return nil, fmt.Errorf("unknown output format: %s", format)
		}
		if err != nil {
			return nil, fmt.Errorf("generate %s report: %w", format, err)
		}
		outputs[format] = path
	}
	return outputs, nil
}

func writeJSON(result model.ScoreResult, prefix string) (string, error) {
	path := prefix + "_scores.json"
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, append(data, '\n'), 0644)
}

func writeCSV(result model.ScoreResult, prefix string) (string, error) {
	path := prefix + "_analysis.csv"
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	_ = w.Write([]string{
		"Service", "Score (%)", "Status", "Evaluated Weight", "Passed Weight",
		"Passed Rules", "Failed Rules", "Rules with Compensating Controls",
	})
	for _, service := range sortedServices(result) {
		s := result.PerService[service]
		score := ""
		if s.Score != nil {
			score = trimFloat(*s.Score)
		}
		_ = w.Write([]string{
			service,
			score,
			StatusBand(s.Score),
			trimFloat(s.EvaluatedWeight),
			trimFloat(s.PassedWeight),
			fmt.Sprint(s.PassedCount),
			fmt.Sprint(s.FailedCount),
			fmt.Sprint(compensatedCount(s)),
		})
	}

	_ = w.Write(nil)
	overall := "N/A"
	if result.OverallScore != nil {
		overall = trimFloat(*result.OverallScore)
	}
	_ = w.Write([]string{"Overall Score", overall})
	_ = w.Write([]string{"Generated At", result.GeneratedAt.Format("2006-01-02 15:04:05 UTC")})

	_ = w.Write(nil)
	_ = w.Write(nil)
	_ = w.Write([]string{"Failed Rules Detail"})
	_ = w.Write([]string{"Service", "Rule ID", "Requirement", "Weight", "Compensating Control", "Documentation URL"})
	for _, service := range sortedServices(result) {
		for _, rule := range result.PerService[service].Failed {
			comp := "No"
			if rule.Compensated {
				comp = "Yes"
			}
			_ = w.Write([]string{service, rule.RuleID, rule.Requirement, trimFloat(rule.Weight), comp, rule.DocumentationURL})
		}
	}

	w.Flush()
	return path, w.Error()
}

func writeMarkdown(result model.ScoreResult, prefix string) (string, error) {
	path := prefix + "_report.md"
	var b strings.Builder

	b.WriteString("# SCuBA Security Score Report\n\n")
	fmt.Fprintf(&b, "**Generated:** %s\n\n", result.GeneratedAt.Format("2006-01-02 15:04 UTC"))
	b.WriteString("## Overall Score\n\n")
	if result.OverallScore != nil {
		fmt.Fprintf(&b, "**%s%%**\n\n", trimFloat(*result.OverallScore))
	} else {
		b.WriteString("**N/A**\n\n")
	}

	b.WriteString("## Service Scores\n\n")
	b.WriteString("| Service | Score | Passed | Failed | Compensating Controls |\n")
	b.WriteString("|---------|-------|--------|--------|--------------------|\n")
	for _, service := range sortedServices(result) {
		s := result.PerService[service]
		score := "N/A"
		if s.Score != nil {
			score = trimFloat(*s.Score) + "%"
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %d |\n",
			service, score, s.PassedCount, s.FailedCount, compensatedCount(s))
	}

	b.WriteString("\n## Failed Rules\n\n")
	for _, service := range sortedServices(result) {
		s := result.PerService[service]
		if len(s.Failed) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s\n\n", service)
		for _, rule := range s.Failed {
			comp := ""
			if rule.Compensated {
				comp = " *(compensating control applied)*"
			}
			fmt.Fprintf(&b, "- %s (weight: %s)%s\n", rule.RuleID, trimFloat(rule.Weight), comp)
		}
		b.WriteString("\n")
	}

	return path, os.WriteFile(path, []byte(b.String()), 0644)
}

// StatusBand maps a score to its reporting band.
func StatusBand(score *float64) string {
	if score == nil {
		return "N/A"
	}
	switch {
	case *score >= 90:
		return "Excellent"
	case *score >= 80:
		return "Good"
	case *score >= 70:
		return "Fair"
	case *score >= 60:
		return "Poor"
	default:
		return "Critical"
	}
}

func compensatedCount(s model.ServiceScore) int {
	n := 0
	for _, rule := range s.Failed {
		if rule.Compensated {
			n++
		}
	}
	return n
}

func sortedServices(result model.ScoreResult) []string {
	names := make([]string, 0, len(result.PerService))
	for name := range result.PerService {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// trimFloat renders a float without trailing zeros: 75 not 75.00, 62.5 not 62.50.
func trimFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
