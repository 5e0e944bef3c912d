package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/schmug/scubascore/internal/config"
	"github.com/schmug/scubascore/internal/ingest"
	"github.com/schmug/scubascore/internal/model"
	"github.com/schmug/scubascore/internal/report"
	"github.com/schmug/scubascore/internal/scoring"
)

var (
	scoreInput          string
	scoreOutPrefix      string
	scoreWeights        string
	scoreServiceWeights string
	scoreCompensating   string
	scoreFormats        string
	scorePretty         bool
	scoreDryRun         bool
	scoreStrict         bool
)

func init() {
	rootCmd.AddCommand(scoreCmd)
	scoreCmd.Flags().StringVarP(&scoreInput, "input", "i", "", "Path to scan results JSON (required)")
	scoreCmd.Flags().StringVarP(&scoreOutPrefix, "out-prefix", "o", "scuba", "Output file prefix for reports")
	scoreCmd.Flags().StringVarP(&scoreWeights, "weights", "w", "", "Path to rule weights YAML")
	scoreCmd.Flags().StringVarP(&scoreServiceWeights, "service-weights", "s", "", "Path to service weights YAML")
	scoreCmd.Flags().StringVarP(&scoreCompensating, "compensating", "c", "", "Path to compensating controls YAML")
	scoreCmd.Flags().StringVarP(&scoreFormats, "formats", "f", strings.Join(report.DefaultFormats, ","), "Report formats (json,csv,html,markdown)")
	scoreCmd.Flags().BoolVar(&scorePretty, "pretty", false, "Print the full result JSON to stdout")
	scoreCmd.Flags().BoolVar(&scoreDryRun, "dry-run", false, "Score without writing report files")
	scoreCmd.Flags().BoolVar(&scoreStrict, "strict", false, "Fail when no rules could be evaluated")
	scoreCmd.MarkFlagRequired("input")
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a scan results file and write reports",
	Long: "Runs the full pipeline on one scan export: parse, normalize, score,\n" +
		"then write reports named <prefix>_scores.json, <prefix>_analysis.csv, etc.\n\n" +
		"With --strict, exit 1 when the input yields no evaluable rules.",
	RunE: runScore,
}

func runScore(cmd *cobra.Command, args []string) error {
	weights, err := config.LoadWeights(scoreWeights)
	if err != nil {
		return fmt.Errorf("load weights: %w", err)
	}
	serviceWeights, err := config.LoadServiceWeights(scoreServiceWeights)
	if err != nil {
		return fmt.Errorf("load service weights: %w", err)
	}
	compensating, err := config.LoadCompensating(scoreCompensating)
	if err != nil {
		return fmt.Errorf("load compensating controls: %w", err)
	}

	doc, err := ingest.LoadFile(scoreInput)
	if err != nil {
		return err
	}
	rules, err := ingest.ParseResults(doc, weights, compensating)
	if err != nil {
		return err
	}

	result := scoring.Compute(rules, serviceWeights)
	summary := scoring.Summarize(result)

	if scoreStrict && summary.TotalEvaluated == 0 {
		return fmt.Errorf("strict mode: no evaluable rules in %s", scoreInput)
	}

	if !scoreDryRun {
		var formats []string
		for _, f := range strings.Split(scoreFormats, ",") {
			if f = strings.TrimSpace(f); f != "" {
				formats = append(formats, f)
			}
		}
		written, err := report.Generate(result, scoreOutPrefix, formats)
		if err != nil {
			return fmt.Errorf("write reports: %w", err)
		}
		formatsWritten := make([]string, 0, len(written))
		for format := range written {
			formatsWritten = append(formatsWritten, format)
		}
		sort.Strings(formatsWritten)
		for _, format := range formatsWritten {
			fmt.Fprintf(os.Stderr, "wrote %s\n", written[format])
		}
	}

	if scorePretty {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	printSummary(result, summary)
	return nil
}

func printSummary(result model.ScoreResult, summary model.Summary) {
	if summary.OverallScore != nil {
		fmt.Printf("Overall score: %.2f%% (%s)\n", *summary.OverallScore, report.StatusBand(summary.OverallScore))
	} else {
		fmt.Println("Overall score: n/a (no rules evaluated)")
	}
	fmt.Printf("Services analyzed: %d (%d at or above 80%%)\n", summary.ServicesAnalyzed, summary.ServicesAtThreshold)
	fmt.Printf("Rules: %d evaluated, %d passed, %d failed\n", summary.TotalEvaluated, summary.TotalPassed, summary.TotalFailed)
	if result.DataQuality.UnknownOrError > 0 {
		fmt.Printf("Data quality: %d entries with unknown or error verdicts\n", result.DataQuality.UnknownOrError)
	}
	if len(result.TopFailures) > 0 {
		fmt.Println("Top failures:")
		for _, f := range result.TopFailures {
			note := ""
			if f.IsCompensated {
				note = " (compensated)"
			}
			fmt.Printf("  %-10s %s weight=%s%s\n", f.Service, f.Rule, trim(f.EffectiveWeight), note)
		}
	}
}

func trim(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
