// Package model defines the canonical entities of a scoring run: the
// normalized Rule, per-service aggregates, and the ScoreResult handed to
// reporters and the dashboard. Everything here is immutable once built;
// a scoring run is a pure function of (rules, configs).
package model

import "time"

// Verdict is the canonical outcome of a single security control check.
type Verdict string

const (
	VerdictPass    Verdict = "PASS"
	VerdictFail    Verdict = "FAIL"
	VerdictNA      Verdict = "NOT_APPLICABLE"
	VerdictUnknown Verdict = "UNKNOWN"
)

// ServiceUnspecified is the bucket for rules whose service could not be
// resolved from any field or inferred from the rule ID.
const ServiceUnspecified = "unspecified"

// Rule is one normalized control check result. Built once by the ingest
// normalizer and never mutated afterwards.
type Rule struct {
	ID               string  `json:"rule_id"`
	Verdict          Verdict `json:"verdict"`
	Service          string  `json:"service,omitempty"`
	Severity         string  `json:"severity,omitempty"`
	Weight           float64 `json:"weight"`
	Compensating     bool    `json:"has_compensating_control"`
	CompensatingNote string  `json:"compensating_control,omitempty"`
	Requirement      string  `json:"requirement,omitempty"`
	DocumentationURL string  `json:"documentation_url,omitempty"`
}

// Evaluated reports whether the rule counts toward a service score.
func (r Rule) Evaluated() bool {
	return r.Verdict == VerdictPass || r.Verdict == VerdictFail
}

// Contribution returns the weight the rule adds to its service's passed
// accumulator: full weight on PASS, half on a compensated FAIL, else zero.
func (r Rule) Contribution() float64 {
	switch r.Verdict {
	case VerdictPass:
		return r.Weight
	case VerdictFail:
		if r.Compensating {
			return r.Weight * 0.5
		}
	}
	return 0
}

// RulePass is a passed rule reference kept for reporting.
type RulePass struct {
	RuleID           string  `json:"rule_id"`
	Weight           float64 `json:"weight"`
	DocumentationURL string  `json:"documentation_url,omitempty"`
}

// RuleFail is a failed rule reference kept for reporting and ranking.
type RuleFail struct {
	RuleID           string  `json:"rule_id"`
	Weight           float64 `json:"weight"`
	Compensated      bool    `json:"has_compensating_control"`
	DocumentationURL string  `json:"documentation_url,omitempty"`
	Requirement      string  `json:"requirement,omitempty"`
}

// ServiceScore holds the aggregated result for one service.
// Score is nil when no rule of the service was evaluated: a service with
// only NOT_APPLICABLE rules has no score, not a zero score.
type ServiceScore struct {
	Score           *float64   `json:"score"`
	EvaluatedWeight float64    `json:"evaluated_weight"`
	PassedWeight    float64    `json:"passed_weight"`
	PassedCount     int        `json:"passed_count"`
	FailedCount     int        `json:"failed_count"`
	Passed          []RulePass `json:"passed_rules,omitempty"`
	Failed          []RuleFail `json:"failed_rules,omitempty"`
}

// DataQuality tallies the raw records a run saw and how many were dropped.
type DataQuality struct {
	UnknownOrError int `json:"unknown_or_error_entries"`
	TotalEntries   int `json:"total_entries_seen"`
}

// TopFailure ranks a failed rule by risk-adjusted weight. Compensated
// failures rank at half weight.
type TopFailure struct {
	Service         string  `json:"service"`
	Rule            string  `json:"rule"`
	Weight          float64 `json:"weight"`
	IsCompensated   bool    `json:"is_compensated"`
	EffectiveWeight float64 `json:"effective_weight"`
}

// ScoreResult is the output of one scoring run.
type ScoreResult struct {
	GeneratedAt  time.Time               `json:"generated_at"`
	OverallScore *float64                `json:"overall_score"`
	PerService   map[string]ServiceScore `json:"per_service"`
	DataQuality  DataQuality             `json:"data_quality"`
	TopFailures  []TopFailure            `json:"top_failures"`
}

// Summary condenses a ScoreResult for console output.
type Summary struct {
	OverallScore        *float64 `json:"overall_score"`
	ServicesAnalyzed    int      `json:"services_analyzed"`
	ServicesAtThreshold int      `json:"services_meeting_80_percent"`
	TotalEvaluated      int      `json:"total_rules_evaluated"`
	TotalPassed         int      `json:"total_passed"`
	TotalFailed         int      `json:"total_failed"`
	TotalEntries        int      `json:"total_entries_seen"`
	SkippedEntries      int      `json:"skipped_entries"`
	EvaluationRate      float64  `json:"evaluation_rate"`
}
