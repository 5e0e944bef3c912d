// Package scoring aggregates normalized rules into per-service statistics
// and an overall importance-weighted score. Each run is a pure, stateless
// function of (rules, service weights); there is no engine state and
// concurrent runs with different inputs are safe.
package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/schmug/scubascore/internal/config"
	"github.com/schmug/scubascore/internal/model"
)

// compensatingCredit is the share of a failed rule's weight earned back by
// a compensating control.
const compensatingCredit = 0.5

// topFailureLimit caps the ranked failure list in a ScoreResult.
const topFailureLimit = 5

// serviceAggregate accumulates one service's statistics for the duration of
// a single run. Invariant: evaluatedWeight >= passedWeight >= 0.
type serviceAggregate struct {
	evaluatedWeight float64
	passedWeight    float64
	passed          []model.RulePass
	failed          []model.RuleFail
}

// Compute scores a batch of normalized rules. A nil service weight config
// falls back to the built-in importance split. Empty input is not an error:
// it yields a result with no overall score and an empty per-service map.
func Compute(rules []model.Rule, serviceWeights *config.ServiceWeightConfig) model.ScoreResult {
	if serviceWeights == nil {
		serviceWeights = config.DefaultServiceWeights()
	}

	aggregates := make(map[string]*serviceAggregate)
	quality := model.DataQuality{TotalEntries: len(rules)}
	var failures []model.TopFailure

	for _, rule := range rules {
		service := rule.Service
		if service == "" {
			service = model.ServiceUnspecified
		}

		switch rule.Verdict {
		case model.VerdictPass:
			agg := aggregateFor(aggregates, service)
			agg.evaluatedWeight += rule.Weight
			agg.passedWeight += rule.Weight
			agg.passed = append(agg.passed, model.RulePass{
				RuleID:           rule.ID,
				Weight:           rule.Weight,
				DocumentationURL: rule.DocumentationURL,
			})

		case model.VerdictFail:
			agg := aggregateFor(aggregates, service)
			agg.evaluatedWeight += rule.Weight
			effective := rule.Weight
			if rule.Compensating {
				agg.passedWeight += rule.Weight * compensatingCredit
				effective = rule.Weight * compensatingCredit
			}
			agg.failed = append(agg.failed, model.RuleFail{
				RuleID:           rule.ID,
				Weight:           rule.Weight,
				Compensated:      rule.Compensating,
				DocumentationURL: rule.DocumentationURL,
				Requirement:      rule.Requirement,
			})
			failures = append(failures, model.TopFailure{
				Service:         service,
				Rule:            rule.ID,
				Weight:          rule.Weight,
				IsCompensated:   rule.Compensating,
				EffectiveWeight: effective,
			})

		case model.VerdictNA:
			// Not evaluated and not a data-quality anomaly, but the
			// service still appears in the result with a nil score.
			aggregateFor(aggregates, service)

		default: // UNKNOWN
			quality.UnknownOrError++
		}
	}

	perService := make(map[string]model.ServiceScore, len(aggregates))
	for service, agg := range aggregates {
		perService[service] = agg.finish()
	}

	return model.ScoreResult{
		GeneratedAt:  time.Now().UTC(),
		OverallScore: overallScore(perService, serviceWeights),
		PerService:   perService,
		DataQuality:  quality,
		TopFailures:  topFailures(failures),
	}
}

func aggregateFor(m map[string]*serviceAggregate, service string) *serviceAggregate {
	if agg, ok := m[service]; ok {
		return agg
	}
	agg := &serviceAggregate{}
	m[service] = agg
	return agg
}

// finish seals an aggregate into its reported form. A service with zero
// evaluated weight has no score rather than a division by zero.
func (a *serviceAggregate) finish() model.ServiceScore {
	s := model.ServiceScore{
		EvaluatedWeight: round2(a.evaluatedWeight),
		PassedWeight:    round2(a.passedWeight),
		PassedCount:     len(a.passed),
		FailedCount:     len(a.failed),
		Passed:          a.passed,
		Failed:          a.failed,
	}
	if a.evaluatedWeight > 0 {
		score := round2(a.passedWeight / a.evaluatedWeight * 100)
		s.Score = &score
	}
	return s
}

// overallScore is the importance-weighted mean over services with a score.
// Services absent from the config count at the default importance rather
// than being silently excluded. Nil when nothing was scored.
func overallScore(perService map[string]model.ServiceScore, weights *config.ServiceWeightConfig) *float64 {
	totalWeight := 0.0
	weightedSum := 0.0
	for service, s := range perService {
		if s.Score == nil {
			continue
		}
		w := weights.Importance(service)
		totalWeight += w
		weightedSum += w * *s.Score
	}
	if totalWeight <= 0 {
		return nil
	}
	overall := round2(weightedSum / totalWeight)
	return &overall
}

// topFailures ranks failures by effective weight descending and keeps the
// top entries. The sort is stable: failures of equal effective weight keep
// their encounter order.
func topFailures(failures []model.TopFailure) []model.TopFailure {
	sort.SliceStable(failures, func(i, j int) bool {
		return failures[i].EffectiveWeight > failures[j].EffectiveWeight
	})
	if len(failures) > topFailureLimit {
		failures = failures[:topFailureLimit]
	}
	return failures
}

// Summarize condenses a result for console output.
func Summarize(result model.ScoreResult) model.Summary {
	s := model.Summary{
		OverallScore:   result.OverallScore,
		TotalEntries:   result.DataQuality.TotalEntries,
		SkippedEntries: result.DataQuality.UnknownOrError,
	}
	for _, svc := range result.PerService {
		s.ServicesAnalyzed++
		s.TotalPassed += svc.PassedCount
		s.TotalFailed += svc.FailedCount
		if svc.Score != nil && *svc.Score >= 80 {
			s.ServicesAtThreshold++
		}
	}
	s.TotalEvaluated = s.TotalPassed + s.TotalFailed
	if s.TotalEntries > 0 {
		s.EvaluationRate = round2(float64(s.TotalEvaluated) / float64(s.TotalEntries) * 100)
	}
	return s
}

// round2 rounds to two decimal places, the precision of every reported
// score and weight.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
