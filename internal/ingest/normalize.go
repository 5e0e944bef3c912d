package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/schmug/scubascore/internal/config"
	"github.com/schmug/scubascore/internal/model"
)

// servicePattern captures the service segment of rule IDs shaped like
// "gws.gmail.1.1": alphanumeric prefix, dot, lowercase-with-underscore
// segment, optional trailing dot.
var servicePattern = regexp.MustCompile(`^[a-zA-Z0-9]+\.([a-z_]+)\.?`)

// controlNumberPattern captures the control number ("1.1") embedded in a
// rule ID such as "GWS.CALENDAR.1.1v0.5", used to anchor documentation URLs.
var controlNumberPattern = regexp.MustCompile(`\.(\d+\.\d+)`)

// canonicalServices are the Google Workspace service tags the inferencer
// recognizes. Segments outside this set pass through unchanged: the system
// tolerates novel service names it has never seen.
var canonicalServices = map[string]string{
	"gmail":     "gmail",
	"drive":     "drive",
	"chat":      "chat",
	"meet":      "meet",
	"calendar":  "calendar",
	"groups":    "groups",
	"classroom": "classroom",
	"sites":     "sites",
	"common":    "common",
}

// Field alias lists, probed in order; the first present non-empty value wins.
var (
	idAliases          = []string{"rule_id", "id", "rule", "name", "check_id", "control_id", "Control ID"}
	verdictAliases     = []string{"verdict", "result", "Result", "status", "outcome", "compliance_status"}
	serviceAliases     = []string{"service", "product", "category", "component"}
	severityAliases    = []string{"severity", "priority", "weight_class", "criticality", "Criticality"}
	requirementAliases = []string{"requirement", "Requirement", "description", "Description"}
)

// NormalizeVerdict maps any scalar verdict value onto the closed Verdict
// set. It never fails: null and absent values are UNKNOWN, warnings and
// manual-check outcomes are policy-mapped to NOT_APPLICABLE, and an
// unrecognized non-empty spelling is logged as a data-quality signal and
// returned as UNKNOWN.
func NormalizeVerdict(value any) model.Verdict {
	if value == nil {
		return model.VerdictUnknown
	}
	if b, ok := value.(bool); ok {
		if b {
			return model.VerdictPass
		}
		return model.VerdictFail
	}

	v := strings.ToUpper(strings.TrimSpace(fmt.Sprint(value)))
	switch v {
	case "":
		return model.VerdictUnknown
	case "PASS", "PASSED", "TRUE", "SUCCESS", "OK":
		return model.VerdictPass
	case "FAIL", "FAILED", "FALSE", "FAILURE":
		return model.VerdictFail
	case "N/A", "NA", "NOT APPLICABLE", "NOT_APPLICABLE", "NOTAPPLICABLE":
		return model.VerdictNA
	case "UNKNOWN", "ERROR", "UNDEFINED":
		return model.VerdictUnknown
	case "WARNING", "WARN":
		// Non-blocking findings neither penalize nor reward.
		return model.VerdictNA
	case "MANUAL", "REQUIRES MANUAL CHECK":
		return model.VerdictNA
	}
	// Source data embeds this phrase inside longer descriptive strings,
	// so a substring check is required.
	if strings.Contains(v, "NO EVENTS FOUND") {
		return model.VerdictNA
	}

	warnf("unknown verdict value: %v", value)
	return model.VerdictUnknown
}

// InferService derives a service tag from a rule identifier, or returns
// the empty string when the identifier is empty or does not match the
// expected pattern. It never guesses from unrelated text.
func InferService(ruleID string) string {
	if ruleID == "" {
		return ""
	}
	m := servicePattern.FindStringSubmatch(ruleID)
	if m == nil {
		return ""
	}
	if canonical, ok := canonicalServices[m[1]]; ok {
		return canonical
	}
	return m[1]
}

// normalizeEntry builds exactly one canonical Rule from a raw record.
// inheritedService comes from an enclosing container, if any.
func normalizeEntry(rec Record, inheritedService string, weights *config.WeightConfig, compensating *config.CompensatingConfig) model.Rule {
	ruleID := firstString(rec, idAliases)
	if ruleID == "" {
		ruleID = "unknown"
	}

	verdict := NormalizeVerdict(firstValue(rec, verdictAliases))

	service := firstString(rec, serviceAliases)
	if service == "" {
		service = inheritedService
	}
	if service == "" {
		service = InferService(ruleID)
	}

	weight := config.DefaultWeight
	if weights != nil {
		weight = weights.Resolve(ruleID, config.DefaultWeight)
	}

	var compensated bool
	var note string
	if compensating != nil {
		note, compensated = compensating.Control(ruleID)
	}

	return model.Rule{
		ID:               ruleID,
		Verdict:          verdict,
		Service:          service,
		Severity:         firstString(rec, severityAliases),
		Weight:           weight,
		Compensating:     compensated,
		CompensatingNote: note,
		Requirement:      firstString(rec, requirementAliases),
		DocumentationURL: documentationURL(rec, ruleID),
	}
}

// documentationURL resolves an explicit documentation link, falling back to
// a control-specific anchor built from the enclosing group's reference URL.
func documentationURL(rec Record, ruleID string) string {
	if url := firstString(rec, []string{"documentation_url", "DocumentationURL"}); url != "" {
		return url
	}
	groupURL := firstString(rec, []string{"GroupReferenceURL"})
	if groupURL == "" || ruleID == "" {
		return ""
	}
	m := controlNumberPattern.FindStringSubmatch(ruleID)
	if m == nil {
		return ""
	}
	return groupURL + "#" + strings.ReplaceAll(m[1], ".", "")
}

// firstValue returns the first present non-nil, non-empty-string value
// among the alias keys.
func firstValue(rec Record, aliases []string) any {
	for _, key := range aliases {
		v, ok := rec[key]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

// firstString is firstValue rendered as a string; non-string scalars are
// stringified so numeric rule IDs survive.
func firstString(rec Record, aliases []string) string {
	v := firstValue(rec, aliases)
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
