package model

import "testing"

func TestRuleEvaluated(t *testing.T) {
	cases := []struct {
		verdict Verdict
		want    bool
	}{
		{VerdictPass, true},
		{VerdictFail, true},
		{VerdictNA, false},
		{VerdictUnknown, false},
	}
	for _, tc := range cases {
		r := Rule{Verdict: tc.verdict}
		if got := r.Evaluated(); got != tc.want {
			t.Errorf("Evaluated(%s) = %v, want %v", tc.verdict, got, tc.want)
		}
	}
}

func TestRuleContribution(t *testing.T) {
	cases := []struct {
		name string
		rule Rule
		want float64
	}{
		{"pass", Rule{Verdict: VerdictPass, Weight: 4}, 4},
		{"fail", Rule{Verdict: VerdictFail, Weight: 4}, 0},
		{"compensated fail", Rule{Verdict: VerdictFail, Weight: 4, Compensating: true}, 2},
		{"na", Rule{Verdict: VerdictNA, Weight: 4}, 0},
		{"unknown", Rule{Verdict: VerdictUnknown, Weight: 4}, 0},
	}
	for _, tc := range cases {
		if got := tc.rule.Contribution(); got != tc.want {
			t.Errorf("%s: Contribution() = %g, want %g", tc.name, got, tc.want)
		}
	}
}
