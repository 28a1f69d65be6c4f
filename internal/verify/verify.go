// Package verify implements the fast verification pipeline: a tri-valued
// verdict over changed files computed across lint, typecheck, and targeted
// test tiers, failing fast on the first non-PASS tier.
package verify

// Verdict is the tri-valued outcome of one verification run.
type Verdict string

const (
	VerdictPass    Verdict = "PASS"
	VerdictFail    Verdict = "FAIL"
	VerdictBlocked Verdict = "BLOCKED"
)

// LintError is one diagnostic from the lint tier.
type LintError struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// TypeError is one diagnostic from the typecheck tier.
type TypeError struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// TestFailure is one diagnostic from the targeted-test tier.
type TestFailure struct {
	Selector string `json:"selector"`
	Message  string `json:"message"`
}

// Result is the Verify Result produced by one run of the pipeline.
type Result struct {
	Status        Verdict       `json:"status"`
	Reason        string        `json:"reason"`
	LintErrors    []LintError   `json:"lint_errors"`
	TypeErrors    []TypeError   `json:"type_errors"`
	TestFailures  []TestFailure `json:"test_failures"`
	HasGuardrails bool          `json:"has_guardrails"`
}

// Signature is a comparable summary of a FAIL result's error set, used by
// the Stop Hook to detect "last two verdicts are identical FAIL signatures".
func (r Result) Signature() string {
	sig := ""
	for _, e := range r.LintErrors {
		sig += "L:" + e.File + ":" + e.Rule + ";"
	}
	for _, e := range r.TypeErrors {
		sig += "T:" + e.File + ":" + e.Message + ";"
	}
	for _, f := range r.TestFailures {
		sig += "S:" + f.Selector + ";"
	}
	return sig
}

// Empty reports whether every tier's diagnostic list is empty, the
// invariant required of a PASS result.
func (r Result) Empty() bool {
	return len(r.LintErrors) == 0 && len(r.TypeErrors) == 0 && len(r.TestFailures) == 0
}
