package strategist

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentcore/orchestrator/internal/verify"
)

func TestAnalyze_AllAutoFixableLintRunsAutofix(t *testing.T) {
	r := verify.Result{LintErrors: []verify.LintError{{Rule: "gofmt"}}}
	s := Analyze(r, "gofmt -w .", 0, 10)
	assert.Equal(t, ActionRunAutofix, s.Action)
	assert.True(t, s.RetryImmediately)
	assert.Equal(t, "gofmt -w .", s.DeterministicCommand)
}

func TestAnalyze_NonAutoFixableLintNeedsImplementationFix(t *testing.T) {
	r := verify.Result{LintErrors: []verify.LintError{{Rule: "complexity"}}}
	s := Analyze(r, "gofmt -w .", 0, 10)
	assert.Equal(t, ActionFixImplementation, s.Action)
	assert.NotEmpty(t, s.PromptTemplate)
}

func TestAnalyze_NoAutofixCommandFallsBackToImplementationFix(t *testing.T) {
	r := verify.Result{LintErrors: []verify.LintError{{Rule: "gofmt"}}}
	s := Analyze(r, "", 0, 10)
	assert.Equal(t, ActionFixImplementation, s.Action)
}

func TestAnalyze_TypeErrorsYieldFixTypes(t *testing.T) {
	r := verify.Result{TypeErrors: []verify.TypeError{{Message: "mismatch"}}}
	s := Analyze(r, "", 0, 10)
	assert.Equal(t, ActionFixTypes, s.Action)
	assert.False(t, s.RetryImmediately)
}

func TestAnalyze_TestFailuresYieldFixTests(t *testing.T) {
	r := verify.Result{TestFailures: []verify.TestFailure{{Selector: "TestA"}}}
	s := Analyze(r, "", 0, 10)
	assert.Equal(t, ActionFixTests, s.Action)
}

func TestAnalyze_GuardrailsAlwaysEscalate(t *testing.T) {
	r := verify.Result{HasGuardrails: true, TestFailures: []verify.TestFailure{{Selector: "TestA"}}}
	s := Analyze(r, "", 0, 10)
	assert.Equal(t, ActionEscalate, s.Action)
}

func TestAnalyze_InfrastructureReasonEscalates(t *testing.T) {
	r := verify.Result{Reason: "infrastructure"}
	s := Analyze(r, "", 0, 10)
	assert.Equal(t, ActionEscalate, s.Action)
}

func TestAnalyze_TimeoutReasonEscalates(t *testing.T) {
	r := verify.Result{Reason: "lint timeout"}
	s := Analyze(r, "", 0, 10)
	assert.Equal(t, ActionEscalate, s.Action)
}

func TestAnalyze_UnknownCompositionEscalates(t *testing.T) {
	s := Analyze(verify.Result{}, "", 0, 10)
	assert.Equal(t, ActionEscalate, s.Action)
}

func TestAnalyze_BudgetExhaustionOverridesEverything(t *testing.T) {
	r := verify.Result{LintErrors: []verify.LintError{{Rule: "gofmt"}}}
	s := Analyze(r, "gofmt -w .", 9, 10)
	assert.Equal(t, ActionEscalate, s.Action)
	assert.Contains(t, s.Rationale, "budget")
}

func TestAnalyze_EscalateCarriesNoCommandOrPrompt(t *testing.T) {
	s := Analyze(verify.Result{HasGuardrails: true}, "cmd", 0, 10)
	assert.Empty(t, s.DeterministicCommand)
	assert.Empty(t, s.PromptTemplate)
}

func TestBuildLintPrompt_TruncatesOversizedContent(t *testing.T) {
	errs := make([]verify.LintError, 0, 2000)
	for i := 0; i < 2000; i++ {
		errs = append(errs, verify.LintError{File: "a.go", Line: i, Rule: "unused", Message: "padding to force truncation of this prompt body text"})
	}
	p := buildLintPrompt(verify.Result{LintErrors: errs})
	assert.LessOrEqual(t, len(p), maxPromptDiffBytes+32)
	assert.Contains(t, p, "truncated")
}
