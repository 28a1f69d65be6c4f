// Package strategist maps a Verify Result onto a bounded-retry Fix Strategy,
// the self-correction layer between the Fast Verifier and the Iteration Loop.
package strategist

import (
	"strings"

	"github.com/agentcore/orchestrator/internal/verify"
)

// Action is the fix action chosen for one FAIL/BLOCKED verdict.
type Action string

const (
	ActionRunAutofix       Action = "RUN_AUTOFIX"
	ActionFixTypes         Action = "FIX_TYPES"
	ActionFixTests         Action = "FIX_TESTS"
	ActionFixImplementation Action = "FIX_IMPLEMENTATION"
	ActionEscalate         Action = "ESCALATE"
)

// FixStrategy is the recommended response to one FAIL/BLOCKED verdict.
// ESCALATE carries
// no command or prompt; RUN_AUTOFIX carries a command and retries
// immediately; FIX_* carries a prompt and retries after an agent re-run.
type FixStrategy struct {
	Action             Action
	DeterministicCommand string
	PromptTemplate     string
	RetryImmediately   bool
	Rationale          string
}

// autoFixableRules is the closed rule table of lint rules the configured
// autofix command is known to resolve without agent involvement.
var autoFixableRules = map[string]bool{
	"gofmt":          true,
	"goimports":      true,
	"whitespace":     true,
	"unused-import":  true,
	"trailing-space": true,
}

// Analyze maps a verdict onto a fix strategy. attemptCount and
// maxIterations bound the retry budget: once honoring the strategy would
// exceed the contract's iteration cap, Analyze returns ESCALATE regardless
// of the verdict's shape.
func Analyze(result verify.Result, autofixCmd string, attemptCount, maxIterations int) FixStrategy {
	if attemptCount+1 >= maxIterations {
		return FixStrategy{Action: ActionEscalate, Rationale: "retry budget exhausted"}
	}

	if result.HasGuardrails {
		return FixStrategy{Action: ActionEscalate, Rationale: "guardrail violation requires human review"}
	}
	if result.Reason == "infrastructure" || strings.Contains(result.Reason, "timeout") {
		return FixStrategy{Action: ActionEscalate, Rationale: "infrastructure failure, no retry"}
	}

	if len(result.LintErrors) > 0 {
		if allAutoFixable(result.LintErrors) && autofixCmd != "" {
			return FixStrategy{
				Action:               ActionRunAutofix,
				DeterministicCommand: autofixCmd,
				RetryImmediately:     true,
				Rationale:            "all lint findings are auto-fixable",
			}
		}
		return FixStrategy{
			Action:         ActionFixImplementation,
			PromptTemplate: buildLintPrompt(result),
			Rationale:      "lint findings remain after autofix or are not auto-fixable",
		}
	}

	if len(result.TypeErrors) > 0 {
		return FixStrategy{
			Action:         ActionFixTypes,
			PromptTemplate: buildTypePrompt(result),
			Rationale:      "type errors present",
		}
	}

	if len(result.TestFailures) > 0 {
		return FixStrategy{
			Action:         ActionFixTests,
			PromptTemplate: buildTestPrompt(result),
			Rationale:      "test failures present with no lint or type errors",
		}
	}

	return FixStrategy{Action: ActionEscalate, Rationale: "unknown verdict composition"}
}

func allAutoFixable(errs []verify.LintError) bool {
	for _, e := range errs {
		if !autoFixableRules[e.Rule] {
			return false
		}
	}
	return true
}
