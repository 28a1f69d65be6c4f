// Package stophook implements the end-of-iteration arbitrator: a pure
// function deciding CONTINUE vs. one of the terminal dispositions. It does
// not mutate state and performs no I/O.
package stophook

import (
	"github.com/agentcore/orchestrator/internal/contract"
	"github.com/agentcore/orchestrator/internal/governance"
	"github.com/agentcore/orchestrator/internal/strategist"
	"github.com/agentcore/orchestrator/internal/verify"
)

// Decision is the terminal (or continuing) disposition of one iteration.
type Decision string

const (
	DecisionContinue        Decision = "CONTINUE"
	DecisionHaltSuccess     Decision = "HALT_SUCCESS"
	DecisionHaltFailure     Decision = "HALT_FAILURE"
	DecisionEscalate        Decision = "ESCALATE"
	DecisionBudgetExhausted Decision = "BUDGET_EXHAUSTED"
)

// StopDecision is the arbitrator's output for one iteration.
type StopDecision struct {
	Decision      Decision
	Verdict       verify.Result
	Iteration     int
	NextStrategy  *strategist.FixStrategy
}

// Decide walks the stop-decision tree for one iteration. history is the
// cumulative verify verdict history for the task, oldest first; its final
// entry is the verdict being decided (an empty history is treated as a
// zero-value verdict). nextStrategy is the Self-Correction Strategist's recommendation
// for this verdict, already computed by the caller so Decide stays pure.
func Decide(c *contract.Contract, killSwitch governance.Mode, history []verify.Result, iteration int, nextStrategy strategist.FixStrategy) StopDecision {
	last := verify.Result{}
	if len(history) > 0 {
		last = history[len(history)-1]
	}

	if killSwitch == governance.ModePaused {
		return StopDecision{Decision: DecisionEscalate, Verdict: last, Iteration: iteration}
	}

	if last.Status == verify.VerdictPass {
		return StopDecision{Decision: DecisionHaltSuccess, Verdict: last, Iteration: iteration}
	}

	if last.Status == verify.VerdictBlocked {
		return StopDecision{Decision: DecisionEscalate, Verdict: last, Iteration: iteration}
	}

	if iteration+1 >= c.Limits.MaxIterations {
		return StopDecision{Decision: DecisionBudgetExhausted, Verdict: last, Iteration: iteration}
	}

	if identicalFailSignatures(history) && nextStrategy.Action == strategist.ActionEscalate {
		return StopDecision{Decision: DecisionHaltFailure, Verdict: last, Iteration: iteration}
	}

	strategy := nextStrategy
	return StopDecision{Decision: DecisionContinue, Verdict: last, Iteration: iteration, NextStrategy: &strategy}
}

// identicalFailSignatures reports whether the last two verdicts are both FAIL
// with the same error-set signature.
func identicalFailSignatures(history []verify.Result) bool {
	if len(history) < 2 {
		return false
	}
	a, b := history[len(history)-2], history[len(history)-1]
	if a.Status != verify.VerdictFail || b.Status != verify.VerdictFail {
		return false
	}
	return a.Signature() == b.Signature()
}
