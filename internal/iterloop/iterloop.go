// Package iterloop drives a single task through the Iteration Loop state
// machine: Prepare, Invoke, Enforce, Verify, and one of Commit / Escalate /
// Strategize, checkpointing Session State at each meaningful transition.
package iterloop

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/agentcore/orchestrator/internal/agentiface"
	"github.com/agentcore/orchestrator/internal/contract"
	"github.com/agentcore/orchestrator/internal/gitutil"
	"github.com/agentcore/orchestrator/internal/governance"
	"github.com/agentcore/orchestrator/internal/metrics"
	"github.com/agentcore/orchestrator/internal/queue"
	"github.com/agentcore/orchestrator/internal/session"
	"github.com/agentcore/orchestrator/internal/stophook"
	"github.com/agentcore/orchestrator/internal/strategist"
	"github.com/agentcore/orchestrator/internal/verify"
)

// timeNow is overridable in tests.
var timeNow = time.Now

// Outcome is the terminal result of running the loop for one task.
type Outcome struct {
	Decision  stophook.Decision
	CommitRef string
	Verdict   verify.Result
	Iteration int
}

// Deps bundles the collaborators the loop needs for one task attempt.
type Deps struct {
	Agent      agentiface.Agent
	Enforcer   *governance.Enforcer
	Adapter    verify.Adapter
	Store      *session.Store
	Repo       *gitutil.Repo
	Metrics    *metrics.Metrics
	Logger     *log.Logger
	AutofixCmd string
}

// iteration carries the mutable state threaded through the state functions
// for a single cycle (one Prepare→Invoke→Enforce→Verify pass).
type iteration struct {
	ctx      context.Context
	task     *queue.Task
	contract *contract.Contract
	deps     Deps
	killMode governance.Mode

	sessionID string
	cycle     int
	history   []verify.Result

	prompt           string
	invokeResult     agentiface.Result
	invokeErr        error
	verdict          verify.Result
	strategy         strategist.FixStrategy
	autofixAttempted bool

	terminal bool
	outcome  Outcome
}

type stateFn func(*iteration) stateFn

// Run drives the state machine until a terminal decision is reached or the
// context is cancelled. killSwitchMode is sampled once per cycle, never
// cached across cycles, per the Kill-Switch Mode invariant.
func Run(ctx context.Context, t *queue.Task, c *contract.Contract, ks *governance.KillSwitch, deps Deps) (Outcome, error) {
	sessionID := fmt.Sprintf("%s-%d", t.ID, timeNow().UnixNano())
	resumed, err := deps.Store.Resume(t.ID)
	if err != nil {
		logIfPresent(deps.Logger, "session resume check failed", "task_id", t.ID, "error", err)
	}
	if resumed != nil && resumed.SessionID != "" {
		// Resuming an in-flight task continues its existing session_id
		// rather than minting a new one for the same task attempt.
		sessionID = resumed.SessionID
	}

	it := &iteration{
		ctx:       ctx,
		task:      t,
		contract:  c,
		deps:      deps,
		sessionID: sessionID,
	}

	for it.cycle = 0; it.cycle < c.Limits.MaxIterations && !it.terminal; it.cycle++ {
		if ctx.Err() != nil {
			return it.outcome, ctx.Err()
		}
		it.killMode = ks.Read()

		state := prepareState
		for state != nil {
			state = state(it)
		}
	}

	finalState := "finalized"
	if it.outcome.Decision == stophook.DecisionHaltSuccess {
		finalState = "complete"
	}
	if err := deps.Store.Finalize(t.ID, finalState); err != nil {
		logIfPresent(deps.Logger, "finalize session failed", "task_id", t.ID, "error", err)
	}
	return it.outcome, nil
}

func logIfPresent(l *log.Logger, msg string, kv ...any) {
	if l != nil {
		l.Info(msg, kv...)
	}
}

func prepareState(it *iteration) stateFn {
	it.autofixAttempted = false
	it.prompt = buildPrompt(it)
	logIfPresent(it.deps.Logger, "iteration prepared", "task_id", it.task.ID, "cycle", it.cycle)
	return invokeState
}

func buildPrompt(it *iteration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task %s (%s): %s\n", it.task.ID, it.task.Type, it.task.Description)
	if it.task.File != "" {
		fmt.Fprintf(&b, "Target: %s\n", it.task.File)
	}
	if it.strategy.PromptTemplate != "" {
		b.WriteString(it.strategy.PromptTemplate)
	}
	return b.String()
}

func invokeState(it *iteration) stateFn {
	tools := make([]string, 0, len(it.contract.AllowedActions))
	for _, a := range it.contract.AllowedActions {
		tools = append(tools, string(a))
	}

	result, err := it.deps.Agent.Invoke(it.ctx, agentiface.Invocation{Prompt: it.prompt, ToolsAllowed: tools})
	it.invokeResult = result
	it.invokeErr = err

	if err != nil {
		// Failure semantics: an agent invocation error is a failed iteration
		// with the reason carried forward; the loop itself does not abort.
		it.verdict = verify.Result{Status: verify.VerdictFail, Reason: "agent invocation error: " + err.Error()}
		return decideState
	}
	return enforceState
}

func enforceState(it *iteration) stateFn {
	added, removed, err := it.deps.Repo.DiffStat(it.ctx)
	if err != nil {
		it.verdict = verify.Result{Status: verify.VerdictFail, Reason: "diff stat error: " + err.Error()}
		return decideState
	}
	branch, err := it.deps.Repo.CurrentBranch(it.ctx)
	if err != nil {
		branch = ""
	}

	gctx := governance.Context{
		LinesAdded:   added,
		LinesRemoved: removed,
		FilesChanged: len(it.invokeResult.ChangedFilesSinceBaseline),
		Branch:       branch,
	}

	for _, f := range it.invokeResult.ChangedFilesSinceBaseline {
		gctx.Path = f
		if err := it.deps.Enforcer.Check(contract.ActionWriteFile, gctx); err != nil {
			it.verdict = verify.Result{Status: verify.VerdictBlocked, Reason: err.Error(), HasGuardrails: true}
			return haltPolicyState
		}
	}

	return verifyState
}

func verifyState(it *iteration) stateFn {
	diff, err := it.deps.Repo.Diff(it.ctx)
	if err != nil {
		diff = ""
	}
	it.verdict = verify.Run(it.ctx, it.deps.Adapter, it.invokeResult.ChangedFilesSinceBaseline, it.task.Tests, diff)
	if it.deps.Metrics != nil {
		it.deps.Metrics.RecordVerdict(string(it.verdict.Status))
	}
	return decideState
}

func decideState(it *iteration) stateFn {
	it.history = append(it.history, it.verdict)
	it.strategy = strategist.Analyze(it.verdict, it.deps.AutofixCmd, it.cycle, it.contract.Limits.MaxIterations)

	decision := stophook.Decide(it.contract, it.killMode, it.history, it.cycle, it.strategy)
	checkpoint(it, decision)

	if it.deps.Metrics != nil {
		it.deps.Metrics.RecordIteration()
	}

	switch decision.Decision {
	case stophook.DecisionHaltSuccess:
		return commitState
	case stophook.DecisionEscalate, stophook.DecisionHaltFailure, stophook.DecisionBudgetExhausted:
		it.outcome = Outcome{Decision: decision.Decision, Verdict: it.verdict, Iteration: it.cycle}
		it.terminal = true
		return nil
	default: // CONTINUE
		if it.strategy.Action == strategist.ActionRunAutofix && !it.autofixAttempted {
			it.autofixAttempted = true
			return strategizeAutofixState
		}
		// FIX_* strategies (or a repeated autofix) feed a new prompt back to
		// the agent next cycle.
		return nil
	}
}

// strategizeAutofixState runs the autofix command from Deps.AutofixCmd under
// Governance Enforcer mediation (action=run_lint), then re-verifies without
// involving the agent, retrying immediately rather than waiting on a re-run.
func strategizeAutofixState(it *iteration) stateFn {
	if err := it.deps.Enforcer.Check(contract.ActionRunLint, governance.Context{}); err != nil {
		it.verdict = verify.Result{Status: verify.VerdictBlocked, Reason: err.Error(), HasGuardrails: true}
		return haltPolicyState
	}

	ctx, cancel := context.WithTimeout(it.ctx, 30*time.Second)
	defer cancel()
	fields := strings.Fields(it.strategy.DeterministicCommand)
	if len(fields) > 0 {
		cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
		cmd.Dir = it.deps.Repo.Dir
		if out, err := cmd.CombinedOutput(); err != nil {
			logIfPresent(it.deps.Logger, "autofix command failed", "task_id", it.task.ID, "error", err, "output", string(out))
		}
	}
	return verifyState
}

func haltPolicyState(it *iteration) stateFn {
	decision := stophook.Decide(it.contract, it.killMode, append(it.history, it.verdict), it.cycle, strategist.FixStrategy{Action: strategist.ActionEscalate})
	checkpoint(it, decision)
	it.outcome = Outcome{Decision: stophook.DecisionEscalate, Verdict: it.verdict, Iteration: it.cycle}
	it.terminal = true
	return nil
}

func commitState(it *iteration) stateFn {
	msg := fmt.Sprintf("[%s] %s", it.task.ID, it.task.Description)
	if err := it.deps.Enforcer.Check(contract.ActionGitCommit, governance.Context{}); err != nil {
		it.verdict = verify.Result{Status: verify.VerdictBlocked, Reason: err.Error(), HasGuardrails: true}
		return haltPolicyState
	}
	if err := it.deps.Repo.Add(it.ctx, it.invokeResult.ChangedFilesSinceBaseline); err != nil {
		it.outcome = Outcome{Decision: stophook.DecisionEscalate, Verdict: it.verdict, Iteration: it.cycle}
		it.terminal = true
		return nil
	}
	hash, err := it.deps.Repo.Commit(it.ctx, msg)
	if err != nil {
		it.outcome = Outcome{Decision: stophook.DecisionEscalate, Verdict: it.verdict, Iteration: it.cycle}
		it.terminal = true
		return nil
	}
	it.outcome = Outcome{Decision: stophook.DecisionHaltSuccess, CommitRef: hash, Verdict: it.verdict, Iteration: it.cycle}
	it.terminal = true
	return nil
}

func checkpoint(it *iteration, d stophook.StopDecision) {
	entry := fmt.Sprintf("- cycle %d: verdict=%s decision=%s\n", it.cycle, it.verdict.Status, d.Decision)
	state := session.State{
		TaskID:        it.task.ID,
		AgentType:     it.contract.AgentType,
		SessionID:     it.sessionID,
		Iteration:     it.cycle,
		MaxIterations: it.contract.Limits.MaxIterations,
		StartedAt:     timeNow(),
		LastUpdated:   timeNow(),
		StatusToken:   session.StatusActive,
	}
	if d.Decision != stophook.DecisionContinue {
		state.StatusToken = session.StatusFinalized
	} else {
		state.StatusToken = session.StatusResumable
	}
	if err := it.deps.Store.Save(it.task.ID, state, entry); err != nil {
		logIfPresent(it.deps.Logger, "checkpoint save failed", "task_id", it.task.ID, "error", err)
	}
}
