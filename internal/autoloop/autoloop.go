// Package autoloop implements the Autonomous Loop: the top-level driver that
// selects the next task from the Work Queue, runs the Iteration Loop to a
// terminal state, records the outcome, and repeats until the queue is empty,
// a global iteration cap is hit, or the kill-switch says to stop.
package autoloop

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/agentcore/orchestrator/internal/agentiface"
	"github.com/agentcore/orchestrator/internal/contract"
	"github.com/agentcore/orchestrator/internal/gitutil"
	"github.com/agentcore/orchestrator/internal/governance"
	"github.com/agentcore/orchestrator/internal/iterloop"
	"github.com/agentcore/orchestrator/internal/metrics"
	"github.com/agentcore/orchestrator/internal/progress"
	"github.com/agentcore/orchestrator/internal/queue"
	"github.com/agentcore/orchestrator/internal/session"
	"github.com/agentcore/orchestrator/internal/stophook"
	"github.com/agentcore/orchestrator/internal/verify"
)

// timeNow is overridable in tests.
var timeNow = time.Now

// Config bundles everything one Autonomous Loop run needs.
type Config struct {
	Project             string
	QueuePath           string
	ChainLogPath        string
	ProgressPath        string
	Contracts           *contract.Registry
	Agent               agentiface.Agent
	Store               *session.Store
	Repo                *gitutil.Repo
	Metrics             *metrics.Metrics
	Audit               *governance.AuditLog
	AutofixCmd          string
	NewAdapter          func(agentType string) verify.Adapter
	KillSwitchEnvVar    string
	MaxGlobalIterations int // 0 = unbounded
	Once                bool
	Logger              *log.Logger
}

// Result summarizes one Autonomous Loop run, returned for CLI reporting.
type Result struct {
	RunID          string
	TasksProcessed int
	TasksComplete  int
	TasksBlocked   int
	StoppedReason  string
}

// Run drives the Autonomous Loop: read the kill-switch, load the queue,
// prefer resumable tasks, and process tasks
// one at a time until the queue is exhausted, the global cap is hit, or the
// kill-switch halts progress. ctx cancellation (SIGINT/SIGTERM at the CLI
// layer) is honored between iterations, never mid-checkpoint.
func Run(ctx context.Context, cfg Config) (Result, error) {
	runID := uuid.New().String()
	result := Result{RunID: runID}

	ks := governance.NewKillSwitch(cfg.KillSwitchEnvVar)
	if ks.Read() == governance.ModeOff {
		result.StoppedReason = "kill-switch OFF at startup"
		return result, ErrKillSwitchOff
	}

	q, err := queue.Load(cfg.QueuePath, cfg.Project)
	if err != nil {
		result.StoppedReason = "queue load failed"
		return result, fmt.Errorf("autoloop: load queue: %w", err)
	}
	chain := queue.NewChainLog(cfg.ChainLogPath)
	prog := progress.New(cfg.ProgressPath)

	for cycle := 0; ; cycle++ {
		if cfg.MaxGlobalIterations > 0 && cycle >= cfg.MaxGlobalIterations {
			result.StoppedReason = "global iteration cap reached"
			break
		}
		if ctx.Err() != nil {
			result.StoppedReason = "context cancelled"
			break
		}

		mode := ks.Read()
		if mode == governance.ModeOff {
			result.StoppedReason = "kill-switch turned OFF"
			break
		}
		if mode == governance.ModePaused {
			result.StoppedReason = "kill-switch PAUSED"
			break
		}

		if cycle > 0 {
			// Re-read the queue at each task boundary so edits saved by an
			// operator since this process's last write are picked up.
			if q, err = queue.Load(cfg.QueuePath, cfg.Project); err != nil {
				result.StoppedReason = "queue load failed"
				return result, fmt.Errorf("autoloop: load queue: %w", err)
			}
		}

		t := selectNext(q, cfg.Store)
		if t == nil {
			result.StoppedReason = "queue exhausted"
			break
		}

		c, err := cfg.Contracts.Load(string(t.Type))
		if err != nil {
			logIfPresent(cfg.Logger, "contract load failed, skipping task type", "task_id", t.ID, "type", t.Type, "error", err)
			// ContractError is fatal for the affected agent type: mark this
			// one task blocked and keep the loop alive for other types.
			_ = q.MarkBlocked(t.ID, "contract error: "+err.Error())
			chain.Append(queue.ChainEvent{TaskID: t.ID, From: queue.StatusPending, To: queue.StatusBlocked, Reason: "contract error", Timestamp: stampString()})
			if saveErr := queue.Save(q, cfg.QueuePath); saveErr != nil {
				result.StoppedReason = "persistence error"
				return result, fmt.Errorf("autoloop: save queue: %w", saveErr)
			}
			continue
		}

		from := t.Status
		if err := q.MarkInProgress(t.ID); err != nil {
			result.StoppedReason = "persistence error"
			return result, fmt.Errorf("autoloop: mark in_progress: %w", err)
		}
		_ = q.IncrementAttempt(t.ID)
		if err := queue.Save(q, cfg.QueuePath); err != nil {
			result.StoppedReason = "persistence error"
			return result, fmt.Errorf("autoloop: save queue: %w", err)
		}
		chain.Append(queue.ChainEvent{TaskID: t.ID, From: from, To: queue.StatusInProgress, Timestamp: stampString()})

		adapter := cfg.NewAdapter(string(t.Type))
		deps := iterloop.Deps{
			Agent:      cfg.Agent,
			Enforcer:   governance.NewEnforcer(c, ks, cfg.Audit),
			Adapter:    adapter,
			Store:      cfg.Store,
			Repo:       cfg.Repo,
			Metrics:    cfg.Metrics,
			Logger:     cfg.Logger,
			AutofixCmd: cfg.AutofixCmd,
		}

		outcome, err := iterloop.Run(ctx, t, c, ks, deps)
		result.TasksProcessed++

		switch {
		case err != nil:
			_ = q.MarkBlocked(t.ID, "iteration loop error: "+err.Error())
			chain.Append(queue.ChainEvent{TaskID: t.ID, From: queue.StatusInProgress, To: queue.StatusBlocked, Reason: err.Error(), Timestamp: stampString()})
			result.TasksBlocked++
		case outcome.Decision == stophook.DecisionHaltSuccess:
			_ = q.MarkComplete(t.ID, outcome.CommitRef)
			chain.Append(queue.ChainEvent{TaskID: t.ID, From: queue.StatusInProgress, To: queue.StatusComplete, Timestamp: stampString()})
			result.TasksComplete++
		default:
			reason := blockedReason(outcome)
			_ = q.MarkBlocked(t.ID, reason)
			chain.Append(queue.ChainEvent{TaskID: t.ID, From: queue.StatusInProgress, To: queue.StatusBlocked, Reason: reason, Timestamp: stampString()})
			result.TasksBlocked++
		}

		if cfg.Metrics != nil {
			cfg.Metrics.RecordTaskStatus(string(t.Status))
		}

		if err := queue.Save(q, cfg.QueuePath); err != nil {
			result.StoppedReason = "persistence error"
			return result, fmt.Errorf("autoloop: save queue: %w", err)
		}
		if err := prog.Append(progress.Entry{
			RunID: runID, Cycle: cycle, TaskID: t.ID, Status: string(t.Status),
			CommitRef: outcome.CommitRef, Decision: string(outcome.Decision), Timestamp: timeNow(),
		}); err != nil {
			logIfPresent(cfg.Logger, "progress log append failed", "task_id", t.ID, "error", err)
		}

		if cfg.Once {
			result.StoppedReason = "single-cycle mode"
			break
		}
	}

	return result, nil
}

// selectNext prefers a resumable in-progress task over the next pending task
// in declared order.
func selectNext(q *queue.Queue, store *session.Store) *queue.Task {
	if t := q.InProgress(); t != nil {
		if state, err := store.Resume(t.ID); err == nil && state != nil {
			return t
		}
		// Not resumable: a prior process died mid-task with no resumable
		// checkpoint. Treat it as abandoned-in-place rather than silently
		// re-running it from scratch under a new attempt count mismatch.
	}
	return q.GetNextPending()
}

func blockedReason(o iterloop.Outcome) string {
	switch o.Decision {
	case stophook.DecisionBudgetExhausted:
		return "budget exhausted"
	case stophook.DecisionEscalate:
		if o.Verdict.HasGuardrails {
			return "guardrail: " + o.Verdict.Reason
		}
		return "escalated: " + o.Verdict.Reason
	case stophook.DecisionHaltFailure:
		return "halted: repeated identical failure"
	default:
		return "blocked"
	}
}

func logIfPresent(l *log.Logger, msg string, kv ...any) {
	if l != nil {
		l.Info(msg, kv...)
	}
}

var stampString = func() string { return timeNow().UTC().Format(time.RFC3339) }
