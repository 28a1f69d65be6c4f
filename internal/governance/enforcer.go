// Package governance gates every externally observable action an agent
// attempts against its contract and the process-wide kill-switch. It is the
// single point where "is this action allowed right now" is decided.
package governance

import (
	"fmt"

	"github.com/agentcore/orchestrator/internal/contract"
)

// ViolationKind classifies why a Check failed.
type ViolationKind string

const (
	KindForbidden       ViolationKind = "FORBIDDEN"
	KindNotAllowed      ViolationKind = "NOT_ALLOWED"
	KindLimitExceeded   ViolationKind = "LIMIT_EXCEEDED"
	KindBranchMismatch  ViolationKind = "BRANCH_MISMATCH"
	KindReviewRequired  ViolationKind = "REVIEW_REQUIRED"
	KindKillSwitchOff   ViolationKind = "KILL_SWITCH_OFF"
)

// PolicyViolation is raised when Check rejects an action.
type PolicyViolation struct {
	Kind   ViolationKind
	Action contract.Action
	Detail string
}

func (e *PolicyViolation) Error() string {
	return fmt.Sprintf("policy violation [%s] on action %q: %s", e.Kind, e.Action, e.Detail)
}

// readOnlyActions are permitted in SAFE (dry-run) mode.
var readOnlyActions = map[contract.Action]bool{
	contract.ActionReadFile:     true,
	contract.ActionRunTests:     true,
	contract.ActionRunLint:      true,
	contract.ActionRunTypecheck: true,
	contract.ActionRunBuild:     true,
}

// Context carries the recognized keys an action check may need.
type Context struct {
	LinesAdded   int
	LinesRemoved int
	FilesChanged int
	Branch       string
	Path         string
}

// Enforcer is a single contract-scoped gate, stateless beyond the contract
// reference — it never caches approvals.
type Enforcer struct {
	c          *contract.Contract
	killSwitch *KillSwitch
	audit      *AuditLog
}

// NewEnforcer returns an Enforcer scoped to one contract.
func NewEnforcer(c *contract.Contract, ks *KillSwitch, audit *AuditLog) *Enforcer {
	return &Enforcer{c: c, killSwitch: ks, audit: audit}
}

// Check gates one action, checking in order: kill-switch,
// forbidden, allowed, numeric caps, branch policy, review-required paths.
func (e *Enforcer) Check(action contract.Action, ctx Context) error {
	err := e.check(action, ctx)
	if e.audit != nil {
		e.audit.Record(action, err)
	}
	return err
}

func (e *Enforcer) check(action contract.Action, ctx Context) error {
	mode := e.killSwitch.Read()
	if mode == ModeOff {
		return &PolicyViolation{Kind: KindKillSwitchOff, Action: action, Detail: "kill-switch is OFF"}
	}
	if mode == ModeSafe && !readOnlyActions[action] {
		return &PolicyViolation{Kind: KindKillSwitchOff, Action: action, Detail: "kill-switch is SAFE; only read-type actions permitted"}
	}

	if e.c.IsForbidden(action) {
		return &PolicyViolation{Kind: KindForbidden, Action: action, Detail: "action is in forbidden_actions"}
	}
	if !e.c.IsAllowed(action) {
		return &PolicyViolation{Kind: KindNotAllowed, Action: action, Detail: "action is not in allowed_actions"}
	}

	if ctx.LinesAdded > e.c.Limits.MaxLinesAdded && e.c.Limits.MaxLinesAdded > 0 {
		return &PolicyViolation{Kind: KindLimitExceeded, Action: action, Detail: fmt.Sprintf("lines_added %d exceeds max_lines_added %d", ctx.LinesAdded, e.c.Limits.MaxLinesAdded)}
	}
	if ctx.FilesChanged > e.c.Limits.MaxFilesChanged && e.c.Limits.MaxFilesChanged > 0 {
		return &PolicyViolation{Kind: KindLimitExceeded, Action: action, Detail: fmt.Sprintf("files_changed %d exceeds max_files_changed %d", ctx.FilesChanged, e.c.Limits.MaxFilesChanged)}
	}

	if (action == contract.ActionGitCommit || action == contract.ActionGitPush) && ctx.Branch != "" {
		if !e.c.MatchesBranchPolicy(ctx.Branch) {
			return &PolicyViolation{Kind: KindBranchMismatch, Action: action, Detail: fmt.Sprintf("branch %q does not match branch_policy", ctx.Branch)}
		}
	}

	isWrite := action == contract.ActionWriteFile || action == contract.ActionCreateFile || action == contract.ActionDeleteFile
	if isWrite && ctx.Path != "" && e.c.RequiresHumanReview(ctx.Path) {
		return &PolicyViolation{Kind: KindReviewRequired, Action: action, Detail: fmt.Sprintf("path %q requires human review", ctx.Path)}
	}

	return nil
}
