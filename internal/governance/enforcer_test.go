package governance

import (
	"os"
	"testing"

	"github.com/agentcore/orchestrator/internal/contract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContract(t *testing.T) *contract.Contract {
	t.Helper()
	dir := t.TempDir()
	path := dir + "/bugfix.yaml"
	body := `
limits:
  max_iterations: 5
  max_files_changed: 3
  max_lines_added: 100
  max_lines_removed: 100
allowed_actions: [read_file, write_file, run_tests, run_lint, git_commit]
forbidden_actions: [git_push]
branch_policy: "^fix/"
requires_review: ["secrets/*"]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	reg := contract.NewRegistry(dir)
	c, err := reg.Load("bugfix")
	require.NoError(t, err)
	return c
}

func TestEnforcer_KillSwitchOff(t *testing.T) {
	c := testContract(t)
	t.Setenv("AI_BRAIN_MODE", "")
	e := NewEnforcer(c, NewKillSwitch("AI_BRAIN_MODE"), nil)

	err := e.Check(contract.ActionReadFile, Context{})
	var pv *PolicyViolation
	require.ErrorAs(t, err, &pv)
	assert.Equal(t, KindKillSwitchOff, pv.Kind)
}

func TestEnforcer_SafeModeAllowsReadOnly(t *testing.T) {
	c := testContract(t)
	t.Setenv("AI_BRAIN_MODE", "SAFE")
	e := NewEnforcer(c, NewKillSwitch("AI_BRAIN_MODE"), nil)

	assert.NoError(t, e.Check(contract.ActionReadFile, Context{}))

	err := e.Check(contract.ActionWriteFile, Context{})
	var pv *PolicyViolation
	require.ErrorAs(t, err, &pv)
	assert.Equal(t, KindKillSwitchOff, pv.Kind)
}

func TestEnforcer_ForbiddenAction(t *testing.T) {
	c := testContract(t)
	t.Setenv("AI_BRAIN_MODE", "NORMAL")
	e := NewEnforcer(c, NewKillSwitch("AI_BRAIN_MODE"), nil)

	err := e.Check(contract.ActionGitPush, Context{Branch: "fix/x"})
	var pv *PolicyViolation
	require.ErrorAs(t, err, &pv)
	assert.Equal(t, KindForbidden, pv.Kind)
}

func TestEnforcer_NotAllowedAction(t *testing.T) {
	c := testContract(t)
	t.Setenv("AI_BRAIN_MODE", "NORMAL")
	e := NewEnforcer(c, NewKillSwitch("AI_BRAIN_MODE"), nil)

	err := e.Check(contract.ActionRunBuild, Context{})
	var pv *PolicyViolation
	require.ErrorAs(t, err, &pv)
	assert.Equal(t, KindNotAllowed, pv.Kind)
}

func TestEnforcer_LimitExceeded(t *testing.T) {
	c := testContract(t)
	t.Setenv("AI_BRAIN_MODE", "NORMAL")
	e := NewEnforcer(c, NewKillSwitch("AI_BRAIN_MODE"), nil)

	err := e.Check(contract.ActionWriteFile, Context{LinesAdded: 500})
	var pv *PolicyViolation
	require.ErrorAs(t, err, &pv)
	assert.Equal(t, KindLimitExceeded, pv.Kind)
}

func TestEnforcer_BranchMismatch(t *testing.T) {
	c := testContract(t)
	t.Setenv("AI_BRAIN_MODE", "NORMAL")
	e := NewEnforcer(c, NewKillSwitch("AI_BRAIN_MODE"), nil)

	err := e.Check(contract.ActionGitCommit, Context{Branch: "main"})
	var pv *PolicyViolation
	require.ErrorAs(t, err, &pv)
	assert.Equal(t, KindBranchMismatch, pv.Kind)
}

func TestEnforcer_ReviewRequired(t *testing.T) {
	c := testContract(t)
	t.Setenv("AI_BRAIN_MODE", "NORMAL")
	e := NewEnforcer(c, NewKillSwitch("AI_BRAIN_MODE"), nil)

	err := e.Check(contract.ActionWriteFile, Context{Path: "secrets/prod.yaml"})
	var pv *PolicyViolation
	require.ErrorAs(t, err, &pv)
	assert.Equal(t, KindReviewRequired, pv.Kind)
}

func TestEnforcer_AllowsWithinLimits(t *testing.T) {
	c := testContract(t)
	t.Setenv("AI_BRAIN_MODE", "NORMAL")
	e := NewEnforcer(c, NewKillSwitch("AI_BRAIN_MODE"), nil)

	err := e.Check(contract.ActionGitCommit, Context{Branch: "fix/bug-1", LinesAdded: 10, FilesChanged: 2})
	assert.NoError(t, err)
}

func TestAuditLog_RecordsDecisions(t *testing.T) {
	c := testContract(t)
	t.Setenv("AI_BRAIN_MODE", "NORMAL")
	audit := NewAuditLog("")
	e := NewEnforcer(c, NewKillSwitch("AI_BRAIN_MODE"), audit)

	_ = e.Check(contract.ActionReadFile, Context{})
	_ = e.Check(contract.ActionGitPush, Context{Branch: "fix/x"})

	entries := audit.Recent(10)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Allowed)
	assert.False(t, entries[1].Allowed)
}
