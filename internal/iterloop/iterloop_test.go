package iterloop

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentcore/orchestrator/internal/agentiface"
	"github.com/agentcore/orchestrator/internal/contract"
	"github.com/agentcore/orchestrator/internal/gitutil"
	"github.com/agentcore/orchestrator/internal/governance"
	"github.com/agentcore/orchestrator/internal/queue"
	"github.com/agentcore/orchestrator/internal/session"
	"github.com/agentcore/orchestrator/internal/stophook"
	"github.com/agentcore/orchestrator/internal/verify"
)

type fakeAgent struct {
	results []agentiface.Result
	errs    []error
	calls   int
}

func (a *fakeAgent) Invoke(ctx context.Context, inv agentiface.Invocation) (agentiface.Result, error) {
	i := a.calls
	a.calls++
	if i >= len(a.results) {
		i = len(a.results) - 1
	}
	var err error
	if i < len(a.errs) {
		err = a.errs[i]
	}
	return a.results[i], err
}

// fakeAdapter returns one pre-scripted verdict's tier outputs per verify.Run
// cycle; Lint is always the first tier called so it advances the cycle index.
type fakeAdapter struct {
	cycles []verify.Result
	cycle  int
}

func (f *fakeAdapter) current() verify.Result {
	i := f.cycle
	if i >= len(f.cycles) {
		i = len(f.cycles) - 1
	}
	return f.cycles[i]
}

func (f *fakeAdapter) Lint(ctx context.Context, files []string) ([]verify.LintError, error) {
	v := f.current()
	f.cycle++
	return v.LintErrors, nil
}
func (f *fakeAdapter) Typecheck(ctx context.Context, files []string) ([]verify.TypeError, error) {
	i := f.cycle - 1
	if i < 0 {
		i = 0
	}
	if i >= len(f.cycles) {
		i = len(f.cycles) - 1
	}
	return f.cycles[i].TypeErrors, nil
}
func (f *fakeAdapter) Test(ctx context.Context, selectors []string) ([]verify.TestFailure, error) {
	i := f.cycle - 1
	if i < 0 {
		i = 0
	}
	if i >= len(f.cycles) {
		i = len(f.cycles) - 1
	}
	return f.cycles[i].TestFailures, nil
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0o644))
	run("add", "a.go")
	run("commit", "-q", "-m", "initial")
	return dir
}

// testContract builds a valid Contract through the registry loader so the
// private allowed/forbidden indexes are populated, exactly as production
// contracts are loaded from disk.
func testContract(t *testing.T, maxIter int) *contract.Contract {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`
agent_type: test-agent
limits:
  max_iterations: %d
  max_files_changed: 10
  max_lines_added: 1000
  max_lines_removed: 1000
allowed_actions:
  - write_file
  - git_commit
  - run_lint
`, maxIter)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test-agent.yaml"), []byte(body), 0o644))

	c, err := contract.NewRegistry(dir).Load("test-agent")
	require.NoError(t, err)
	return c
}

func TestRun_HappyPathCommitsOnPass(t *testing.T) {
	dir := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n\nfunc A() {}\n"), 0o644))

	c := testContract(t, 5)
	os.Unsetenv("AI_BRAIN_MODE")
	os.Setenv("AI_BRAIN_MODE", "NORMAL")
	defer os.Unsetenv("AI_BRAIN_MODE")

	deps := Deps{
		Agent:    &fakeAgent{results: []agentiface.Result{{ChangedFilesSinceBaseline: []string{"a.go"}}}},
		Enforcer: governance.NewEnforcer(c, governance.NewKillSwitch("AI_BRAIN_MODE"), governance.NewAuditLog("")),
		Adapter:  &fakeAdapter{cycles: []verify.Result{{Status: verify.VerdictPass}}},
		Store:    session.NewStore(t.TempDir()),
		Repo:     gitutil.New(dir),
	}

	task := &queue.Task{ID: "t1", Description: "add A"}
	outcome, err := Run(context.Background(), task, c, governance.NewKillSwitch("AI_BRAIN_MODE"), deps)
	require.NoError(t, err)
	require.Equal(t, stophook.DecisionHaltSuccess, outcome.Decision)
	require.NotEmpty(t, outcome.CommitRef)
}

func TestRun_CheckpointsCarryNonEmptySessionID(t *testing.T) {
	dir := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n\nfunc A() {}\n"), 0o644))

	c := testContract(t, 5)
	os.Setenv("AI_BRAIN_MODE", "NORMAL")
	defer os.Unsetenv("AI_BRAIN_MODE")

	store := session.NewStore(t.TempDir())
	deps := Deps{
		Agent:    &fakeAgent{results: []agentiface.Result{{ChangedFilesSinceBaseline: []string{"a.go"}}}},
		Enforcer: governance.NewEnforcer(c, governance.NewKillSwitch("AI_BRAIN_MODE"), governance.NewAuditLog("")),
		Adapter:  &fakeAdapter{cycles: []verify.Result{{Status: verify.VerdictPass}}},
		Store:    store,
		Repo:     gitutil.New(dir),
	}

	task := &queue.Task{ID: "t6", Description: "session id plumbing"}
	outcome, err := Run(context.Background(), task, c, governance.NewKillSwitch("AI_BRAIN_MODE"), deps)
	require.NoError(t, err)
	require.Equal(t, stophook.DecisionHaltSuccess, outcome.Decision)

	latest, err := store.Latest(task.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.NotEmpty(t, latest.SessionID)
	require.Contains(t, latest.SessionID, task.ID)
}

func TestRun_GuardrailBlocksBeforeCommit(t *testing.T) {
	dir := initRepo(t)
	// Introduce a diff containing a forbidden test-skip marker so the Fast
	// Verifier's guardrail scan fires regardless of the adapter's tiers.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n\nfunc TestA(t *testing.T) {\n\tt.Skip(\"flaky\")\n}\n"), 0o644))

	c := testContract(t, 5)
	os.Setenv("AI_BRAIN_MODE", "NORMAL")
	defer os.Unsetenv("AI_BRAIN_MODE")

	deps := Deps{
		Agent:    &fakeAgent{results: []agentiface.Result{{ChangedFilesSinceBaseline: []string{"a.go"}}}},
		Enforcer: governance.NewEnforcer(c, governance.NewKillSwitch("AI_BRAIN_MODE"), governance.NewAuditLog("")),
		Adapter:  &fakeAdapter{cycles: []verify.Result{{Status: verify.VerdictPass}}},
		Store:    session.NewStore(t.TempDir()),
		Repo:     gitutil.New(dir),
	}

	task := &queue.Task{ID: "t2", Description: "sketchy change"}
	outcome, err := Run(context.Background(), task, c, governance.NewKillSwitch("AI_BRAIN_MODE"), deps)
	require.NoError(t, err)
	require.Equal(t, stophook.DecisionEscalate, outcome.Decision)
}

func TestRun_KillSwitchOffEscalatesOnFirstEnforce(t *testing.T) {
	dir := initRepo(t)
	c := testContract(t, 5)
	os.Unsetenv("AI_BRAIN_MODE")

	deps := Deps{
		Agent:    &fakeAgent{results: []agentiface.Result{{ChangedFilesSinceBaseline: []string{"a.go"}}}},
		Enforcer: governance.NewEnforcer(c, governance.NewKillSwitch("AI_BRAIN_MODE"), governance.NewAuditLog("")),
		Adapter:  &fakeAdapter{cycles: []verify.Result{{Status: verify.VerdictPass}}},
		Store:    session.NewStore(t.TempDir()),
		Repo:     gitutil.New(dir),
	}

	task := &queue.Task{ID: "t3", Description: "blocked by kill switch"}
	outcome, err := Run(context.Background(), task, c, governance.NewKillSwitch("AI_BRAIN_MODE"), deps)
	require.NoError(t, err)
	require.Equal(t, stophook.DecisionEscalate, outcome.Decision)
}

func TestRun_AutofixRetriesVerifyWithinSameCycle(t *testing.T) {
	dir := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n\nfunc A() {}\n"), 0o644))

	c := testContract(t, 5)
	os.Setenv("AI_BRAIN_MODE", "NORMAL")
	defer os.Unsetenv("AI_BRAIN_MODE")

	deps := Deps{
		Agent:      &fakeAgent{results: []agentiface.Result{{ChangedFilesSinceBaseline: []string{"a.go"}}}},
		Enforcer:   governance.NewEnforcer(c, governance.NewKillSwitch("AI_BRAIN_MODE"), governance.NewAuditLog("")),
		Adapter:    &fakeAdapter{cycles: []verify.Result{{Status: verify.VerdictFail, LintErrors: []verify.LintError{{File: "a.go", Rule: "gofmt"}}}, {Status: verify.VerdictPass}}},
		Store:      session.NewStore(t.TempDir()),
		Repo:       gitutil.New(dir),
		AutofixCmd: "true",
	}

	task := &queue.Task{ID: "t5", Description: "needs autofix"}
	outcome, err := Run(context.Background(), task, c, governance.NewKillSwitch("AI_BRAIN_MODE"), deps)
	require.NoError(t, err)
	require.Equal(t, stophook.DecisionHaltSuccess, outcome.Decision)
	require.NotEmpty(t, outcome.CommitRef)
}

func TestRun_BudgetExhaustionAfterRepeatedFailures(t *testing.T) {
	dir := initRepo(t)
	c := testContract(t, 2)
	os.Setenv("AI_BRAIN_MODE", "NORMAL")
	defer os.Unsetenv("AI_BRAIN_MODE")

	deps := Deps{
		Agent: &fakeAgent{results: []agentiface.Result{
			{ChangedFilesSinceBaseline: []string{"a.go"}},
			{ChangedFilesSinceBaseline: []string{"a.go"}},
		}},
		Enforcer: governance.NewEnforcer(c, governance.NewKillSwitch("AI_BRAIN_MODE"), governance.NewAuditLog("")),
		Adapter: &fakeAdapter{cycles: []verify.Result{
			{Status: verify.VerdictFail, TestFailures: []verify.TestFailure{{Selector: "TestA"}}},
			{Status: verify.VerdictFail, TestFailures: []verify.TestFailure{{Selector: "TestB"}}},
		}},
		Store: session.NewStore(t.TempDir()),
		Repo:  gitutil.New(dir),
	}

	task := &queue.Task{ID: "t4", Description: "stubborn bug"}
	outcome, err := Run(context.Background(), task, c, governance.NewKillSwitch("AI_BRAIN_MODE"), deps)
	require.NoError(t, err)
	require.Equal(t, stophook.DecisionBudgetExhausted, outcome.Decision)
}
