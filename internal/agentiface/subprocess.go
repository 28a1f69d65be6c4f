package agentiface

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/agentcore/orchestrator/internal/gitutil"
)

// DefaultTimeout bounds a single agent invocation when none is configured.
const DefaultTimeout = 5 * time.Minute

// completionPattern matches the sentinel the agent contract requires: a
// `<promise>COMPLETE</promise>`-shaped marker embedded in output.
var completionPattern = regexp.MustCompile(`<promise>\s*([A-Za-z_]+)\s*</promise>`)

// ErrNoCompletionToken is returned when the agent's output carries no
// parseable completion marker. This is never treated as success on silence —
// callers must translate it into a FAIL iteration.
var ErrNoCompletionToken = fmt.Errorf("agentiface: no completion token in output")

// SubprocessAgent invokes an external agent CLI as a subprocess. It shells
// out with a timeout exactly like gitutil.Repo.run, then diffs the working
// tree to discover changed files.
type SubprocessAgent struct {
	Command string
	Args    []string
	Dir     string
	Timeout time.Duration
	Repo    *gitutil.Repo
}

// Invoke implements Agent: run the configured command with prompt on stdin,
// parse the completion token from combined output, and read changed files
// via git diff against HEAD (untracked files are not included).
func (a *SubprocessAgent) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, a.Command, a.Args...)
	cmd.Dir = a.Dir
	cmd.Stdin = strings.NewReader(inv.Prompt)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	output := out.String()

	if ctx.Err() != nil {
		return Result{OutputText: output}, fmt.Errorf("agentiface: invocation timed out: %w", ctx.Err())
	}
	if runErr != nil {
		return Result{OutputText: output}, fmt.Errorf("agentiface: invocation failed: %w", runErr)
	}

	m := completionPattern.FindStringSubmatch(output)
	if m == nil {
		return Result{OutputText: output}, ErrNoCompletionToken
	}

	changed, err := a.Repo.ChangedFiles(ctx)
	if err != nil {
		changed = nil
	}

	return Result{
		OutputText:                output,
		CompletionToken:           m[1],
		ChangedFilesSinceBaseline: changed,
	}, nil
}
