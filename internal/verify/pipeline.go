package verify

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"sync"
	"time"
)

// Tier time budgets: lint must be cheap, typecheck moderate, tests bounded.
const (
	lintBudget      = 5 * time.Second
	typecheckBudget = 30 * time.Second
	testBudget      = 60 * time.Second
)

// Run executes the three-tier pipeline over changedFiles and testSelectors,
// failing fast on the first non-PASS tier. Composition: BLOCKED dominates
// FAIL dominates PASS.
func Run(ctx context.Context, adapter Adapter, changedFiles, testSelectors []string, diffText string) Result {
	if hit, msg := ScanGuardrails(diffText); hit {
		return Result{Status: VerdictBlocked, Reason: msg, HasGuardrails: true}
	}

	lintCtx, cancel := context.WithTimeout(ctx, lintBudget)
	lintErrs, err := scanLint(lintCtx, adapter, changedFiles)
	cancel()
	if r, done := classify(err, "lint"); done {
		return r
	}
	if len(lintErrs) > 0 {
		return Result{Status: VerdictFail, Reason: "lint errors", LintErrors: lintErrs}
	}

	typeCtx, cancel := context.WithTimeout(ctx, typecheckBudget)
	typeErrs, err := adapter.Typecheck(typeCtx, changedFiles)
	cancel()
	if r, done := classify(err, "typecheck"); done {
		return r
	}
	if len(typeErrs) > 0 {
		return Result{Status: VerdictFail, Reason: "type errors", TypeErrors: typeErrs}
	}

	testCtx, cancel := context.WithTimeout(ctx, testBudget)
	testFails, err := adapter.Test(testCtx, testSelectors)
	cancel()
	if r, done := classify(err, "test"); done {
		return r
	}
	if len(testFails) > 0 {
		return Result{Status: VerdictFail, Reason: "test failures", TestFailures: testFails}
	}

	return Result{Status: VerdictPass, Reason: "all tiers clean"}
}

// scanLint runs the lint tier. Most adapters accept the whole changed-file
// set in one call; scanLintFanOut below exists for the narrower case of an
// adapter that only accepts one file per invocation.
func scanLint(ctx context.Context, adapter Adapter, files []string) ([]LintError, error) {
	if len(files) <= 1 {
		return adapter.Lint(ctx, files)
	}
	return scanLintFanOut(ctx, adapter, files)
}

// lintFileResult pairs one file's lint outcome with its position in the
// input so results can be reassembled in the original order.
type lintFileResult struct {
	index int
	errs  []LintError
	err   error
}

// scanLintFanOut calls adapter.Lint once per file across a bounded number of
// goroutines, for per-file-only lint adapters. Concurrency is capped at
// runtime.NumCPU() and at the number of files, whichever is smaller. Every
// file is linted even after a call fails; if any call failed, the error of
// the earliest such file in input order is returned and all findings are
// discarded, matching the single-call adapter's all-or-nothing error contract.
func scanLintFanOut(ctx context.Context, adapter Adapter, files []string) ([]LintError, error) {
	workers := runtime.NumCPU()
	if workers > len(files) {
		workers = len(files)
	}

	jobs := make(chan int, len(files))
	results := make([]lintFileResult, len(files))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				errs, err := adapter.Lint(ctx, []string{files[i]})
				results[i] = lintFileResult{index: i, errs: errs, err: err}
			}
		}()
	}

	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var all []LintError
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		all = append(all, r.errs...)
	}
	return all, nil
}

// classify maps a tier error into a terminal Result, or reports that the
// caller should continue with that tier's (empty) diagnostics.
func classify(err error, tierReason string) (Result, bool) {
	if err == nil {
		return Result{}, false
	}
	if errors.Is(err, ErrTimeout) {
		return Result{Status: VerdictFail, Reason: tierReason + " timeout"}, true
	}
	if errors.Is(err, ErrUnparseableOutput) {
		return Result{Status: VerdictBlocked, Reason: err.Error()}, true
	}
	if errors.Is(err, ErrNoCommand) || errors.Is(err, ErrInfrastructure) || errors.Is(err, exec.ErrNotFound) {
		return Result{Status: VerdictBlocked, Reason: "infrastructure"}, true
	}
	return Result{Status: VerdictBlocked, Reason: "infrastructure"}, true
}
