package verify

import "context"

// Adapter is the per-tier pluggable command wrapper. The core never knows
// how lint/typecheck/tests are actually invoked for a given project — it
// only consumes the structured diagnostics an Adapter returns.
type Adapter interface {
	Lint(ctx context.Context, files []string) ([]LintError, error)
	Typecheck(ctx context.Context, files []string) ([]TypeError, error)
	Test(ctx context.Context, selectors []string) ([]TestFailure, error)
}
