package strategist

import (
	"strings"
	"text/template"

	"github.com/agentcore/orchestrator/internal/verify"
)

// maxPromptDiffBytes caps the diagnostic text embedded in a fix prompt.
const maxPromptDiffBytes = 50 * 1024

var (
	lintPromptTmpl = template.Must(template.New("lint").Parse(
		`Fix the following lint findings:
{{range .Lint}}- {{.File}}:{{.Line}} [{{.Rule}}] {{.Message}}
{{end}}`))

	typePromptTmpl = template.Must(template.New("type").Parse(
		`Fix the following type errors:
{{range .Type}}- {{.File}}:{{.Line}} {{.Message}}
{{end}}`))

	testPromptTmpl = template.Must(template.New("test").Parse(
		`Fix the following failing tests:
{{range .Test}}- {{.Selector}}: {{.Message}}
{{end}}`))
)

func buildLintPrompt(r verify.Result) string {
	return render(lintPromptTmpl, struct{ Lint []verify.LintError }{Lint: r.LintErrors})
}

func buildTypePrompt(r verify.Result) string {
	return render(typePromptTmpl, struct{ Type []verify.TypeError }{Type: r.TypeErrors})
}

func buildTestPrompt(r verify.Result) string {
	return render(testPromptTmpl, struct{ Test []verify.TestFailure }{Test: r.TestFailures})
}

func render(tmpl *template.Template, data any) string {
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return ""
	}
	return truncate(b.String())
}

func truncate(s string) string {
	if len(s) <= maxPromptDiffBytes {
		return s
	}
	return s[:maxPromptDiffBytes] + "\n... (truncated)"
}
