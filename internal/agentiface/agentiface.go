// Package agentiface defines the external Agent boundary the Iteration Loop
// invokes once per cycle. The orchestrator core never imports a concrete
// agent SDK — callers supply an implementation.
package agentiface

import "context"

// Invocation is one call to an external agent.
type Invocation struct {
	Prompt        string
	ToolsAllowed  []string
}

// Result is what the agent reports back after one invocation.
type Result struct {
	OutputText          string
	CompletionToken     string
	ChangedFilesSinceBaseline []string
}

// Agent is the external agent boundary: invoke(prompt, tools_allowed) →
// (output_text, completion_token, changed_files_since_baseline).
type Agent interface {
	Invoke(ctx context.Context, inv Invocation) (Result, error)
}
