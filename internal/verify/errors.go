package verify

import "errors"

// ErrNoCommand is returned by ShellAdapter when a tier's command is unconfigured.
var ErrNoCommand = errors.New("verify: no command configured for tier")

// ErrInfrastructure is returned when a tool is missing or crashes outright.
var ErrInfrastructure = errors.New("verify: infrastructure failure")

// ErrTimeout is returned when a tier exceeds its time budget.
var ErrTimeout = errors.New("verify: timeout")

// ErrUnparseableOutput is returned when a tier command exits cleanly but
// emits output that does not match the JSON-lines diagnostic protocol.
// Never treated as a clean tier — unknown output degrades to BLOCKED with
// the raw text as the reason, not to an assumed PASS.
var ErrUnparseableOutput = errors.New("verify: unparseable output")
