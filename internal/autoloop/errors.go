package autoloop

import "errors"

// ErrKillSwitchOff is returned when Run is invoked while the kill-switch is
// OFF at startup; callers map this to a distinct process exit code.
var ErrKillSwitchOff = errors.New("autoloop: kill-switch is OFF")
