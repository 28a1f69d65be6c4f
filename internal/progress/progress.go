// Package progress appends dated markdown sections to a project's progress
// log, one per Autonomous Loop cycle, enumerating the task processed and
// its outcome.
package progress

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Entry is one cycle's outcome, recorded as a progress-log section.
type Entry struct {
	RunID     string
	Cycle     int
	TaskID    string
	Status    string
	CommitRef string
	Decision  string
	Timestamp time.Time
}

// Log appends Entry records to a single append-only file.
type Log struct {
	path string
}

// New returns a Log writing to path.
func New(path string) *Log {
	return &Log{path: path}
}

// Append writes one dated section for e, creating the file and its parent
// directory on first use.
func (l *Log) Append(e Entry) error {
	dir := filepath.Dir(l.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("progress: mkdir %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("progress: open %s: %w", l.path, err)
	}
	defer f.Close()

	section := fmt.Sprintf(
		"## %s — cycle %d (run %s)\n\n- task: %s\n- status: %s\n- decision: %s\n- commit: %s\n\n",
		e.Timestamp.UTC().Format(time.RFC3339), e.Cycle, e.RunID, e.TaskID, e.Status, e.Decision, commitOrNone(e.CommitRef),
	)
	if _, err := f.WriteString(section); err != nil {
		return fmt.Errorf("progress: write %s: %w", l.path, err)
	}
	return nil
}

func commitOrNone(ref string) string {
	if ref == "" {
		return "(none)"
	}
	return ref
}
