// Package logging configures the structured logger shared across the
// Iteration Loop and Autonomous Loop, following the charmbracelet/log usage
// pattern used for review/fix engine diagnostics elsewhere in the ecosystem.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// New builds a logger writing to w (typically os.Stderr), at Debug level
// when verbose is set and Info otherwise.
func New(w io.Writer, verbose bool) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		ReportCaller:    false,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.InfoLevel)
	}
	return logger
}
