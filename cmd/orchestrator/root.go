package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	flagOutput    string
	flagBaseDir   string
	flagProject   string
	flagVerbose   bool
	flagConfig    string
)

// rootCmd is the base command when orchestrator is called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "Autonomous Agent Orchestration Core",
	Long: `orchestrator drives bug-fix and feature tasks from a persisted queue
through a pluggable code-modifying agent, verifies the resulting workspace
changes, attempts bounded self-correction on failure, and commits successful
results to version control.

Core commands:
  run         Run the Autonomous Loop for a project
  queue       Manage the work queue (add/list/show)
  status      Report queue and resumable-session state
  contracts   Inspect or reload per-agent-type contracts
  serve       Expose a health/metrics HTTP surface`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		syncConfigFlagToEnv()
	},
}

// syncConfigFlagToEnv lets an explicit --config flag override the config-file
// lookup path via the same environment variable internal/config already
// checks.
func syncConfigFlagToEnv() {
	if flagConfig != "" {
		os.Setenv("ORCHESTRATOR_CONFIG", flagConfig)
	}
}

// Execute runs the root command, exiting with a fixed set of process exit
// codes: 0 success/clean shutdown, 1 fatal/policy error, 2 kill-switch OFF
// at startup.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if code, ok := exitCodeFor(err); ok {
			os.Exit(code)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&flagBaseDir, "base-dir", "", "Orchestrator data directory setting (default: .agentcore); queue, session, audit and contract paths are configured separately and do not follow it")
	rootCmd.PersistentFlags().StringVar(&flagProject, "project", "", "Project label for the work queue and progress log")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default: .agentcore/config.yaml)")
}

// exitCode lets a subcommand request a specific process exit code (e.g. 2
// for kill-switch-OFF at startup) while still returning a normal error for
// cobra to print.
type exitCode struct {
	code int
	err  error
}

func (e *exitCode) Error() string { return e.err.Error() }
func (e *exitCode) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitCode{code: code, err: err}
}

func exitCodeFor(err error) (int, bool) {
	var ec *exitCode
	for e := err; e != nil; e = unwrapOnce(e) {
		if v, ok := e.(*exitCode); ok {
			ec = v
			break
		}
	}
	if ec != nil {
		return ec.code, true
	}
	return 0, false
}

func unwrapOnce(err error) error {
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return u.Unwrap()
	}
	return nil
}
