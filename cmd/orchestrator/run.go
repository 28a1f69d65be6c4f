package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentcore/orchestrator/internal/agentiface"
	"github.com/agentcore/orchestrator/internal/autoloop"
	"github.com/agentcore/orchestrator/internal/config"
	"github.com/agentcore/orchestrator/internal/contract"
	"github.com/agentcore/orchestrator/internal/gitutil"
	"github.com/agentcore/orchestrator/internal/governance"
	"github.com/agentcore/orchestrator/internal/logging"
	"github.com/agentcore/orchestrator/internal/metrics"
	"github.com/agentcore/orchestrator/internal/session"
	"github.com/agentcore/orchestrator/internal/verify"
)

var (
	runMaxGlobalIterations int
	runOnce                bool
	runAgentCmd            string
)

func init() {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the Autonomous Loop for a project",
		Long: `Run the Autonomous Loop: pull the next resumable-or-pending task
from the work queue, drive it through the Iteration Loop to a terminal
state, persist the outcome, and repeat until the queue is empty, the
global iteration cap is reached, or the kill-switch halts progress.

Examples:
  orchestrator run --project demo
  orchestrator run --project demo --max-global-iterations 10
  orchestrator run --project demo --once`,
		RunE: runRun,
	}
	runCmd.Flags().IntVar(&runMaxGlobalIterations, "max-global-iterations", 0, "Cap total tasks processed this invocation (0 = unbounded)")
	runCmd.Flags().BoolVar(&runOnce, "once", false, "Process a single task then exit")
	runCmd.Flags().StringVar(&runAgentCmd, "agent-cmd", "", "Subprocess command invoked once per iteration as the code-modifying agent")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadResolvedConfig()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.Verbose)

	ks := governance.NewKillSwitch(cfg.Loop.KillSwitchEnvVar)
	if ks.Read() == governance.ModeOff {
		fmt.Fprintln(os.Stderr, "kill-switch is OFF; exiting without starting the loop")
		return withExitCode(2, fmt.Errorf("kill-switch OFF at startup"))
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getwd: %w", err)
	}
	if runAgentCmd == "" {
		return fmt.Errorf("--agent-cmd is required: the code-modifying agent is an external collaborator, never built into the core")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := contract.NewRegistry(cfg.Loop.ContractsDir)
	store := session.NewStore(cfg.Paths.SessionsDir)
	repo := gitutil.New(cwd)
	audit := governance.NewAuditLog(cfg.Paths.AuditLogFile)
	m := metrics.New()

	agent := &agentiface.SubprocessAgent{Command: "sh", Args: []string{"-c", runAgentCmd}, Dir: cwd, Repo: repo}

	autoCfg := autoloop.Config{
		Project:          cfg.Project,
		QueuePath:        cfg.Paths.QueueFile,
		ChainLogPath:     cfg.Paths.QueueFile + ".chain.jsonl",
		ProgressPath:     cfg.Paths.ProgressFile,
		Contracts:        registry,
		Agent:            agent,
		Store:            store,
		Repo:             repo,
		Metrics:          m,
		Audit:            audit,
		AutofixCmd:       cfg.Verify.AutofixCmd,
		KillSwitchEnvVar: cfg.Loop.KillSwitchEnvVar,
		MaxGlobalIterations: firstNonZero(runMaxGlobalIterations, cfg.Loop.MaxGlobalIterations),
		Once:             runOnce,
		Logger:           logger,
		NewAdapter: func(agentType string) verify.Adapter {
			return &verify.ShellAdapter{
				LintCmd:      cfg.Verify.LintCmd,
				TypecheckCmd: cfg.Verify.TypecheckCmd,
				TestCmd:      cfg.Verify.TestCmd,
				Dir:          cwd,
			}
		},
	}

	result, err := autoloop.Run(ctx, autoCfg)
	if err != nil {
		if err == autoloop.ErrKillSwitchOff {
			return withExitCode(2, err)
		}
		return withExitCode(1, err)
	}

	fmt.Printf("run %s: processed=%d complete=%d blocked=%d stopped=%q\n",
		result.RunID, result.TasksProcessed, result.TasksComplete, result.TasksBlocked, result.StoppedReason)
	return nil
}

func loadResolvedConfig() (*config.Config, error) {
	override := &config.Config{}
	if flagOutput != "" {
		override.Output = flagOutput
	}
	if flagBaseDir != "" {
		override.BaseDir = flagBaseDir
	}
	if flagProject != "" {
		override.Project = flagProject
	}
	override.Verbose = flagVerbose

	cfg, err := config.Load(override)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func firstNonZero(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}
