package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentcore/orchestrator/internal/contract"
)

func init() {
	contractsCmd := &cobra.Command{
		Use:   "contracts",
		Short: "Inspect or reload per-agent-type contracts",
	}

	reloadCmd := &cobra.Command{
		Use:   "reload",
		Short: "Force the Contract Loader to re-read contract files on next use",
		RunE:  runContractsReload,
	}
	contractsCmd.AddCommand(reloadCmd)

	showCmd := &cobra.Command{
		Use:   "show <agent-type>",
		Short: "Load and print one agent type's contract",
		Args:  cobra.ExactArgs(1),
		RunE:  runContractsShow,
	}
	contractsCmd.AddCommand(showCmd)

	rootCmd.AddCommand(contractsCmd)
}

// runContractsReload is a no-op: the Registry cache lives only inside one
// process, and this command does not signal an already running `run`
// process, which keeps the contracts it has loaded until it exits.
func runContractsReload(cmd *cobra.Command, args []string) error {
	fmt.Println("contracts are read from disk when an orchestrator process first loads them; a running orchestrator process is not signalled and keeps its cached contracts")
	return nil
}

func runContractsShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadResolvedConfig()
	if err != nil {
		return err
	}
	registry := contract.NewRegistry(cfg.Loop.ContractsDir)
	c, err := registry.Load(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("agent_type: %s\n", c.AgentType)
	fmt.Printf("max_iterations: %d\n", c.Limits.MaxIterations)
	fmt.Printf("max_files_changed: %d\n", c.Limits.MaxFilesChanged)
	fmt.Printf("max_lines_added: %d\n", c.Limits.MaxLinesAdded)
	fmt.Printf("max_lines_removed: %d\n", c.Limits.MaxLinesRemoved)
	fmt.Printf("allowed_actions: %v\n", c.AllowedActions)
	fmt.Printf("forbidden_actions: %v\n", c.ForbiddenActions)
	return nil
}
