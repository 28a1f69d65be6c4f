package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agentcore/orchestrator/internal/queue"
)

var (
	queueAddType        string
	queueAddDescription string
	queueAddFile        string
	queueAddTests       []string
	queueAddID          string
)

func init() {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage the persistent work queue",
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Append a new task to the work queue",
		RunE:  runQueueAdd,
	}
	addCmd.Flags().StringVar(&queueAddID, "id", "", "Task id (generated if omitted)")
	addCmd.Flags().StringVar(&queueAddType, "type", "bugfix", "Task type: bugfix|codequality|qa-team|dev-team|feature")
	addCmd.Flags().StringVar(&queueAddDescription, "description", "", "Human-readable task description")
	addCmd.Flags().StringVar(&queueAddFile, "file", "", "Target file or directory")
	addCmd.Flags().StringSliceVar(&queueAddTests, "tests", nil, "Associated test selectors")
	queueCmd.AddCommand(addCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks in the work queue",
		RunE:  runQueueList,
	}
	queueCmd.AddCommand(listCmd)

	showCmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show one task's full record",
		Args:  cobra.ExactArgs(1),
		RunE:  runQueueShow,
	}
	queueCmd.AddCommand(showCmd)

	rootCmd.AddCommand(queueCmd)
}

func runQueueAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadResolvedConfig()
	if err != nil {
		return err
	}
	q, err := queue.Load(cfg.Paths.QueueFile, cfg.Project)
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}

	id := queueAddID
	if id == "" {
		id = uuid.New().String()
	}
	t := &queue.Task{
		ID:          id,
		Type:        queue.TaskType(queueAddType),
		Description: queueAddDescription,
		File:        queueAddFile,
		Tests:       queueAddTests,
	}
	if err := q.Add(t); err != nil {
		return fmt.Errorf("add task: %w", err)
	}
	if err := queue.Save(q, cfg.Paths.QueueFile); err != nil {
		return fmt.Errorf("save queue: %w", err)
	}
	fmt.Printf("added task %s (%s)\n", t.ID, t.Type)
	return nil
}

func runQueueList(cmd *cobra.Command, args []string) error {
	cfg, err := loadResolvedConfig()
	if err != nil {
		return err
	}
	q, err := queue.Load(cfg.Paths.QueueFile, cfg.Project)
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}

	if flagOutput == "json" {
		data, err := json.MarshalIndent(q, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tATTEMPTS\tDESCRIPTION")
	for _, t := range q.Tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", t.ID, t.Type, t.Status, t.Attempts, truncate(t.Description, 60))
	}
	return w.Flush()
}

func runQueueShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadResolvedConfig()
	if err != nil {
		return err
	}
	q, err := queue.Load(cfg.Paths.QueueFile, cfg.Project)
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}
	for _, t := range q.Tasks {
		if t.ID == args[0] {
			data, err := json.MarshalIndent(t, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
	}
	return fmt.Errorf("task %q not found", args[0])
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
