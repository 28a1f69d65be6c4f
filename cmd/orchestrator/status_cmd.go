package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentcore/orchestrator/internal/queue"
	"github.com/agentcore/orchestrator/internal/session"
)

func init() {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Report work queue stats and resumable sessions",
		RunE:  runStatus,
	}
	rootCmd.AddCommand(statusCmd)
}

// statusReport is a stats summary plus the set of tasks a rerun would pick
// up first.
type statusReport struct {
	Project    string       `json:"project"`
	Stats      queue.Stats  `json:"stats"`
	Resumable  []string     `json:"resumable_task_ids"`
	InProgress *queue.Task  `json:"in_progress,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadResolvedConfig()
	if err != nil {
		return err
	}
	q, err := queue.Load(cfg.Paths.QueueFile, cfg.Project)
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}
	store := session.NewStore(cfg.Paths.SessionsDir)

	report := statusReport{Project: q.Project, Stats: q.StatsSummary(), InProgress: q.InProgress()}
	for _, t := range q.Tasks {
		if t.Status != queue.StatusInProgress {
			continue
		}
		if state, _ := store.Resume(t.ID); state != nil {
			report.Resumable = append(report.Resumable, t.ID)
		}
	}

	if flagOutput == "json" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("project: %s\n", report.Project)
	fmt.Printf("pending=%d in_progress=%d complete=%d blocked=%d abandoned=%d\n",
		report.Stats.Pending, report.Stats.InProgress, report.Stats.Complete, report.Stats.Blocked, report.Stats.Abandoned)
	if len(report.Resumable) > 0 {
		fmt.Printf("resumable on next run: %v\n", report.Resumable)
	}
	return nil
}
