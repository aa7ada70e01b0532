package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planloop/planloop/internal/config"
	"github.com/planloop/planloop/internal/plan"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Run or complete a single task",
}

var taskRunCmd = &cobra.Command{
	Use:   "run SELECTOR",
	Short: "Run one task in the session and stop",
	Long: `Stage a single task for the agent session. The selector is a 1-based
ordinal or a case-insensitive title substring. The loop marks the task
complete when the session goes idle; nothing is committed.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskRun,
}

var taskDoneCmd = &cobra.Command{
	Use:   "done SELECTOR",
	Short: "Mark a task complete in the plan file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDone,
}

var (
	taskFile    string
	taskSession string
)

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskRunCmd)
	taskCmd.AddCommand(taskDoneCmd)

	taskCmd.PersistentFlags().StringVar(&taskFile, "file", "", "plan file path (default from config)")
	taskRunCmd.Flags().StringVar(&taskSession, "session", "", "host session to drive")
}

func runTaskRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	planPath := resolvePlanPath(cfg, taskFile, "")

	ctrl, err := newController(cfg, planPath)
	if err != nil {
		return err
	}

	if err := ctrl.StartSingleTask(cmd.Context(), planPath, args[0], taskSession); err != nil {
		return err
	}

	if taskSession == "" {
		fmt.Println("Task staged; it starts on the next session idle event.")
	} else {
		fmt.Printf("Task started in session %s\n", taskSession)
	}
	return nil
}

func runTaskDone(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	planPath := resolvePlanPath(cfg, taskFile, "")

	doc, err := plan.Load(planPath)
	if err != nil {
		return err
	}
	task, err := doc.Select(args[0])
	if err != nil {
		return err
	}

	updated := plan.SetStatus(doc.RawText, task.ID, doc.Tasks, plan.StatusCompleted)
	if err := plan.Save(planPath, updated); err != nil {
		return err
	}

	fmt.Printf("Marked %q complete\n", task.Title)
	return nil
}
